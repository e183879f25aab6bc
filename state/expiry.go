package state

import "time"

// Expiry is the absolute time after which a route is stale, or Forever for static routes.
type Expiry struct {
	at      time.Time
	forever bool
}

var Forever = Expiry{forever: true}

func ExpiresAt(t time.Time) Expiry {
	return Expiry{at: t}
}

func (e Expiry) IsForever() bool {
	return e.forever
}

// At returns the deadline, ok is false for Forever.
func (e Expiry) At() (at time.Time, ok bool) {
	return e.at, !e.forever
}

// Expired reports whether the deadline is no longer in the future.
func (e Expiry) Expired(now time.Time) bool {
	return !e.forever && !e.at.After(now)
}

func (e Expiry) Equal(o Expiry) bool {
	if e.forever || o.forever {
		return e.forever == o.forever
	}
	return e.at.Equal(o.at)
}

func (e Expiry) String() string {
	if e.forever {
		return "forever"
	}
	return e.at.Format("15:04:05.000")
}
