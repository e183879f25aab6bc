package state

import (
	"math"
	"strconv"
)

// Metric is the cumulative latency of a route. A Metric is either a finite cost or
// Unreachable; the zero value is a finite cost of 0.
type Metric struct {
	cost        uint32
	unreachable bool
}

// Unreachable is the infinite metric carried by poisoned routes.
var Unreachable = Metric{unreachable: true}

// maxFinite is the largest cost that is not a retraction.
const maxFinite = math.MaxUint32 - 1

func Finite(cost uint32) Metric {
	return Metric{cost: min(cost, maxFinite)}
}

func (m Metric) IsUnreachable() bool {
	return m.unreachable
}

// Cost returns the finite cost, ok is false for Unreachable.
func (m Metric) Cost() (cost uint32, ok bool) {
	if m.unreachable {
		return 0, false
	}
	return m.cost, true
}

// Add saturates instead of wrapping; Unreachable absorbs anything.
func (m Metric) Add(o Metric) Metric {
	if m.unreachable || o.unreachable {
		return Unreachable
	}
	return Finite(uint32(min(uint64(maxFinite), uint64(m.cost)+uint64(o.cost))))
}

// Less reports whether m is strictly better than o.
func (m Metric) Less(o Metric) bool {
	if m.unreachable {
		return false
	}
	if o.unreachable {
		return true
	}
	return m.cost < o.cost
}

// Capped maps every finite cost at or above infinity to Unreachable.
func (m Metric) Capped(infinity uint32) Metric {
	if !m.unreachable && m.cost >= infinity {
		return Unreachable
	}
	return m
}

func (m Metric) String() string {
	if m.unreachable {
		return "inf"
	}
	return strconv.FormatUint(uint64(m.cost), 10)
}
