package core

import (
	"github.com/encodeous/distvec/state"
)

// advertisedMetric applies split horizon and poison reverse. ok is false when the route must
// not be sent to port at all.
func advertisedMetric(s *state.RouterState, entry state.RouteEntry, port state.Port) (metric state.Metric, ok bool) {
	if entry.Port != port {
		return entry.Metric, true
	}
	if s.Policy.SplitHorizon {
		return state.Metric{}, false
	}
	if s.Policy.PoisonReverse {
		return state.Unreachable, true
	}
	return entry.Metric, true
}

// sendSingle advertises the table to one port. It does not update the snapshot.
func sendSingle(s *state.RouterState, r Router, force bool, port state.Port) {
	for _, dst := range s.Table.Destinations() {
		entry := s.Table[dst]
		if !force {
			if last, ok := s.LastAdvertised[dst]; ok && last.SameRoute(entry) {
				continue
			}
		}
		metric, ok := advertisedMetric(s, entry, port)
		if !ok {
			continue
		}
		r.SendAdvertisement(port, dst, metric)
	}
}

// SendRoutes runs an advertisement pass and publishes the table as the new snapshot.
// With force set every route is sent, otherwise only routes that changed since the last pass.
// A non-nil single restricts the pass to that port.
func SendRoutes(s *state.RouterState, r Router, force bool, single *state.Port) {
	if single != nil {
		if s.Ports.Has(*single) {
			sendSingle(s, r, force, *single)
		} else {
			r.Log(UnknownPort, "advertisement pass for a port that is not up", "port", *single)
		}
	} else {
		for _, port := range s.Ports.All() {
			sendSingle(s, r, force, port)
		}
	}
	s.LastAdvertised = s.Table
	s.Table = s.LastAdvertised.Clone()
}
