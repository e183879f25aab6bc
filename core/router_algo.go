package core

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/encodeous/distvec/state"
)

// Router is an interface that defines the underlying router operations
type Router interface {
	SendAdvertisement(port state.Port, dst netip.Addr, metric state.Metric)
	ForwardPacket(pkt state.Packet, port state.Port)
	Log(event RouterEvent, desc string, args ...any)
}

// ExpiryResult lists what a sweep removed or poisoned.
type ExpiryResult struct {
	Dropped  []netip.Addr
	Poisoned []netip.Addr
}

func (e ExpiryResult) Changed() bool {
	return len(e.Dropped) != 0 || len(e.Poisoned) != 0
}

func poisoned(dst netip.Addr, port state.Port, expiry state.Expiry) state.RouteEntry {
	return state.RouteEntry{
		Dst:    dst,
		Port:   port,
		Metric: state.Unreachable,
		Expiry: expiry,
	}
}

func InstallStaticRoute(s *state.RouterState, r Router, host netip.Addr, port state.Port) {
	lat, ok := s.Ports.Latency(port)
	if !ok {
		panic(fmt.Sprintf("static route to %s on port %d, but the link is not up", host, port))
	}
	s.Table[host] = state.RouteEntry{
		Dst:    host,
		Port:   port,
		Metric: state.Finite(lat).Capped(s.Policy.Infinity),
		Expiry: state.Forever,
	}
	r.Log(RouteAdded, "static route installed", "dst", host, "port", port)
	SendRoutes(s, r, false, nil)
}

func HandleAdvertisement(s *state.RouterState, r Router, now time.Time, dst netip.Addr, adv state.Metric, inPort state.Port) {
	lat, ok := s.Ports.Latency(inPort)
	if !ok {
		// the link went down while the advertisement was in flight
		r.Log(UnknownPort, "advertisement on a port that is not up", "port", inPort, "dst", dst)
		return
	}
	inf := s.Policy.Infinity
	candidate := adv.Capped(inf).Add(state.Finite(lat)).Capped(inf)
	cur, exists := s.Table[dst]

	if candidate.IsUnreachable() {
		// only the current next hop can retract a route
		if exists && cur.Port == inPort {
			expiry := cur.Expiry
			if cur.Usable() {
				// don't restart the garbage collection clock of a route that is already dead
				expiry = state.ExpiresAt(now.Add(s.Policy.RouteTTL))
				r.Log(RoutePoisoned, "route poisoned by next hop", "dst", dst, "port", inPort)
			}
			s.Table[dst] = poisoned(dst, inPort, expiry)
		}
	} else if !exists || candidate.Less(cur.Metric) || cur.Port == inPort {
		// news from the current next hop is trusted even when it is worse
		switch {
		case !exists:
			r.Log(RouteAdded, "route added", "dst", dst, "port", inPort, "metric", candidate)
		case cur.Port != inPort:
			r.Log(RouteImproved, "route improved", "dst", dst, "from", cur, "port", inPort, "metric", candidate)
		case cur.Metric != candidate:
			r.Log(RouteUpdated, "next hop changed its metric", "dst", dst, "from", cur.Metric, "metric", candidate)
		}
		s.Table[dst] = state.RouteEntry{
			Dst:    dst,
			Port:   inPort,
			Metric: candidate,
			Expiry: state.ExpiresAt(now.Add(s.Policy.RouteTTL)),
		}
	}
	SendRoutes(s, r, false, nil)
}

// ExpireRoutes rebuilds the table without the routes whose expiry has passed.
func ExpireRoutes(s *state.RouterState, r Router, now time.Time) ExpiryResult {
	res := ExpiryResult{}
	nt := make(state.Table, len(s.Table))
	for _, dst := range s.Table.Destinations() {
		entry := s.Table[dst]
		if !entry.Expiry.Expired(now) {
			nt[dst] = entry
		} else if s.Policy.PoisonExpired && entry.Usable() {
			nt[dst] = poisoned(dst, entry.Port, state.ExpiresAt(now.Add(s.Policy.RouteTTL)))
			res.Poisoned = append(res.Poisoned, dst)
			r.Log(ExpiredRoutePoisoned, "expired route poisoned", "dst", dst, "route", entry)
		} else {
			res.Dropped = append(res.Dropped, dst)
			r.Log(StaleRouteDropped, "stale route dropped", "dst", dst, "route", entry)
		}
	}
	s.Table = nt
	return res
}

func HandleLinkUp(s *state.RouterState, r Router, port state.Port, latency uint32) error {
	err := s.Ports.AddPort(port, latency)
	if err != nil {
		r.Log(InconsistentState, "link up on a port that is already up", "port", port)
		return err
	}
	if s.Policy.SendOnLinkUp {
		SendRoutes(s, r, true, &port)
	}
	return nil
}

func HandleLinkDown(s *state.RouterState, r Router, now time.Time, port state.Port) {
	s.Ports.RemovePort(port)
	if !s.Policy.PoisonOnLinkDown {
		// routes through the port are left to expire
		return
	}
	expiry := state.ExpiresAt(now.Add(s.Policy.RouteTTL))
	for dst, entry := range s.Table {
		if entry.Port == port {
			s.Table[dst] = poisoned(dst, port, expiry)
			r.Log(RoutePoisoned, "route poisoned by link down", "dst", dst, "port", port)
		}
	}
	SendRoutes(s, r, false, nil)
}

// NextHop returns the port a packet to dst leaves through.
func NextHop(s *state.RouterState, dst netip.Addr) (state.Port, bool) {
	entry, ok := s.Table[dst]
	if !ok || !entry.Usable() {
		return 0, false
	}
	return entry.Port, true
}
