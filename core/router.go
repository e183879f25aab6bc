package core

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/encodeous/distvec/perf"
	"github.com/encodeous/distvec/state"
	"github.com/gaissmai/bart"
)

// DVRouter is the event-driven core of a single router. Events must be delivered serially,
// a DVRouter does no locking of its own. The routing table only changes through events so
// the forwarding table never falls behind it.
type DVRouter struct {
	Out   Router
	Clock func() time.Time

	rs *state.RouterState
	// fwd contains the usable routes of the routing table
	fwd       bart.Table[state.Port]
	installed map[netip.Addr]state.Port
}

func NewDVRouter(id state.NodeId, cfg state.RouterCfg, out Router, clock func() time.Time) (*DVRouter, error) {
	cfg = cfg.WithDefaults()
	err := state.RouterConfigValidator(&cfg)
	if err != nil {
		return nil, fmt.Errorf("router %s: %w", id, err)
	}
	if clock == nil {
		clock = time.Now
	}
	return &DVRouter{
		Out:       out,
		Clock:     clock,
		rs:        state.NewRouterState(id, cfg),
		installed: make(map[netip.Addr]state.Port),
	}, nil
}

func (d *DVRouter) Id() state.NodeId {
	return d.rs.Id
}

// Table returns a copy of the routing table.
func (d *DVRouter) Table() state.Table {
	return d.rs.Table.Clone()
}

// Advertised returns a copy of the table as of the last advertisement pass.
func (d *DVRouter) Advertised() state.Table {
	return d.rs.LastAdvertised.Clone()
}

// PortLatency reports the latency of port, if it is up.
func (d *DVRouter) PortLatency(port state.Port) (uint32, bool) {
	return d.rs.Ports.Latency(port)
}

func AddrToPrefix(addr netip.Addr) netip.Prefix {
	res, err := addr.Prefix(addr.BitLen())
	if err != nil {
		panic(err)
	}
	return res
}

// syncForwarding brings the forwarding table in line with the routing table.
func (d *DVRouter) syncForwarding() {
	for dst, port := range d.installed {
		entry, ok := d.rs.Table[dst]
		if !ok || !entry.Usable() {
			d.fwd.Delete(AddrToPrefix(dst))
			delete(d.installed, dst)
		} else if entry.Port != port {
			d.fwd.Insert(AddrToPrefix(dst), entry.Port)
			d.installed[dst] = entry.Port
		}
	}
	for dst, entry := range d.rs.Table {
		if _, ok := d.installed[dst]; !ok && entry.Usable() {
			d.fwd.Insert(AddrToPrefix(dst), entry.Port)
			d.installed[dst] = entry.Port
		}
	}
}

// OnStaticRouteAdded is called when a host is attached to port. The port must be up.
func (d *DVRouter) OnStaticRouteAdded(host netip.Addr, port state.Port) {
	InstallStaticRoute(d.rs, d.Out, host, port)
	d.syncForwarding()
}

// OnDataPacket forwards pkt along the best route, packets to unknown or poisoned destinations
// are dropped. It reports whether the packet was forwarded.
func (d *DVRouter) OnDataPacket(pkt state.Packet, inPort state.Port) bool {
	port, ok := d.fwd.Lookup(pkt.Dst)
	if !ok {
		perf.PacketsDropped.Add(1)
		d.Out.Log(PacketDropped, "no route for packet", "dst", pkt.Dst, "in", inPort)
		return false
	}
	perf.PacketsForwarded.Add(1)
	d.Out.ForwardPacket(pkt, port)
	return true
}

func (d *DVRouter) OnAdvertisement(dst netip.Addr, metric state.Metric, inPort state.Port) {
	perf.AdvertisementsReceived.Add(1)
	HandleAdvertisement(d.rs, d.Out, d.Clock(), dst, metric, inPort)
	d.syncForwarding()
}

func (d *DVRouter) OnLinkUp(port state.Port, latency uint32) error {
	err := HandleLinkUp(d.rs, d.Out, port, latency)
	if err != nil {
		return fmt.Errorf("router %s: %w", d.rs.Id, err)
	}
	return nil
}

func (d *DVRouter) OnLinkDown(port state.Port) {
	HandleLinkDown(d.rs, d.Out, d.Clock(), port)
	d.syncForwarding()
}

// AdvanceTime runs the expiry sweep as of now. It sends nothing.
func (d *DVRouter) AdvanceTime(now time.Time) ExpiryResult {
	res := ExpireRoutes(d.rs, d.Out, now)
	d.syncForwarding()
	return res
}

// OnPeriodicTick expires stale routes, then sends the full table to every neighbour.
func (d *DVRouter) OnPeriodicTick() ExpiryResult {
	res := d.AdvanceTime(d.Clock())
	SendRoutes(d.rs, d.Out, true, nil)
	return res
}

// Lookup returns the current route to dst, usable or not.
func (d *DVRouter) Lookup(dst netip.Addr) (state.RouteEntry, bool) {
	entry, ok := d.rs.Table[dst]
	return entry, ok
}
