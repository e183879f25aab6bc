package state

import (
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"
)

type NodeId string

// Port identifies a physical link attached to a router.
type Port int

type RouteEntry struct {
	Dst    netip.Addr
	Port   Port
	Metric Metric
	Expiry Expiry
}

// Usable reports whether packets can be forwarded along the route.
func (e RouteEntry) Usable() bool {
	return !e.Metric.IsUnreachable()
}

// SameRoute compares the parts of an entry that neighbours can observe.
func (e RouteEntry) SameRoute(o RouteEntry) bool {
	return e.Port == o.Port && e.Metric == o.Metric
}

func (e RouteEntry) String() string {
	return fmt.Sprintf("(port: %d, metric: %s, expiry: %s)", e.Port, e.Metric, e.Expiry)
}

// Table maps a destination to its single best known route.
type Table map[netip.Addr]RouteEntry

func (t Table) Clone() Table {
	if t == nil {
		return make(Table)
	}
	return maps.Clone(t)
}

// Destinations returns the table keys in address order.
func (t Table) Destinations() []netip.Addr {
	return slices.SortedFunc(maps.Keys(t), func(a, b netip.Addr) int {
		return a.Compare(b)
	})
}

func (t Table) String() string {
	sb := strings.Builder{}
	for i, dst := range t.Destinations() {
		if i != 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s via %s", dst, t[dst]))
	}
	return sb.String()
}

// RouterState is owned by a single router and must only be accessed from its event loop.
type RouterState struct {
	Id     NodeId
	Policy RouterCfg // fixed at construction
	Ports  *PortRegistry
	// Table is the current, authoritative table
	Table Table
	// LastAdvertised is the snapshot taken at the end of the previous advertisement pass
	LastAdvertised Table
}

func NewRouterState(id NodeId, policy RouterCfg) *RouterState {
	return &RouterState{
		Id:             id,
		Policy:         policy,
		Ports:          NewPortRegistry(),
		Table:          make(Table),
		LastAdvertised: make(Table),
	}
}

// Packet is a data packet travelling between hosts.
type Packet struct {
	Id      uint64
	Src     netip.Addr
	Dst     netip.Addr
	Payload []byte
}
