package sim

import (
	"net/netip"
	"testing"
	"time"

	"github.com/encodeous/distvec/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// r1 - r2 - r3 with a slow direct r1 - r3 link
const triangle = `
routers:
  - id: r1
  - id: r2
  - id: r3
links:
  - a: r1
    b: r2
    latency: 1
  - a: r2
    b: r3
    latency: 1
  - a: r1
    b: r3
    latency: 5
hosts:
  - id: h1
    addr: 10.0.0.1
    router: r1
    latency: 1
  - id: h3
    addr: 10.0.0.3
    router: r3
    latency: 1
`

const chain = `
routers:
  - id: r1
  - id: r2
  - id: r3
links:
  - a: r1
    b: r2
    latency: 1
  - a: r2
    b: r3
    latency: 1
hosts:
  - id: h1
    addr: 10.0.0.1
    router: r1
    latency: 1
`

var (
	h1 = netip.MustParseAddr("10.0.0.1")
	h3 = netip.MustParseAddr("10.0.0.3")
)

func newSim(t *testing.T, topo string, policy state.RouterCfg) *Sim {
	t.Helper()
	cfg, err := state.ParseNetworkCfg([]byte(topo))
	require.NoError(t, err)
	cfg.Router = policy.WithDefaults()
	s, err := New(cfg, nil)
	require.NoError(t, err)
	return s
}

func route(t *testing.T, s *Sim, router state.NodeId, dst netip.Addr) state.RouteEntry {
	t.Helper()
	table, ok := s.Table(router)
	require.True(t, ok, router)
	entry, ok := table[dst]
	require.True(t, ok, "%s has no route to %s:\n%s", router, dst, table)
	return entry
}

func assertUnusable(t *testing.T, s *Sim, router state.NodeId, dst netip.Addr) {
	t.Helper()
	table, _ := s.Table(router)
	if entry, ok := table[dst]; ok {
		assert.False(t, entry.Usable(), "%s still routes to %s: %s", router, dst, entry)
	}
}

func TestEventOrder(t *testing.T) {
	s := newSim(t, chain, state.RouterCfg{})
	order := make([]int, 0)
	s.after(2*time.Millisecond, func() { order = append(order, 3) })
	s.after(time.Millisecond, func() { order = append(order, 1) })
	s.after(time.Millisecond, func() { order = append(order, 2) })
	s.Run(time.Millisecond)
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, time.Millisecond, s.Elapsed())
	s.Run(time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestConvergence(t *testing.T) {
	policies := map[string]state.RouterCfg{
		"plain":          {},
		"split horizon":  {SplitHorizon: true},
		"poison reverse": {PoisonReverse: true},
	}
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			s := newSim(t, triangle, policy)
			s.Run(time.Second)

			assert.Equal(t, state.Port(1), route(t, s, "r1", h3).Port)
			assert.Equal(t, state.Finite(3), route(t, s, "r1", h3).Metric)
			assert.Equal(t, state.Finite(3), route(t, s, "r3", h1).Metric)
			assert.Equal(t, state.Finite(2), route(t, s, "r2", h1).Metric)
			assert.Equal(t, state.Finite(2), route(t, s, "r2", h3).Metric)
			assert.True(t, route(t, s, "r1", h1).Expiry.IsForever())

			tr, err := s.Ping("h1", "h3")
			require.NoError(t, err)
			s.Run(time.Second)
			require.True(t, tr.Delivered, tr.String())
			assert.Equal(t, []state.NodeId{"h1", "r1", "r2", "r3", "h3"}, tr.Path)
			assert.Equal(t, 40*time.Millisecond, tr.Done.Sub(tr.Sent))
		})
	}
}

func TestLinkFailureAndRecovery(t *testing.T) {
	s := newSim(t, triangle, state.RouterCfg{PoisonReverse: true, PoisonOnLinkDown: true})
	s.Run(time.Second)
	require.NoError(t, s.SetLink("r1", "r2", false))

	// poison travels without waiting for a tick
	s.Run(100 * time.Millisecond)
	assert.True(t, route(t, s, "r1", h3).Metric.IsUnreachable())
	assert.True(t, route(t, s, "r2", h1).Metric.IsUnreachable())
	assert.True(t, route(t, s, "r3", h1).Metric.IsUnreachable())

	tr, err := s.Ping("h1", "h3")
	require.NoError(t, err)
	s.Run(100 * time.Millisecond)
	assert.Equal(t, state.NodeId("r1"), tr.DroppedAt)

	// the periodic advertisement repairs the routes over the direct link
	s.Run(s.Cfg.Tick)
	assert.Equal(t, state.Finite(6), route(t, s, "r1", h3).Metric)
	assert.Equal(t, state.Finite(6), route(t, s, "r3", h1).Metric)

	tr, err = s.Ping("h1", "h3")
	require.NoError(t, err)
	s.Run(time.Second)
	require.True(t, tr.Delivered, tr.String())
	assert.Equal(t, []state.NodeId{"h1", "r1", "r3", "h3"}, tr.Path)

	require.NoError(t, s.SetLink("r1", "r2", true))
	s.Run(s.Cfg.Tick)
	assert.Equal(t, state.Finite(3), route(t, s, "r1", h3).Metric)
	assert.Equal(t, state.Port(1), route(t, s, "r1", h3).Port)
	assert.Len(t, s.Traces(), 2)
}

func TestCountToInfinityTerminates(t *testing.T) {
	s := newSim(t, chain, state.RouterCfg{})
	s.Run(time.Second)
	assert.Equal(t, state.Finite(3), route(t, s, "r3", h1).Metric)

	require.NoError(t, s.SetLink("r1", "r2", false))
	s.Run(40 * time.Second)
	assertUnusable(t, s, "r2", h1)
	assertUnusable(t, s, "r3", h1)

	// the poisoned entries eventually age out as well
	s.Run(60 * time.Second)
	for _, id := range []state.NodeId{"r2", "r3"} {
		table, _ := s.Table(id)
		assert.NotContains(t, table, h1, id)
	}
	assert.True(t, route(t, s, "r1", h1).Usable())
}

func TestLatencyIncrease(t *testing.T) {
	policies := map[string]state.RouterCfg{
		"plain":         {},
		"split horizon": {SplitHorizon: true},
	}
	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			s := newSim(t, chain, policy)
			s.Run(time.Second)
			assert.Equal(t, state.Finite(3), route(t, s, "r3", h1).Metric)

			require.NoError(t, s.SetLatency("r1", "r2", 10))
			s.Run(2 * s.Cfg.Tick)

			// r2 must not keep a route through r3, which routes through r2
			r2 := route(t, s, "r2", h1)
			assert.Equal(t, state.Port(1), r2.Port)
			assert.Equal(t, state.Finite(11), r2.Metric)
			assert.Equal(t, state.Finite(12), route(t, s, "r3", h1).Metric)
			lat, ok := s.Router("r2").PortLatency(1)
			require.True(t, ok)
			assert.Equal(t, uint32(10), lat)

			require.NoError(t, s.SetLatency("r2", "r1", 1))
			s.Run(2 * s.Cfg.Tick)
			assert.Equal(t, state.Finite(2), route(t, s, "r2", h1).Metric)
			assert.Equal(t, state.Finite(3), route(t, s, "r3", h1).Metric)
		})
	}
}

func TestLatencyChangeOnDownLink(t *testing.T) {
	s := newSim(t, chain, state.RouterCfg{PoisonOnLinkDown: true})
	s.Run(time.Second)
	require.NoError(t, s.SetLink("r1", "r2", false))
	require.NoError(t, s.SetLatency("r1", "r2", 4))
	s.Run(time.Second)
	assertUnusable(t, s, "r3", h1)
	_, up := s.Router("r1").PortLatency(1)
	assert.False(t, up)

	require.NoError(t, s.SetLink("r1", "r2", true))
	s.Run(2 * s.Cfg.Tick)
	assert.Equal(t, state.Finite(6), route(t, s, "r3", h1).Metric)

	assert.Error(t, s.SetLatency("r1", "r3", 4))
	assert.Error(t, s.SetLatency("r1", "r2", 0))
	assert.Error(t, s.SetLatency("r1", "r2", state.DefaultInfinity))
}

func TestNewFillsDefaults(t *testing.T) {
	cfg := &state.NetworkCfg{
		Routers: []state.NodeCfg{{Id: "r1"}, {Id: "r2"}},
		Links:   []state.LinkCfg{{A: "r1", B: "r2", Latency: 1}},
		Hosts:   []state.HostCfg{{Id: "h1", Addr: h1, Router: "r1", Latency: 1}},
	}
	s, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, state.DefaultTick, cfg.Tick)
	assert.Equal(t, state.DefaultRouterCfg(), cfg.Router)

	s.Run(time.Second)
	assert.Equal(t, state.Finite(2), route(t, s, "r2", h1).Metric)
	s.Run(state.DefaultRouteTTL)
	assert.True(t, route(t, s, "r2", h1).Usable())
}

func TestPingToUnreachableHost(t *testing.T) {
	s := newSim(t, triangle, state.RouterCfg{PoisonOnLinkDown: true})
	s.Run(time.Second)
	require.NoError(t, s.SetLink("r1", "r2", false))
	require.NoError(t, s.SetLink("r1", "r3", false))
	s.Run(100 * time.Millisecond)

	tr, err := s.Ping("h3", "h1")
	require.NoError(t, err)
	s.Run(time.Second)
	assert.True(t, tr.Finished())
	assert.False(t, tr.Delivered)
	assert.Equal(t, state.NodeId("r3"), tr.DroppedAt)
}

func TestErrors(t *testing.T) {
	s := newSim(t, chain, state.RouterCfg{})
	assert.Error(t, s.SetLink("r1", "r3", false))
	assert.NoError(t, s.SetLink("r1", "r2", true))

	_, err := s.Ping("h1", "nope")
	assert.Error(t, err)
	_, err = s.Ping("r1", "h1")
	assert.Error(t, err)

	_, ok := s.Table("nope")
	assert.False(t, ok)
	assert.Nil(t, s.Router("nope"))

	cfg, err := state.ParseNetworkCfg([]byte(chain))
	require.NoError(t, err)
	cfg.Router.SplitHorizon = true
	cfg.Router.PoisonReverse = true
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, state.ErrConflictingPolicy)
}
