package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/encodeous/distvec/sim"
	"github.com/encodeous/distvec/state"
)

var topologyPath string

type hostPair struct {
	Src, Dst state.NodeId
}

// parsePairs reads "h1:h2" arguments.
func parsePairs(args []string) ([]hostPair, error) {
	pairs := make([]hostPair, 0, len(args))
	for _, arg := range args {
		a, b, ok := strings.Cut(arg, ":")
		if !ok || a == "" || b == "" {
			return nil, fmt.Errorf("expected src:dst, got %q", arg)
		}
		pairs = append(pairs, hostPair{state.NodeId(a), state.NodeId(b)})
	}
	return pairs, nil
}

type linkEvent struct {
	A, B state.NodeId
	At   time.Duration
	Up   bool
}

// parseLinkEvents reads "r1:r2@20s" arguments.
func parseLinkEvents(args []string, up bool) ([]linkEvent, error) {
	events := make([]linkEvent, 0, len(args))
	for _, arg := range args {
		link, at, ok := strings.Cut(arg, "@")
		if !ok {
			return nil, fmt.Errorf("expected a:b@time, got %q", arg)
		}
		pair, err := parsePairs([]string{link})
		if err != nil {
			return nil, err
		}
		d, err := time.ParseDuration(at)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		events = append(events, linkEvent{A: pair[0].Src, B: pair[0].Dst, At: d, Up: up})
	}
	return events, nil
}

// pingWindow is long enough for any packet to cross the network or be dropped. A route's
// metric stays below the largest infinity of any router, and a packet takes at most
// sim.MaxHops hops.
func pingWindow(cfg *state.NetworkCfg) time.Duration {
	var inf uint32
	for _, r := range cfg.Routers {
		inf = max(inf, cfg.RouterPolicy(r.Id).Infinity)
	}
	return time.Duration(sim.MaxHops) * time.Duration(inf) * state.LatencyUnit
}

func loadTopology() *state.NetworkCfg {
	cfg, err := state.LoadNetworkCfg(topologyPath)
	if err != nil {
		panic(err)
	}
	return cfg
}
