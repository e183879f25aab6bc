package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/encodeous/distvec/state"
)

var ErrStopped = errors.New("network stopped")

// Network runs every router of a NetworkCfg on its own main loop in this process.
// Routers talk over in-memory links that honour the configured latencies.
type Network struct {
	Cfg    *state.NetworkCfg
	Log    *slog.Logger
	Pinger *Pinger

	ctx       context.Context
	cancel    context.CancelCauseFunc
	envs      map[state.NodeId]*state.Env
	links     map[state.Pair[state.NodeId, state.NodeId]]*atomic.Bool
	hostPorts map[state.NodeId]state.Port
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// Start fills in missing defaults, validates cfg and starts all routers. The network runs until
// ctx is cancelled or Stop is called.
func Start(ctx context.Context, cfg *state.NetworkCfg, log *slog.Logger) (*Network, error) {
	state.ExpandNetworkCfg(cfg)
	err := state.NetworkConfigValidator(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	n := &Network{
		Cfg:       cfg,
		Log:       log,
		envs:      make(map[state.NodeId]*state.Env),
		links:     make(map[state.Pair[state.NodeId, state.NodeId]]*atomic.Bool),
		hostPorts: make(map[state.NodeId]state.Port),
	}
	n.ctx, n.cancel = context.WithCancelCause(ctx)
	n.Pinger = newPinger(n, state.ProbeTimeout)

	for _, l := range cfg.Links {
		up := &atomic.Bool{}
		up.Store(!l.Down)
		n.links[state.MakeSortedPair(l.A, l.B)] = up
	}
	for _, attachments := range cfg.Attachments() {
		for _, at := range attachments {
			if at.Host {
				n.hostPorts[at.Peer] = at.Port
			}
		}
	}

	states := make([]*state.State, 0, len(cfg.Routers))
	for _, r := range cfg.Routers {
		rctx, rcancel := context.WithCancelCause(n.ctx)
		s := &state.State{
			Modules: make(map[string]state.NyModule),
			Env: &state.Env{
				DispatchChannel: make(chan func(*state.State) error, state.DispatchBufferSize),
				Id:              r.Id,
				Policy:          cfg.RouterPolicy(r.Id),
				Network:         cfg,
				Context:         rctx,
				Cancel:          rcancel,
				Log:             log.With("router", r.Id),
			},
		}
		n.envs[r.Id] = s.Env
		states = append(states, s)
	}
	// every env exists before any router can send to it
	for _, s := range states {
		err = initModules(s, &RouterModule{net: n})
		if err != nil {
			n.cancel(err)
			n.Pinger.stop()
			return nil, fmt.Errorf("router %s: %w", s.Id, err)
		}
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.Pinger.expire(n.ctx, state.ProbeTimeout/10)
	}()
	for _, s := range states {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			MainLoop(s, s.DispatchChannel)
		}()
	}
	log.Info("network started", "routers", len(states), "links", len(cfg.Links), "hosts", len(cfg.Hosts))
	return n, nil
}

// Stop shuts every router down and waits for the main loops to exit.
func (n *Network) Stop() {
	n.stopOnce.Do(func() {
		n.cancel(ErrStopped)
		n.wg.Wait()
		n.Pinger.stop()
		n.Log.Info("network stopped")
	})
}

// Done is closed once the network has been asked to stop.
func (n *Network) Done() <-chan struct{} {
	return n.ctx.Done()
}

func (n *Network) linkUp(a, b state.NodeId) bool {
	up, ok := n.links[state.MakeSortedPair(a, b)]
	return ok && up.Load()
}

// SetLink brings the link between routers a and b up or down on both ends.
func (n *Network) SetLink(a, b state.NodeId, up bool) error {
	flag, ok := n.links[state.MakeSortedPair(a, b)]
	if !ok {
		return fmt.Errorf("no link between %s and %s", a, b)
	}
	if flag.Swap(up) == up {
		return nil
	}
	n.Log.Info("link state changed", "a", a, "b", b, "up", up)
	for _, pair := range [][2]state.NodeId{{a, b}, {b, a}} {
		at, _ := n.Cfg.FindLink(pair[0], pair[1])
		n.envs[pair[0]].Dispatch(func(s *state.State) error {
			r := Get[*RouterModule](s)
			if up {
				return r.OnLinkUp(at.Port, at.Latency)
			}
			r.OnLinkDown(at.Port)
			return nil
		})
	}
	return nil
}

// Table returns a copy of a router's current routing table.
func (n *Network) Table(id state.NodeId) (state.Table, error) {
	env, ok := n.envs[id]
	if !ok {
		return nil, fmt.Errorf("unknown router %s", id)
	}
	res, err := env.DispatchWait(func(s *state.State) (any, error) {
		return Get[*RouterModule](s).Table(), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(state.Table), nil
}

// Routers lists the router ids in declaration order.
func (n *Network) Routers() []state.NodeId {
	ids := make([]state.NodeId, 0, len(n.Cfg.Routers))
	for _, r := range n.Cfg.Routers {
		ids = append(ids, r.Id)
	}
	return ids
}
