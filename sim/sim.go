package sim

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"time"

	"github.com/encodeous/distvec/core"
	"github.com/encodeous/distvec/perf"
	"github.com/encodeous/distvec/protocol"
	"github.com/encodeous/distvec/state"
)

// Epoch is the virtual time every simulation starts at.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// MaxHops bounds how far a data packet travels before it is considered looping.
const MaxHops = 64

// Sim is a discrete-event simulation of a NetworkCfg. It is single threaded, nothing in it is
// safe for concurrent use.
type Sim struct {
	Cfg *state.NetworkCfg
	Log *slog.Logger

	now     time.Time
	seq     uint64
	events  eventQueue
	routers map[state.NodeId]*simRouter
	hosts   map[state.NodeId]*simHost
	links   map[state.Pair[state.NodeId, state.NodeId]]bool
	traces  []*Trace
}

type simRouter struct {
	sim   *Sim
	id    state.NodeId
	dv    *core.DVRouter
	ports map[state.Port]state.Attachment
	log   *slog.Logger
}

type simHost struct {
	cfg  state.HostCfg
	port state.Port // port on the router the host is plugged into
}

// Trace follows a single ping through the network.
type Trace struct {
	Id        uint64
	Src, Dst  state.NodeId
	Sent      time.Time
	Path      []state.NodeId
	Delivered bool
	DroppedAt state.NodeId
	Done      time.Time
}

func (t *Trace) Finished() bool {
	return t.Delivered || t.DroppedAt != ""
}

func (t *Trace) String() string {
	switch {
	case t.Delivered:
		return fmt.Sprintf("%s -> %s delivered in %s via %v", t.Src, t.Dst, t.Done.Sub(t.Sent), t.Path)
	case t.DroppedAt != "":
		return fmt.Sprintf("%s -> %s dropped at %s via %v", t.Src, t.Dst, t.DroppedAt, t.Path)
	}
	return fmt.Sprintf("%s -> %s in flight via %v", t.Src, t.Dst, t.Path)
}

func linkKey(a, b state.NodeId) state.Pair[state.NodeId, state.NodeId] {
	return state.MakeSortedPair(a, b)
}

// New builds the network described by cfg. Missing defaults are filled into cfg before it is
// validated. All links that don't start down are brought up and hosts get their static routes
// at the epoch.
func New(cfg *state.NetworkCfg, log *slog.Logger) (*Sim, error) {
	state.ExpandNetworkCfg(cfg)
	err := state.NetworkConfigValidator(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Sim{
		Cfg:     cfg,
		Log:     log,
		now:     Epoch,
		routers: make(map[state.NodeId]*simRouter),
		hosts:   make(map[state.NodeId]*simHost),
		links:   make(map[state.Pair[state.NodeId, state.NodeId]]bool),
	}
	attachments := cfg.Attachments()

	for _, n := range cfg.Routers {
		sr := &simRouter{
			sim:   s,
			id:    n.Id,
			ports: make(map[state.Port]state.Attachment),
			log:   log.With("router", n.Id),
		}
		sr.dv, err = core.NewDVRouter(n.Id, cfg.RouterPolicy(n.Id), sr, s.Now)
		if err != nil {
			return nil, err
		}
		for _, at := range attachments[n.Id] {
			sr.ports[at.Port] = at
		}
		s.routers[n.Id] = sr
	}
	for _, l := range cfg.Links {
		s.links[linkKey(l.A, l.B)] = !l.Down
	}

	for _, n := range cfg.Routers {
		sr := s.routers[n.Id]
		for _, at := range attachments[n.Id] {
			if at.Down {
				continue
			}
			if err := sr.dv.OnLinkUp(at.Port, at.Latency); err != nil {
				return nil, err
			}
		}
	}
	for _, h := range cfg.Hosts {
		sr := s.routers[h.Router]
		idx := slices.IndexFunc(attachments[h.Router], func(at state.Attachment) bool {
			return at.Host && at.Peer == h.Id
		})
		host := &simHost{cfg: h, port: attachments[h.Router][idx].Port}
		s.hosts[h.Id] = host
		sr.dv.OnStaticRouteAdded(h.Addr, host.port)
	}

	for _, n := range cfg.Routers {
		s.tick(s.routers[n.Id])
	}
	return s, nil
}

func (s *Sim) Now() time.Time {
	return s.now
}

// Elapsed is the virtual time since the epoch.
func (s *Sim) Elapsed() time.Duration {
	return s.now.Sub(Epoch)
}

func (s *Sim) after(d time.Duration, fn func()) {
	s.seq++
	s.events.schedule(&event{at: s.now.Add(d), seq: s.seq, fn: fn})
}

func (s *Sim) tick(sr *simRouter) {
	s.after(s.Cfg.Tick, func() {
		sr.dv.OnPeriodicTick()
		s.tick(sr)
	})
}

// Run processes every event due within the next d of virtual time.
func (s *Sim) Run(d time.Duration) {
	end := s.now.Add(d)
	for {
		e := s.events.peek()
		if e == nil || e.at.After(end) {
			break
		}
		s.events.next()
		s.now = e.at
		e.fn()
	}
	s.now = end
}

// SetLink brings the link between routers a and b up or down on both ends.
func (s *Sim) SetLink(a, b state.NodeId, up bool) error {
	key := linkKey(a, b)
	cur, ok := s.links[key]
	if !ok {
		return fmt.Errorf("no link between %s and %s", a, b)
	}
	if cur == up {
		return nil
	}
	s.links[key] = up
	s.Log.Info("link state changed", "a", a, "b", b, "up", up, "at", s.Elapsed())
	for _, pair := range [][2]state.NodeId{{a, b}, {b, a}} {
		at, _ := s.Cfg.FindLink(pair[0], pair[1])
		sr := s.routers[pair[0]]
		if up {
			if err := sr.dv.OnLinkUp(at.Port, at.Latency); err != nil {
				return err
			}
		} else {
			sr.dv.OnLinkDown(at.Port)
		}
	}
	return nil
}

// SetLatency changes the latency of the link between routers a and b. Routers see the change as
// the link going down and coming back up with the new latency.
func (s *Sim) SetLatency(a, b state.NodeId, latency uint32) error {
	idx := slices.IndexFunc(s.Cfg.Links, func(l state.LinkCfg) bool {
		return linkKey(l.A, l.B) == linkKey(a, b)
	})
	if idx == -1 {
		return fmt.Errorf("no link between %s and %s", a, b)
	}
	inf := min(s.Cfg.RouterPolicy(a).Infinity, s.Cfg.RouterPolicy(b).Infinity)
	if latency == 0 || latency >= inf {
		return fmt.Errorf("latency %d must be positive and below infinity (%d)", latency, inf)
	}
	s.Cfg.Links[idx].Latency = latency
	s.Log.Info("link latency changed", "a", a, "b", b, "latency", latency, "at", s.Elapsed())
	up := s.links[linkKey(a, b)]
	for _, pair := range [][2]state.NodeId{{a, b}, {b, a}} {
		at, _ := s.Cfg.FindLink(pair[0], pair[1])
		sr := s.routers[pair[0]]
		sr.ports[at.Port] = at
		if !up {
			continue
		}
		sr.dv.OnLinkDown(at.Port)
		if err := sr.dv.OnLinkUp(at.Port, at.Latency); err != nil {
			return err
		}
	}
	return nil
}

// Ping sends a data packet from host src to host dst. The returned trace fills in as the
// simulation runs.
func (s *Sim) Ping(src, dst state.NodeId) (*Trace, error) {
	from, ok := s.hosts[src]
	if !ok {
		return nil, fmt.Errorf("unknown host %s", src)
	}
	to, ok := s.hosts[dst]
	if !ok {
		return nil, fmt.Errorf("unknown host %s", dst)
	}
	t := &Trace{
		Id:   uint64(len(s.traces) + 1),
		Src:  src,
		Dst:  dst,
		Sent: s.now,
		Path: []state.NodeId{src},
	}
	s.traces = append(s.traces, t)
	frame := protocol.EncodeData(state.Packet{
		Id:      t.Id,
		Src:     from.cfg.Addr,
		Dst:     to.cfg.Addr,
		Payload: []byte("ping"),
	})
	sr := s.routers[from.cfg.Router]
	s.after(state.LatencyUnit*time.Duration(from.cfg.Latency), func() {
		sr.receive(frame, from.port)
	})
	return t, nil
}

func (s *Sim) Traces() []*Trace {
	return s.traces
}

func (s *Sim) trace(id uint64) *Trace {
	if id == 0 || id > uint64(len(s.traces)) {
		return nil
	}
	return s.traces[id-1]
}

// Table returns a copy of a router's routing table.
func (s *Sim) Table(router state.NodeId) (state.Table, bool) {
	sr, ok := s.routers[router]
	if !ok {
		return nil, false
	}
	return sr.dv.Table(), true
}

// Router exposes the router itself, mostly for tests.
func (s *Sim) Router(id state.NodeId) *core.DVRouter {
	sr, ok := s.routers[id]
	if !ok {
		return nil
	}
	return sr.dv
}

func (s *Sim) HostAddr(id state.NodeId) (netip.Addr, bool) {
	h, ok := s.hosts[id]
	if !ok {
		return netip.Addr{}, false
	}
	return h.cfg.Addr, true
}

func (s *Sim) deliverToHost(h *simHost, pkt state.Packet) {
	t := s.trace(pkt.Id)
	if t == nil {
		return
	}
	t.Path = append(t.Path, h.cfg.Id)
	t.Done = s.now
	if pkt.Dst == h.cfg.Addr {
		t.Delivered = true
	} else {
		t.DroppedAt = h.cfg.Id
	}
	s.Log.Debug("packet reached host", "host", h.cfg.Id, "trace", t)
}

func (sr *simRouter) receive(frame []byte, port state.Port) {
	f, err := protocol.Decode(frame)
	if err != nil {
		sr.log.Error("bad frame", "port", port, "err", err)
		return
	}
	if f.Advertisement != nil {
		sr.dv.OnAdvertisement(f.Advertisement.Dst, f.Advertisement.Metric, port)
		return
	}
	pkt := *f.Data
	t := sr.sim.trace(pkt.Id)
	if t != nil {
		t.Path = append(t.Path, sr.id)
		if len(t.Path) > MaxHops {
			t.DroppedAt = sr.id
			t.Done = sr.sim.now
			sr.log.Warn("packet exceeded hop limit", "trace", t)
			return
		}
	}
	if !sr.dv.OnDataPacket(pkt, port) && t != nil {
		t.DroppedAt = sr.id
		t.Done = sr.sim.now
	}
}

func (sr *simRouter) SendAdvertisement(port state.Port, dst netip.Addr, metric state.Metric) {
	at, ok := sr.ports[port]
	if !ok || at.Host {
		// hosts don't take part in routing
		return
	}
	if !sr.sim.links[linkKey(sr.id, at.Peer)] {
		return
	}
	perf.AdvertisementsSent.Add(1)
	frame := protocol.EncodeAdvertisement(protocol.Advertisement{Dst: dst, Metric: metric})
	peer := sr.sim.routers[at.Peer]
	sr.sim.after(state.LatencyUnit*time.Duration(at.Latency), func() {
		// frames in flight are lost if the link goes down
		if sr.sim.links[linkKey(sr.id, at.Peer)] {
			peer.receive(frame, at.PeerPort)
		}
	})
}

func (sr *simRouter) ForwardPacket(pkt state.Packet, port state.Port) {
	at, ok := sr.ports[port]
	if !ok {
		sr.log.Error("forward to unknown port", "port", port)
		return
	}
	s := sr.sim
	lost := func() {
		if t := s.trace(pkt.Id); t != nil {
			t.DroppedAt = sr.id
			t.Done = s.now
		}
	}
	delay := state.LatencyUnit * time.Duration(at.Latency)
	if at.Host {
		h := s.hosts[at.Peer]
		s.after(delay, func() {
			s.deliverToHost(h, pkt)
		})
		return
	}
	if !s.links[linkKey(sr.id, at.Peer)] {
		lost()
		return
	}
	frame := protocol.EncodeData(pkt)
	peer := s.routers[at.Peer]
	s.after(delay, func() {
		if s.links[linkKey(sr.id, at.Peer)] {
			peer.receive(frame, at.PeerPort)
		} else {
			lost()
		}
	})
}

func (sr *simRouter) Log(event core.RouterEvent, desc string, args ...any) {
	level := slog.LevelDebug
	if event.IsWarning() {
		level = slog.LevelWarn
	}
	sr.log.Log(context.Background(), level, desc, append([]any{"event", event, "at", sr.sim.Elapsed()}, args...)...)
}
