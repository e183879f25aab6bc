package node

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/encodeous/distvec/perf"
	"github.com/encodeous/distvec/protocol"
	"github.com/encodeous/distvec/state"
	"github.com/jellydator/ttlcache/v3"
)

type Probe struct {
	Id       uint64
	Src, Dst state.NodeId
	Sent     time.Time
}

type Result struct {
	Sent        uint64
	Delivered   uint64
	Lost        uint64
	InFlight    int
	LastLatency time.Duration // one-way latency of the last delivered probe
}

func (r Result) String() string {
	return fmt.Sprintf("sent=%d delivered=%d lost=%d in-flight=%d last=%s", r.Sent, r.Delivered, r.Lost, r.InFlight, r.LastLatency)
}

// Pinger sends probes between hosts. A probe that has not arrived within the probe timeout
// is counted as lost.
type Pinger struct {
	net         *Network
	inflight    *ttlcache.Cache[uint64, Probe]
	unsub       func()
	nextId      atomic.Uint64
	sent        atomic.Uint64
	delivered   atomic.Uint64
	lost        atomic.Uint64
	lastLatency atomic.Int64
}

func newPinger(n *Network, timeout time.Duration) *Pinger {
	p := &Pinger{net: n}
	p.inflight = ttlcache.New[uint64, Probe](
		ttlcache.WithTTL[uint64, Probe](timeout),
		ttlcache.WithDisableTouchOnHit[uint64, Probe](),
	)
	p.unsub = p.inflight.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[uint64, Probe]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		probe := item.Value()
		p.lost.Add(1)
		perf.ProbesLost.Add(1)
		n.Log.Warn("probe lost", "id", probe.Id, "src", probe.Src, "dst", probe.Dst)
	})
	return p
}

// expire sweeps timed out probes until ctx is done.
func (p *Pinger) expire(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.inflight.DeleteExpired()
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pinger) stop() {
	p.unsub()
}

// Ping injects a probe at host src addressed to host dst and returns its id.
func (p *Pinger) Ping(src, dst state.NodeId) (uint64, error) {
	from := p.net.Cfg.GetHost(src)
	if from == nil {
		return 0, fmt.Errorf("unknown host %s", src)
	}
	to := p.net.Cfg.GetHost(dst)
	if to == nil {
		return 0, fmt.Errorf("unknown host %s", dst)
	}
	if p.net.ctx.Err() != nil {
		return 0, ErrStopped
	}
	probe := Probe{
		Id:   p.nextId.Add(1),
		Src:  src,
		Dst:  dst,
		Sent: time.Now(),
	}
	p.inflight.Set(probe.Id, probe, ttlcache.DefaultTTL)
	p.sent.Add(1)

	frame := protocol.EncodeData(state.Packet{
		Id:      probe.Id,
		Src:     from.Addr,
		Dst:     to.Addr,
		Payload: []byte("probe"),
	})
	port := p.net.hostPorts[src]
	p.net.envs[from.Router].ScheduleTask(func(s *state.State) error {
		return Get[*RouterModule](s).receive(frame, port)
	}, state.LatencyUnit*time.Duration(from.Latency))
	return probe.Id, nil
}

// deliver hands pkt to host after delay.
func (p *Pinger) deliver(host state.NodeId, pkt state.Packet, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if p.net.ctx.Err() != nil {
			return
		}
		p.receive(host, pkt)
	})
}

func (p *Pinger) receive(host state.NodeId, pkt state.Packet) {
	h := p.net.Cfg.GetHost(host)
	if h.Addr != pkt.Dst {
		p.net.Log.Warn("packet delivered to the wrong host", "host", host, "dst", pkt.Dst)
		return
	}
	item, ok := p.inflight.GetAndDelete(pkt.Id)
	if !ok {
		p.net.Log.Debug("late probe", "id", pkt.Id, "host", host)
		return
	}
	probe := item.Value()
	latency := time.Since(probe.Sent)
	p.delivered.Add(1)
	p.lastLatency.Store(int64(latency))
	perf.ProbesDelivered.Add(1)
	p.net.Log.Info("probe delivered", "id", probe.Id, "src", probe.Src, "dst", probe.Dst, "latency", latency)
}

func (p *Pinger) Result() Result {
	return Result{
		Sent:        p.sent.Load(),
		Delivered:   p.delivered.Load(),
		Lost:        p.lost.Load(),
		InFlight:    p.inflight.Len(),
		LastLatency: time.Duration(p.lastLatency.Load()),
	}
}
