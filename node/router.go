package node

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/encodeous/distvec/core"
	"github.com/encodeous/distvec/perf"
	"github.com/encodeous/distvec/protocol"
	"github.com/encodeous/distvec/state"
)

// RouterModule runs a DVRouter inside a router's main loop and moves its frames over the
// in-memory links of the network.
type RouterModule struct {
	*core.DVRouter
	net   *Network
	ports map[state.Port]state.Attachment
	log   *slog.Logger
}

func (r *RouterModule) Init(s *state.State) error {
	s.Log.Debug("init router")
	dv, err := core.NewDVRouter(s.Id, s.Policy, r, time.Now)
	if err != nil {
		return err
	}
	r.DVRouter = dv
	r.log = s.Log
	r.ports = make(map[state.Port]state.Attachment)

	attachments := s.Network.Attachments()[s.Id]
	for _, at := range attachments {
		r.ports[at.Port] = at
		if at.Down {
			continue
		}
		if err := r.OnLinkUp(at.Port, at.Latency); err != nil {
			return err
		}
	}
	for _, at := range attachments {
		if at.Host {
			r.OnStaticRouteAdded(s.Network.GetHost(at.Peer).Addr, at.Port)
		}
	}
	s.Env.RepeatTask(periodicTick, s.Network.Tick)
	return nil
}

func (r *RouterModule) Cleanup(s *state.State) error {
	s.Log.Debug("final routing table", "table", r.Table().String())
	return nil
}

func periodicTick(s *state.State) error {
	r := Get[*RouterModule](s)
	res := r.OnPeriodicTick()
	if res.Changed() {
		s.Log.Debug("expired routes", "dropped", res.Dropped, "poisoned", res.Poisoned)
	}
	return nil
}

func (r *RouterModule) receive(frame []byte, port state.Port) error {
	f, err := protocol.Decode(frame)
	if err != nil {
		r.log.Error("bad frame", "port", port, "err", err)
		return nil
	}
	if f.Advertisement != nil {
		r.OnAdvertisement(f.Advertisement.Dst, f.Advertisement.Metric, port)
	} else {
		r.OnDataPacket(*f.Data, port)
	}
	return nil
}

// transmit hands frame to the router on the other end of port after the link latency.
// Frames on a link that is down when they arrive are lost.
func (r *RouterModule) transmit(at state.Attachment, frame []byte) {
	if !r.net.linkUp(r.Id(), at.Peer) {
		return
	}
	peer := r.net.envs[at.Peer]
	self := r.Id()
	peer.ScheduleTask(func(s *state.State) error {
		if !r.net.linkUp(self, at.Peer) {
			return nil
		}
		return Get[*RouterModule](s).receive(frame, at.PeerPort)
	}, state.LatencyUnit*time.Duration(at.Latency))
}

func (r *RouterModule) SendAdvertisement(port state.Port, dst netip.Addr, metric state.Metric) {
	at, ok := r.ports[port]
	if !ok || at.Host {
		return
	}
	perf.AdvertisementsSent.Add(1)
	r.transmit(at, protocol.EncodeAdvertisement(protocol.Advertisement{Dst: dst, Metric: metric}))
}

func (r *RouterModule) ForwardPacket(pkt state.Packet, port state.Port) {
	at, ok := r.ports[port]
	if !ok {
		r.log.Error("forward to unknown port", "port", port)
		return
	}
	if at.Host {
		r.net.Pinger.deliver(at.Peer, pkt, state.LatencyUnit*time.Duration(at.Latency))
		return
	}
	r.transmit(at, protocol.EncodeData(pkt))
}

func (r *RouterModule) Log(event core.RouterEvent, desc string, args ...any) {
	level := slog.LevelDebug
	if event.IsWarning() {
		level = slog.LevelWarn
	}
	r.log.Log(context.Background(), level, desc, append([]any{"event", event}, args...)...)
}
