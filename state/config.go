package state

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
)

var ErrConflictingPolicy = errors.New("split horizon and poison reverse can't both be on")

// RouterCfg holds the per-router protocol policy. It is fixed once a router is constructed.
type RouterCfg struct {
	RouteTTL   time.Duration `yaml:"route_ttl,omitempty"`   // how long an accepted route lives without a refresh
	GarbageTTL time.Duration `yaml:"garbage_ttl,omitempty"` // intended lifetime of dead entries, not used by the algorithm
	Infinity   uint32        `yaml:"infinity,omitempty"`    // costs at or above this are unreachable

	// At most one of these should ever be on at once
	SplitHorizon  bool `yaml:"split_horizon,omitempty"`
	PoisonReverse bool `yaml:"poison_reverse,omitempty"`

	PoisonExpired    bool `yaml:"poison_expired,omitempty"`      // send poison for expired routes
	SendOnLinkUp     bool `yaml:"send_on_link_up,omitempty"`     // send the full table to a new neighbour
	PoisonOnLinkDown bool `yaml:"poison_on_link_down,omitempty"` // poison routes through a failed link
}

func DefaultRouterCfg() RouterCfg {
	return RouterCfg{
		RouteTTL:   DefaultRouteTTL,
		GarbageTTL: DefaultGarbageTTL,
		Infinity:   DefaultInfinity,
	}
}

// WithDefaults fills in unset numeric fields.
func (c RouterCfg) WithDefaults() RouterCfg {
	if c.RouteTTL == 0 {
		c.RouteTTL = DefaultRouteTTL
	}
	if c.GarbageTTL == 0 {
		c.GarbageTTL = DefaultGarbageTTL
	}
	if c.Infinity == 0 {
		c.Infinity = DefaultInfinity
	}
	return c
}

type NodeCfg struct {
	Id     NodeId
	Router *RouterCfg `yaml:"router,omitempty"` // replaces the network-wide policy when set
}

type LinkCfg struct {
	A       NodeId
	B       NodeId
	Latency uint32
	Down    bool `yaml:"down,omitempty"` // the link starts down
}

type HostCfg struct {
	Id      NodeId
	Addr    netip.Addr
	Router  NodeId
	Latency uint32
}

// NetworkCfg describes a whole topology of routers, links and hosts.
type NetworkCfg struct {
	Router  RouterCfg     `yaml:"router,omitempty"`
	Tick    time.Duration `yaml:"tick,omitempty"`
	Routers []NodeCfg
	Links   []LinkCfg `yaml:",omitempty"`
	Hosts   []HostCfg `yaml:",omitempty"`
}

// Attachment is one port of a router and whatever is plugged into it.
type Attachment struct {
	Port     Port
	Peer     NodeId
	PeerPort Port // port on the peer router, 0 when the peer is a host
	Latency  uint32
	Host     bool
	Down     bool
}

func (c *NetworkCfg) GetRouter(id NodeId) *NodeCfg {
	idx := slices.IndexFunc(c.Routers, func(n NodeCfg) bool {
		return n.Id == id
	})
	if idx == -1 {
		return nil
	}
	return &c.Routers[idx]
}

func (c *NetworkCfg) GetHost(id NodeId) *HostCfg {
	idx := slices.IndexFunc(c.Hosts, func(h HostCfg) bool {
		return h.Id == id
	})
	if idx == -1 {
		return nil
	}
	return &c.Hosts[idx]
}

func (c *NetworkCfg) HostByAddr(addr netip.Addr) *HostCfg {
	idx := slices.IndexFunc(c.Hosts, func(h HostCfg) bool {
		return h.Addr == addr
	})
	if idx == -1 {
		return nil
	}
	return &c.Hosts[idx]
}

// RouterPolicy returns the policy a router runs with.
func (c *NetworkCfg) RouterPolicy(id NodeId) RouterCfg {
	n := c.GetRouter(id)
	if n != nil && n.Router != nil {
		return n.Router.WithDefaults()
	}
	return c.Router.WithDefaults()
}

// Attachments assigns port numbers. Each router numbers its ports from 1, links first in
// declaration order, then hosts.
func (c *NetworkCfg) Attachments() map[NodeId][]Attachment {
	next := make(map[NodeId]Port)
	alloc := func(id NodeId) Port {
		next[id]++
		return next[id]
	}
	out := make(map[NodeId][]Attachment)
	for _, l := range c.Links {
		pa := alloc(l.A)
		pb := alloc(l.B)
		out[l.A] = append(out[l.A], Attachment{Port: pa, Peer: l.B, PeerPort: pb, Latency: l.Latency, Down: l.Down})
		out[l.B] = append(out[l.B], Attachment{Port: pb, Peer: l.A, PeerPort: pa, Latency: l.Latency, Down: l.Down})
	}
	for _, h := range c.Hosts {
		p := alloc(h.Router)
		out[h.Router] = append(out[h.Router], Attachment{Port: p, Peer: h.Id, Latency: h.Latency, Host: true})
	}
	return out
}

// FindLink returns the attachment on router a that leads to router b.
func (c *NetworkCfg) FindLink(a, b NodeId) (Attachment, bool) {
	for _, at := range c.Attachments()[a] {
		if !at.Host && at.Peer == b {
			return at, true
		}
	}
	return Attachment{}, false
}

func ExpandNetworkCfg(cfg *NetworkCfg) {
	cfg.Router = cfg.Router.WithDefaults()
	if cfg.Tick == 0 {
		cfg.Tick = DefaultTick
	}
	for i := range cfg.Routers {
		if cfg.Routers[i].Router != nil {
			x := cfg.Routers[i].Router.WithDefaults()
			cfg.Routers[i].Router = &x
		}
	}
}

func ParseNetworkCfg(data []byte) (*NetworkCfg, error) {
	cfg := &NetworkCfg{}
	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}
	ExpandNetworkCfg(cfg)
	err = NetworkConfigValidator(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadNetworkCfg(path string) (*NetworkCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseNetworkCfg(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
