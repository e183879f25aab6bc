package state

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var ErrPortUp = errors.New("port is already up")

// PortRegistry tracks the links that are currently up and their one-hop latency.
type PortRegistry struct {
	latency map[Port]uint32
}

func NewPortRegistry() *PortRegistry {
	return &PortRegistry{latency: make(map[Port]uint32)}
}

func (p *PortRegistry) AddPort(port Port, latency uint32) error {
	if _, ok := p.latency[port]; ok {
		return fmt.Errorf("add port %d: %w", port, ErrPortUp)
	}
	p.latency[port] = latency
	return nil
}

func (p *PortRegistry) RemovePort(port Port) {
	delete(p.latency, port)
}

func (p *PortRegistry) Latency(port Port) (uint32, bool) {
	lat, ok := p.latency[port]
	return lat, ok
}

func (p *PortRegistry) Has(port Port) bool {
	_, ok := p.latency[port]
	return ok
}

// All returns the ports that are up, in ascending order.
func (p *PortRegistry) All() []Port {
	return slices.Sorted(maps.Keys(p.latency))
}
