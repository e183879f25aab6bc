package state

import (
	"fmt"
	"net/netip"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func RouterConfigValidator(cfg *RouterCfg) error {
	if cfg.SplitHorizon && cfg.PoisonReverse {
		return ErrConflictingPolicy
	}
	if cfg.RouteTTL <= 0 {
		return fmt.Errorf("route_ttl must be positive, got %s", cfg.RouteTTL)
	}
	if cfg.GarbageTTL < 0 {
		return fmt.Errorf("garbage_ttl must not be negative, got %s", cfg.GarbageTTL)
	}
	if cfg.Infinity < 2 {
		return fmt.Errorf("infinity must be at least 2, got %d", cfg.Infinity)
	}
	return nil
}

func latencyValidator(latency uint32, infinity uint32) error {
	if latency == 0 {
		return fmt.Errorf("latency must be positive")
	}
	if latency >= infinity {
		return fmt.Errorf("latency %d must be below infinity (%d)", latency, infinity)
	}
	return nil
}

func NetworkConfigValidator(cfg *NetworkCfg) error {
	err := RouterConfigValidator(&cfg.Router)
	if err != nil {
		return err
	}
	if cfg.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", cfg.Tick)
	}
	names := make([]NodeId, 0)
	for _, node := range cfg.Routers {
		err = NameValidator(string(node.Id))
		if err != nil {
			return err
		}
		if slices.Contains(names, node.Id) {
			return fmt.Errorf("duplicate node id: %s", node.Id)
		}
		names = append(names, node.Id)
		if node.Router != nil {
			err = RouterConfigValidator(node.Router)
			if err != nil {
				return fmt.Errorf("router %s: %w", node.Id, err)
			}
		}
	}
	edges := make([]Pair[NodeId, NodeId], 0)
	for _, link := range cfg.Links {
		if cfg.GetRouter(link.A) == nil {
			return fmt.Errorf("node %s not defined", link.A)
		}
		if cfg.GetRouter(link.B) == nil {
			return fmt.Errorf("node %s not defined", link.B)
		}
		if link.A == link.B {
			return fmt.Errorf("link from %s to itself", link.A)
		}
		edge := MakeSortedPair(link.A, link.B)
		if slices.Contains(edges, edge) {
			return fmt.Errorf("duplicate link found: %s, %s", link.A, link.B)
		}
		edges = append(edges, edge)
		err = latencyValidator(link.Latency, min(cfg.RouterPolicy(link.A).Infinity, cfg.RouterPolicy(link.B).Infinity))
		if err != nil {
			return fmt.Errorf("link %s-%s: %w", link.A, link.B, err)
		}
	}
	addrs := make([]netip.Addr, 0)
	for _, host := range cfg.Hosts {
		err = NameValidator(string(host.Id))
		if err != nil {
			return err
		}
		if slices.Contains(names, host.Id) {
			return fmt.Errorf("duplicate node id: %s", host.Id)
		}
		names = append(names, host.Id)
		if !host.Addr.IsValid() {
			return fmt.Errorf("host %s has an invalid address", host.Id)
		}
		if slices.Contains(addrs, host.Addr) {
			return fmt.Errorf("duplicate host address: %s", host.Addr)
		}
		addrs = append(addrs, host.Addr)
		if cfg.GetRouter(host.Router) == nil {
			return fmt.Errorf("host %s: router %s not defined", host.Id, host.Router)
		}
		err = latencyValidator(host.Latency, cfg.RouterPolicy(host.Router).Infinity)
		if err != nil {
			return fmt.Errorf("host %s: %w", host.Id, err)
		}
	}
	return nil
}
