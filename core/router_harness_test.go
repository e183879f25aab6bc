package core

import (
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/distvec/state"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

type RouterHarness struct {
	actions []HarnessEvent
	now     time.Time
}

func NewHarness() *RouterHarness {
	return &RouterHarness{now: epoch}
}

func (h *RouterHarness) Now() time.Time {
	return h.now
}

func (h *RouterHarness) Advance(d time.Duration) time.Time {
	h.now = h.now.Add(d)
	return h.now
}

func (h *RouterHarness) SendAdvertisement(port state.Port, dst netip.Addr, metric state.Metric) {
	h.actions = append(h.actions, MakeEvent("ADVERTISE", port, dst, metric))
}

func (h *RouterHarness) ForwardPacket(pkt state.Packet, port state.Port) {
	h.actions = append(h.actions, MakeEvent("FORWARD", port, pkt.Dst))
}

func (h *RouterHarness) Log(event RouterEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.actions = append(h.actions, MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns and clears everything recorded so far, except logs. Logs stay until
// GetLogs is called.
func (h *RouterHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	logs := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		} else {
			logs = append(logs, action)
		}
	}

	h.actions = logs
	return x
}

// GetLogs returns and clears the recorded log events.
func (h *RouterHarness) GetLogs() []RouterEvent {
	x := make([]RouterEvent, 0)
	rest := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			x = append(x, action.Args[0].(RouterEvent))
		} else {
			rest = append(rest, action)
		}
	}
	h.actions = rest
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg, cmpopts.EquateComparable(netip.Addr{}, state.Metric{})) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

func Addr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

// NewTestRouter builds a router driven by the harness clock with the given ports up.
func NewTestRouter(t *testing.T, h *RouterHarness, cfg state.RouterCfg, ports map[state.Port]uint32) *DVRouter {
	t.Helper()
	r, err := NewDVRouter("r", cfg, h, h.Now)
	if err != nil {
		t.Fatal(err)
	}
	for _, port := range slices.Sorted(maps.Keys(ports)) {
		if err := r.OnLinkUp(port, ports[port]); err != nil {
			t.Fatal(err)
		}
	}
	h.GetActions()
	h.GetLogs()
	return r
}
