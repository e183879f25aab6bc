package core

import "strconv"

type RouterEvent int

// trace events

const (
	RouteAdded RouterEvent = iota
	RouteImproved
	RouteUpdated
	RoutePoisoned
	StaleRouteDropped
	ExpiredRoutePoisoned
	PacketDropped
	UnknownPort
)

// warn events

const (
	InconsistentState RouterEvent = iota + 1000
)

var eventNames = map[RouterEvent]string{
	RouteAdded:           "RouteAdded",
	RouteImproved:        "RouteImproved",
	RouteUpdated:         "RouteUpdated",
	RoutePoisoned:        "RoutePoisoned",
	StaleRouteDropped:    "StaleRouteDropped",
	ExpiredRoutePoisoned: "ExpiredRoutePoisoned",
	PacketDropped:        "PacketDropped",
	UnknownPort:          "UnknownPort",
	InconsistentState:    "InconsistentState",
}

func (e RouterEvent) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "RouterEvent(" + strconv.Itoa(int(e)) + ")"
}

// IsWarning reports whether the event points at a bug rather than normal convergence.
func (e RouterEvent) IsWarning() bool {
	return e >= InconsistentState
}
