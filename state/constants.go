package state

import "time"

var (
	DefaultRouteTTL   = time.Second * 15
	DefaultGarbageTTL = time.Second * 10 // intended dead-entry lifetime, documentation only
	DefaultInfinity   = (uint32)(16)     // any cost at or above this is unreachable
	DefaultTick       = time.Second * 5

	// LatencyUnit is how long one unit of link latency takes to cross a link in the simulators.
	LatencyUnit = time.Millisecond * 10

	ProbeTimeout       = time.Second * 3
	DispatchBufferSize = 128
)
