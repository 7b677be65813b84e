package mccc

import "sync/atomic"

// PerformanceMode trades observability for throughput. See spec.md
// §4.2.
type PerformanceMode uint32

const (
	// ModeFull runs admission control and all statistics.
	ModeFull PerformanceMode = iota
	// ModeNoStats runs admission control but skips statistics updates.
	ModeNoStats
	// ModeBareMetal skips admission control entirely; the ring's own
	// full/empty checks are the only source of drops. Maximum
	// throughput, minimum observability.
	ModeBareMetal
)

func (m PerformanceMode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeNoStats:
		return "no_stats"
	case ModeBareMetal:
		return "bare_metal"
	default:
		return "unknown"
	}
}

// modeSwitch is a runtime-switchable performance mode backed by a
// relaxed atomic, matching spec.md §4.2's "runtime-switchable via a
// relaxed atomic."
type modeSwitch struct {
	value atomic.Uint32
}

func (m *modeSwitch) set(mode PerformanceMode) { m.value.Store(uint32(mode)) }

func (m *modeSwitch) get() PerformanceMode { return PerformanceMode(m.value.Load()) }
