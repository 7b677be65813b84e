package mccc

// BackpressureLevel is a purely observational categorization of queue
// fullness; it plays no part in admission decisions.
type BackpressureLevel uint8

const (
	BackpressureNormal BackpressureLevel = iota
	BackpressureWarning
	BackpressureCritical
	BackpressureFull
)

func (b BackpressureLevel) String() string {
	switch b {
	case BackpressureNormal:
		return "normal"
	case BackpressureWarning:
		return "warning"
	case BackpressureCritical:
		return "critical"
	case BackpressureFull:
		return "full"
	default:
		return "unknown"
	}
}

// admissionController decides, for each publish, whether a priority
// may proceed into the ring. Thresholds are percentages of the ring's
// total capacity, per spec.md §4.2.
type admissionController struct {
	ring *ring

	lowThreshold    uint32
	mediumThreshold uint32
	highThreshold   uint32

	backpressureWarning  uint32
	backpressureCritical uint32
}

func newAdmissionController(r *ring) *admissionController {
	cap64 := uint64(r.capacity())
	return &admissionController{
		ring:                 r,
		lowThreshold:         uint32(cap64 * 60 / 100),
		mediumThreshold:      uint32(cap64 * 80 / 100),
		highThreshold:        uint32(cap64 * 99 / 100),
		backpressureWarning:  uint32(cap64 * 75 / 100),
		backpressureCritical: uint32(cap64 * 90 / 100),
	}
}

func (a *admissionController) thresholdFor(p Priority) uint32 {
	switch p {
	case PriorityHigh:
		return a.highThreshold
	case PriorityMedium:
		return a.mediumThreshold
	default:
		return a.lowThreshold
	}
}

// admit runs the two-stage fast/slow-path check described in
// spec.md §4.2. stats is nil in NO_STATS/BARE_METAL mode; admit is
// never called at all in BARE_METAL mode (the bus skips straight to
// the ring).
//
// Returns true if the publish may proceed to the ring.
func (a *admissionController) admit(p Priority, stats *statistics) bool {
	threshold := a.thresholdFor(p)

	prod := a.ring.producerPos()
	cachedCons := a.ring.cachedConsumerPos()
	estimatedDepth := prod - cachedCons

	if estimatedDepth < threshold {
		return true
	}

	// Slow path: the cached cursor may be stale (it can only lag the
	// real consumer cursor, never lead it), so re-check against the
	// authoritative value before deciding to drop.
	realCons := a.ring.refreshCachedConsumerPos()
	realDepth := prod - realCons

	if stats != nil {
		var staleDelta uint32
		if estimatedDepth > realDepth {
			staleDelta = estimatedDepth - realDepth
		}
		stats.recordAdmissionRecheck(staleDelta)
	}

	return realDepth < threshold
}

// backpressureLevel classifies current depth against the ring's
// capacity; 75/90/100% thresholds per spec.md §4.2.
func (a *admissionController) backpressureLevel() BackpressureLevel {
	depth := a.ring.depth()
	capacity := a.ring.capacity()
	switch {
	case depth >= capacity:
		return BackpressureFull
	case depth >= a.backpressureCritical:
		return BackpressureCritical
	case depth >= a.backpressureWarning:
		return BackpressureWarning
	default:
		return BackpressureNormal
	}
}
