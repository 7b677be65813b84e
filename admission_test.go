package mccc

import "testing"

func TestAdmission_ThresholdsScaleWithPriority(t *testing.T) {
	r := newRing(128, true)
	a := newAdmissionController(r)

	if a.lowThreshold >= a.mediumThreshold || a.mediumThreshold >= a.highThreshold {
		t.Fatalf("thresholds not strictly increasing: low=%d medium=%d high=%d",
			a.lowThreshold, a.mediumThreshold, a.highThreshold)
	}
}

func TestAdmission_LowDroppedBeforeHighAtSameDepth(t *testing.T) {
	r := newRing(128, true)
	a := newAdmissionController(r)
	stats := &statistics{}

	// Fill the ring's producer cursor up to exactly the LOW threshold
	// without a consumer, so cachedConsumerCursor stays at 0 and depth
	// tracks producerCursor directly.
	for uint32(r.producerPos()) < a.lowThreshold {
		if _, _, ok := r.tryReserve(); !ok {
			t.Fatalf("tryReserve failed while priming depth")
		}
	}

	if a.admit(PriorityLow, stats) {
		t.Fatalf("LOW admitted at its own threshold depth")
	}
	if !a.admit(PriorityHigh, stats) {
		t.Fatalf("HIGH rejected at a depth still below its own threshold")
	}
}

func TestAdmission_SlowPathRechecksAgainstRealCursor(t *testing.T) {
	r := newRing(128, true)
	a := newAdmissionController(r)
	stats := &statistics{}

	for i := 0; i < int(a.lowThreshold); i++ {
		slot, pos, ok := r.tryReserve()
		if !ok {
			t.Fatalf("tryReserve failed while priming depth")
		}
		r.commit(slot, pos, Envelope{})
	}
	// Consume everything so the real consumer cursor has caught up,
	// but never refresh the cache -- the fast path alone would see
	// stale depth and wrongly drop.
	r.tryConsumeBatch(uint32(a.lowThreshold), func(*Envelope) {})

	if !a.admit(PriorityLow, stats) {
		t.Fatalf("LOW rejected despite real depth being empty after slow-path recheck")
	}
	if stats.admissionRecheckCount.load() == 0 {
		t.Fatalf("expected at least one recorded admission recheck")
	}
}

func TestBackpressureLevel_Thresholds(t *testing.T) {
	r := newRing(128, true)
	a := newAdmissionController(r)

	if got := a.backpressureLevel(); got != BackpressureNormal {
		t.Fatalf("empty ring backpressure = %v, want NORMAL", got)
	}

	for i := 0; i < 128; i++ {
		r.tryReserve()
	}
	if got := a.backpressureLevel(); got != BackpressureFull {
		t.Fatalf("full ring backpressure = %v, want FULL", got)
	}
}
