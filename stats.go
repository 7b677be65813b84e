package mccc

import "sync/atomic"

// statistics holds independent atomics updated with relaxed ordering;
// no atomic group transactions, so a snapshot may observe skew across
// counters -- acceptable for observability, matching spec.md §5.
type statistics struct {
	published uint64atomicPad
	dropped   uint64atomicPad
	processed uint64atomicPad

	processingErrors uint64atomicPad

	highPublished   uint64atomicPad
	mediumPublished uint64atomicPad
	lowPublished    uint64atomicPad

	highDropped   uint64atomicPad
	mediumDropped uint64atomicPad
	lowDropped    uint64atomicPad

	admissionRecheckCount uint64atomicPad
	staleCacheDepthDelta  uint64atomicPad

	processingLatencyEMANs uint64atomicPad
}

// uint64atomicPad pads an atomic.Uint64 to a full cache line so
// counters touched by different goroutines (producers incrementing
// dropped/published, the consumer incrementing processed) don't share
// a line.
type uint64atomicPad struct {
	v atomic.Uint64
	_ [56]byte
}

func (p *uint64atomicPad) add(delta uint64) { p.v.Add(delta) }
func (p *uint64atomicPad) load() uint64     { return p.v.Load() }
func (p *uint64atomicPad) store(val uint64) { p.v.Store(val) }
func (p *uint64atomicPad) reset()           { p.v.Store(0) }

func (s *statistics) recordPublished(p Priority) {
	s.published.add(1)
	switch p {
	case PriorityHigh:
		s.highPublished.add(1)
	case PriorityMedium:
		s.mediumPublished.add(1)
	case PriorityLow:
		s.lowPublished.add(1)
	}
}

func (s *statistics) recordDropped(p Priority) {
	s.dropped.add(1)
	switch p {
	case PriorityHigh:
		s.highDropped.add(1)
	case PriorityMedium:
		s.mediumDropped.add(1)
	case PriorityLow:
		s.lowDropped.add(1)
	}
}

func (s *statistics) recordProcessed(n uint64) { s.processed.add(n) }

func (s *statistics) recordProcessingError() { s.processingErrors.add(1) }

func (s *statistics) recordAdmissionRecheck(staleDelta uint32) {
	s.admissionRecheckCount.add(1)
	if staleDelta > 0 {
		s.staleCacheDepthDelta.add(uint64(staleDelta))
	}
}

// recordProcessingLatency folds one dispatch's wall time into an
// exponential moving average, mirroring the teacher's
// recordProcessingTime. Safe without a CAS loop because the ring's
// single-consumer guard (Bus.acquireConsumer) ensures only one
// goroutine ever calls this at a time.
func (s *statistics) recordProcessingLatency(ns int64) {
	const alpha = 0.2
	current := s.processingLatencyEMANs.load()
	if current == 0 {
		s.processingLatencyEMANs.store(uint64(ns))
		return
	}
	newAvg := uint64(float64(ns)*alpha + float64(current)*(1-alpha))
	s.processingLatencyEMANs.store(newAvg)
}

func (s *statistics) reset() {
	s.published.reset()
	s.dropped.reset()
	s.processed.reset()
	s.processingErrors.reset()
	s.highPublished.reset()
	s.mediumPublished.reset()
	s.lowPublished.reset()
	s.highDropped.reset()
	s.mediumDropped.reset()
	s.lowDropped.reset()
	s.admissionRecheckCount.reset()
	s.staleCacheDepthDelta.reset()
	s.processingLatencyEMANs.reset()
}

// BusStatisticsSnapshot is a point-in-time copy of the bus's counters.
type BusStatisticsSnapshot struct {
	MessagesPublished uint64
	MessagesDropped   uint64
	MessagesProcessed uint64
	ProcessingErrors  uint64

	HighPriorityPublished   uint64
	MediumPriorityPublished uint64
	LowPriorityPublished    uint64

	HighPriorityDropped   uint64
	MediumPriorityDropped uint64
	LowPriorityDropped    uint64

	AdmissionRecheckCount uint64
	StaleCacheDepthDelta  uint64

	// ProcessingLatencyEMANs is an exponential moving average of
	// dispatch wall time, in nanoseconds. Zero until at least one
	// envelope has been processed in ModeFull.
	ProcessingLatencyEMANs uint64
}

func (s *statistics) snapshot() BusStatisticsSnapshot {
	return BusStatisticsSnapshot{
		MessagesPublished:       s.published.load(),
		MessagesDropped:         s.dropped.load(),
		MessagesProcessed:       s.processed.load(),
		ProcessingErrors:        s.processingErrors.load(),
		HighPriorityPublished:   s.highPublished.load(),
		MediumPriorityPublished: s.mediumPublished.load(),
		LowPriorityPublished:    s.lowPublished.load(),
		HighPriorityDropped:     s.highDropped.load(),
		MediumPriorityDropped:   s.mediumDropped.load(),
		LowPriorityDropped:      s.lowDropped.load(),
		AdmissionRecheckCount:   s.admissionRecheckCount.load(),
		StaleCacheDepthDelta:    s.staleCacheDepthDelta.load(),
		ProcessingLatencyEMANs:  s.processingLatencyEMANs.load(),
	}
}
