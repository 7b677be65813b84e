package mccc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// overflowGuard is the msg_id value above which Publish refuses new
// work rather than risk wraparound of the monotonic counter, matching
// spec.md §3's UINT64_MAX-10000 guard.
const overflowGuard = ^uint64(0) - 10000

// Bus is the central façade: admission control in front of a bounded
// ring queue, with a typed dispatch table driving consumption. It is
// the mccc analogue of the teacher's topic/transport Bus, with the
// transport replaced by the in-process ring and the codec/topic layer
// replaced by the payload registry's tag dispatch.
type Bus struct {
	ring      *ring
	admission *admissionController
	dispatch  *dispatchTable
	registry  *payloadRegistry
	stats     *statistics
	mode      modeSwitch
	errorCb   errorCallback
	msgIDSeq  atomic.Uint64
	recovery  DispatchMiddleware

	clock  xclock.Clock
	logger *xlog.Logger

	baseCtx context.Context

	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer

	closed    atomic.Bool
	closeOnce sync.Once
}

// Publish enqueues payload at PriorityMedium. It is a convenience
// wrapper over PublishWithPriority for callers that don't need
// priority control, matching the original's Publish(payload, sender_id),
// which hardcodes MessagePriority::MEDIUM.
func (b *Bus) Publish(payload any, senderID uint32) bool {
	return b.PublishWithPriority(payload, PriorityMedium, senderID)
}

// PublishWithPriority runs admission control (unless the bus is in
// BARE_METAL mode) and, if admitted, reserves a ring slot and commits
// the envelope. Returns false on admission drop, unregistered payload
// type, msg_id overflow, or ring exhaustion -- all of these are
// reported through the error callback rather than via a Go error,
// since the hot path must not allocate an error value per call.
// The one exception is ring exhaustion in BARE_METAL mode, which
// returns false without reporting.
func (b *Bus) PublishWithPriority(payload any, priority Priority, senderID uint32) bool {
	if b.closed.Load() {
		return false
	}

	tag, ok := b.registry.tagFor(payload)
	if !ok {
		b.errorCb.report(ErrInvalidMessage, 0)
		return false
	}

	// msg_id is assigned at admit time (spec.md §3), so a dropped
	// publish must not consume one. peekID only previews the value a
	// successful publish would get, for the overflow check and for
	// failure-path error reporting; it is never stored back.
	peekID := b.msgIDSeq.Load() + 1
	if peekID >= overflowGuard {
		b.errorCb.report(ErrOverflowDetected, peekID)
		b.emitAsync(LifecycleEvent{Type: EventOverflowDetected, Priority: priority, Tag: tag, MsgID: peekID})
		return false
	}

	mode := b.mode.get()
	if mode != ModeBareMetal {
		var statsArg *statistics
		if mode == ModeFull {
			statsArg = b.stats
		}
		if !b.admission.admit(priority, statsArg) {
			if mode == ModeFull {
				b.stats.recordDropped(priority)
			}
			b.errorCb.report(ErrQueueFull, peekID)
			b.emitAsync(LifecycleEvent{Type: EventAdmissionDropped, Priority: priority, Tag: tag, MsgID: peekID})
			return false
		}
	}

	slot, pos, ok := b.ring.tryReserve()
	if !ok {
		if mode == ModeFull {
			b.stats.recordDropped(priority)
		}
		// BARE_METAL skips error reporting entirely, matching the
		// original's no_stats-gated ReportError (spec.md §7).
		if mode != ModeBareMetal {
			b.errorCb.report(ErrQueueFull, peekID)
			b.emitAsync(LifecycleEvent{Type: EventAdmissionDropped, Priority: priority, Tag: tag, MsgID: peekID})
		}
		return false
	}

	msgID := b.msgIDSeq.Add(1)

	env := Envelope{
		Header: MessageHeader{
			MsgID:       msgID,
			TimestampUs: uint64(b.clock.Now().UnixMicro()),
			SenderID:    senderID,
			Priority:    priority,
		},
		Payload: payload,
		tag:     tag,
	}
	b.ring.commit(slot, pos, env)

	if mode == ModeFull {
		b.stats.recordPublished(priority)
	}
	return true
}

// PublishFast skips the clock read on the hot path by taking the
// caller-supplied timestampUs instead, matching the original's
// PublishFast(payload, sender_id, timestamp_us), which likewise
// hardcodes MessagePriority::MEDIUM rather than taking a priority
// argument.
func (b *Bus) PublishFast(payload any, senderID uint32, timestampUs uint64) bool {
	if b.closed.Load() {
		return false
	}
	tag, ok := b.registry.tagFor(payload)
	if !ok {
		b.errorCb.report(ErrInvalidMessage, 0)
		return false
	}

	// See PublishWithPriority: msg_id is assigned at admit time, so a
	// dropped publish must not consume one.
	peekID := b.msgIDSeq.Load() + 1
	if peekID >= overflowGuard {
		b.errorCb.report(ErrOverflowDetected, peekID)
		return false
	}

	const priority = PriorityMedium

	mode := b.mode.get()
	if mode != ModeBareMetal {
		var statsArg *statistics
		if mode == ModeFull {
			statsArg = b.stats
		}
		if !b.admission.admit(priority, statsArg) {
			if mode == ModeFull {
				b.stats.recordDropped(priority)
			}
			b.errorCb.report(ErrQueueFull, peekID)
			return false
		}
	}

	slot, pos, ok := b.ring.tryReserve()
	if !ok {
		if mode == ModeFull {
			b.stats.recordDropped(priority)
		}
		if mode != ModeBareMetal {
			b.errorCb.report(ErrQueueFull, peekID)
		}
		return false
	}

	msgID := b.msgIDSeq.Add(1)

	env := Envelope{
		Header: MessageHeader{
			MsgID:       msgID,
			TimestampUs: timestampUs,
			SenderID:    senderID,
			Priority:    priority,
		},
		Payload: payload,
		tag:     tag,
	}
	b.ring.commit(slot, pos, env)

	if mode == ModeFull {
		b.stats.recordPublished(priority)
	}
	return true
}

// callback is the single entry point both ProcessBatch and ProcessOne
// feed into the ring's consume loop. Recovery middleware is applied by
// dispatchTable.dispatch per subscriber entry, not around the whole
// call, so one panicking subscriber can't suppress delivery to its
// siblings for the same message. In ModeFull it also times the
// dispatch and folds it into the processing-latency EMA, mirroring the
// teacher's recordProcessingTime around its own handler invocation.
func (b *Bus) callback() func(*Envelope) {
	return func(env *Envelope) {
		mode := b.mode.get()
		skipLock := mode == ModeBareMetal
		if mode != ModeFull {
			b.dispatch.dispatch(env.Tag(), env, skipLock, b.recovery)
			return
		}
		start := b.clock.Now()
		b.dispatch.dispatch(env.Tag(), env, skipLock, b.recovery)
		b.stats.recordProcessingLatency(b.clock.Since(start).Nanoseconds())
	}
}

// ProcessOne drains and dispatches a single ready envelope. Returns
// false if the ring was empty. This is the Go port of the original's
// ProcessOneAtPos single-step consumer loop, offered alongside the
// batched ProcessBatch.
func (b *Bus) ProcessOne() bool {
	if !b.acquireConsumer() {
		return false
	}
	defer b.releaseConsumer()

	ok := b.ring.tryConsumeOne(b.callback())
	if ok && b.mode.get() == ModeFull {
		b.stats.recordProcessed(1)
	}
	return ok
}

// ProcessBatch drains and dispatches up to limit ready envelopes in
// one call. Enforces single-consumer access per SPEC_FULL.md §7's Open
// Question decision: a concurrent second caller observes 0 rather
// than racing the consumer cursor.
func (b *Bus) ProcessBatch(limit uint32) uint32 {
	return b.ProcessBatchWith(limit, nil)
}

// ProcessBatchWith is ProcessBatch with an optional override dispatch
// function, used by tests and by callers that want to bypass the
// subscriber table (e.g. to drain and inspect envelopes directly).
// A nil fn uses the bus's normal dispatch-table callback.
func (b *Bus) ProcessBatchWith(limit uint32, fn func(*Envelope)) uint32 {
	if !b.acquireConsumer() {
		return 0
	}
	defer b.releaseConsumer()

	if fn == nil {
		fn = b.callback()
	}
	n := b.ring.tryConsumeBatch(limit, fn)
	if n > 0 && b.mode.get() == ModeFull {
		b.stats.recordProcessed(uint64(n))
	}
	return n
}

// reportProcessingError is RecoveryMiddleware's report sink: it covers
// the same three channels every other failure path uses (error
// callback, statistics, lifecycle observers) so a panicking subscriber
// is visible the same way an admission drop is.
func (b *Bus) reportProcessingError(msgID uint64) {
	b.errorCb.report(ErrProcessingError, msgID)
	if b.mode.get() == ModeFull {
		b.stats.recordProcessingError()
	}
	b.emitAsync(LifecycleEvent{Type: EventProcessingError, MsgID: msgID})
}

func (b *Bus) acquireConsumer() bool {
	return b.ring.consuming.CompareAndSwap(false, true)
}

func (b *Bus) releaseConsumer() {
	b.ring.consuming.Store(false)
}

// QueueDepth returns the number of envelopes currently enqueued.
func (b *Bus) QueueDepth() uint32 { return b.ring.depth() }

// QueueUtilizationPercent returns depth as a percentage of capacity,
// in [0, 100].
func (b *Bus) QueueUtilizationPercent() float64 {
	return float64(b.ring.depth()) / float64(b.ring.capacity()) * 100
}

// BackpressureLevel reports the current observational backpressure
// tier. It never factors into admission decisions.
func (b *Bus) BackpressureLevel() BackpressureLevel {
	return b.admission.backpressureLevel()
}

// SetPerformanceMode switches between FULL, NO_STATS and BARE_METAL at
// runtime via a relaxed atomic store, matching spec.md §4.2.
func (b *Bus) SetPerformanceMode(mode PerformanceMode) {
	prev := b.mode.get()
	b.mode.set(mode)
	if prev != mode {
		b.emitAsync(LifecycleEvent{Type: EventModeChanged, Mode: mode})
	}
}

// PerformanceMode returns the currently active performance mode.
func (b *Bus) PerformanceMode() PerformanceMode { return b.mode.get() }

// SetErrorCallback installs fn as the bus's error reporting sink,
// replacing any previously installed callback. Passing nil disables
// reporting.
func (b *Bus) SetErrorCallback(fn ErrorCallbackFunc) {
	b.errorCb.set(fn)
}

// GetStatistics returns a point-in-time snapshot of the bus's
// counters. Each field may be independently stale by a few
// increments relative to the others; see statistics's doc comment.
func (b *Bus) GetStatistics() BusStatisticsSnapshot { return b.stats.snapshot() }

// ResetStatistics zeroes every counter. Intended for test setup and
// for long-running processes that periodically roll up and reset
// telemetry rather than let counters grow unbounded.
func (b *Bus) ResetStatistics() { b.stats.reset() }

// AddObserver registers obs for lifecycle event notification.
func (b *Bus) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	b.observers = append(b.observers, obs)
	b.observersMu.Unlock()
}

// RemoveObserver deregisters obs, if present.
func (b *Bus) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	defer b.observersMu.Unlock()
	for i, o := range b.observers {
		if o == obs {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			return
		}
	}
}

func (b *Bus) emitAsync(e LifecycleEvent) {
	if b.observerPool == nil || b.closed.Load() {
		return
	}
	b.observersMu.RLock()
	n := len(b.observers)
	if n == 0 {
		b.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, n)
	copy(observers, b.observers)
	b.observersMu.RUnlock()
	e.Timestamp = b.clock.Now()
	b.observerPool.Notify(e, observers)
}

// Context returns a context.Context with the bus's logger and clock
// injected, for callers that want to pass a consistent context into
// handlers registered via Subscribe.
func (b *Bus) Context() context.Context { return b.baseCtx }

// Close stops the observer pool and marks the bus closed; further
// Publish/PublishFast/PublishWithPriority calls return false. Does not
// drain the ring -- draining is the consumer's responsibility via a
// final ProcessBatch before discarding the bus.
func (b *Bus) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		if b.observerPool != nil {
			if err := b.observerPool.Close(5 * time.Second); err != nil {
				if b.logger != nil {
					b.logger.Warn().Err(err).Msg("mccc: observer pool shutdown timeout")
				}
				closeErr = err
			}
		}
	})
	return closeErr
}
