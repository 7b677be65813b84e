package mccc

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xlog"
)

// LifecycleEventType identifies what kind of bus lifecycle event
// occurred. Unlike BusError, these are informational and not
// necessarily failures -- Subscribed/ModeChanged are routine.
type LifecycleEventType string

const (
	EventAdmissionDropped LifecycleEventType = "admission_dropped"
	EventOverflowDetected LifecycleEventType = "overflow_detected"
	EventSubscribed       LifecycleEventType = "subscribed"
	EventUnsubscribed     LifecycleEventType = "unsubscribed"
	EventModeChanged      LifecycleEventType = "mode_changed"
	EventProcessingError  LifecycleEventType = "processing_error"
)

// LifecycleEvent describes one occurrence reported to Observers.
// Fields not relevant to Type are left zero.
type LifecycleEvent struct {
	Type      LifecycleEventType
	Priority  Priority
	Tag       int
	MsgID     uint64
	Mode      PerformanceMode
	Timestamp time.Time

	observers []Observer
}

// Observer receives bus lifecycle events. Implementations must not
// block; a slow observer only delays its own goroutine in the
// ObserverPool, never the publish or dispatch hot path.
type Observer interface {
	OnEvent(e LifecycleEvent)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(e LifecycleEvent)

func (f ObserverFunc) OnEvent(e LifecycleEvent) { f(e) }

// LoggingObserver emits lifecycle events via xlog, at Warn for
// failure-flavored events and Debug for routine ones.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e LifecycleEvent) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("priority", e.Priority.String()),
		xlog.Str("tag", strconv.Itoa(e.Tag)),
		xlog.Str("msg_id", strconv.FormatUint(e.MsgID, 10)),
	)
	switch e.Type {
	case EventAdmissionDropped, EventOverflowDetected, EventProcessingError:
		ev.Warn().Msg("mccc bus event")
	default:
		ev.Debug().Msg("mccc bus event")
	}
}

// ObserverPool fans lifecycle events out to Observers on dedicated
// goroutines, so a slow or blocking observer can never stall a
// producer's Publish or the consumer's ProcessBatch. Buffer overflow
// drops the event and counts it, rather than blocking -- the same
// non-blocking discipline the ring itself uses under pressure.
type ObserverPool struct {
	eventCh   chan *LifecycleEvent
	workers   int
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool
	dropped   atomic.Uint64
	processed atomic.Uint64
}

// NewObserverPool starts a pool of worker goroutines draining eventCh.
// workers and bufferSize fall back to sane defaults when non-positive.
func NewObserverPool(ctx context.Context, workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = 2
	}
	if bufferSize < 1 {
		bufferSize = 256
	}

	poolCtx, cancel := context.WithCancel(ctx)
	op := &ObserverPool{
		eventCh: make(chan *LifecycleEvent, bufferSize),
		workers: workers,
		ctx:     poolCtx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		op.wg.Add(1)
		go op.worker()
	}
	return op
}

// Notify enqueues e for asynchronous delivery to observers. Never
// blocks: if the buffer is full the event is dropped and counted.
func (op *ObserverPool) Notify(e LifecycleEvent, observers []Observer) {
	if len(observers) == 0 || op.closed.Load() {
		return
	}
	e.observers = make([]Observer, len(observers))
	copy(e.observers, observers)

	select {
	case op.eventCh <- &e:
	default:
		op.dropped.Add(1)
	}
}

func (op *ObserverPool) worker() {
	defer op.wg.Done()
	for {
		select {
		case <-op.ctx.Done():
			for {
				select {
				case e := <-op.eventCh:
					if e != nil {
						op.dispatchEvent(e)
					}
				default:
					return
				}
			}
		case e := <-op.eventCh:
			if e != nil {
				op.dispatchEvent(e)
				op.processed.Add(1)
			}
		}
	}
}

func (op *ObserverPool) dispatchEvent(e *LifecycleEvent) {
	for _, obs := range e.observers {
		if obs == nil {
			continue
		}
		func() {
			defer func() { recover() }()
			obs.OnEvent(*e)
		}()
	}
}

// Close stops accepting new events, drains what's already queued, and
// waits up to timeout for workers to exit.
func (op *ObserverPool) Close(timeout time.Duration) error {
	if op.closed.Swap(true) {
		return nil
	}
	op.cancel()

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrObserverPoolShutdownTimeout
	}
}

// PoolStats reports observer pool telemetry.
type PoolStats struct {
	Dropped    uint64
	Processed  uint64
	QueueDepth int
}

func (op *ObserverPool) Stats() PoolStats {
	return PoolStats{
		Dropped:    op.dropped.Load(),
		Processed:  op.processed.Load(),
		QueueDepth: len(op.eventCh),
	}
}
