package mccc

import (
	"errors"
	"sync/atomic"
)

// BusError is the error taxonomy reported through the error callback.
// The core never panics or returns a Go error from the hot path; it
// reports failures this way instead, per spec.md §7.
type BusError uint8

const (
	// ErrQueueFull means admission was denied because the real depth
	// (re-checked whenever the cached estimate reaches the threshold)
	// reached the priority's threshold, or the ring reservation found
	// no free slot.
	ErrQueueFull BusError = iota
	// ErrOverflowDetected means the monotonic msg_id counter is near
	// saturation; the publish was refused before touching the ring.
	ErrOverflowDetected
	// ErrInvalidMessage is reported (with msgID 0) when a publish is
	// given a payload whose concrete type was never registered via
	// WithPayloadType.
	ErrInvalidMessage
	// ErrProcessingError is reported when a dispatched callback panics
	// and is recovered by the dispatch middleware, and (with msgID 0)
	// when a Component's handle list is full so a subscription cannot
	// be recorded for automatic removal on Close.
	ErrProcessingError
)

func (e BusError) String() string {
	switch e {
	case ErrQueueFull:
		return "queue_full"
	case ErrOverflowDetected:
		return "overflow_detected"
	case ErrInvalidMessage:
		return "invalid_message"
	case ErrProcessingError:
		return "processing_error"
	default:
		return "unknown"
	}
}

// ErrorCallbackFunc is invoked whenever the core reports a BusError.
// It must not block, and must not assume it runs on any particular
// goroutine -- it may run on a producer's goroutine (admission
// drop/overflow) or the consumer's goroutine (processing error).
type ErrorCallbackFunc func(err BusError, msgID uint64)

// errorCallback is a single atomic function pointer: readers acquire,
// writers release, matching spec.md §5's shared-resource policy.
type errorCallback struct {
	fn atomic.Pointer[ErrorCallbackFunc]
}

func (c *errorCallback) set(fn ErrorCallbackFunc) {
	if fn == nil {
		c.fn.Store(nil)
		return
	}
	c.fn.Store(&fn)
}

func (c *errorCallback) report(err BusError, msgID uint64) {
	p := c.fn.Load()
	if p == nil || *p == nil {
		return
	}
	(*p)(err, msgID)
}

// ErrNoPayloadTypesConfigured is returned by BusBuilder.Build when no
// payload types were registered via WithPayloadType.
var ErrNoPayloadTypesConfigured = errors.New("mccc: no payload types registered")

// ErrQueueDepthNotPowerOfTwo is returned by BusBuilder.Build when the
// configured queue depth is not a power of two.
var ErrQueueDepthNotPowerOfTwo = errors.New("mccc: queue depth must be a power of two")

// ErrSingleCoreNotAcknowledged is returned by BusBuilder.Build when
// single-core mode was requested without the explicit unsafe
// acknowledgment, matching spec.md §4.1's safety gate.
var ErrSingleCoreNotAcknowledged = errors.New(
	"mccc: single-core mode requires WithSingleCoreAcknowledged(true) to acknowledge it is unsafe on multi-core SMP")

// ErrUnregisteredPayloadType is returned by Subscribe when T was never
// registered via WithPayloadType. Publishing a value of such a type
// does not return this error: the publish returns false and reports
// ErrInvalidMessage through the error callback.
var ErrUnregisteredPayloadType = errors.New("mccc: payload type not registered with this bus")

// ErrTooManySubscribers is returned by Subscribe when the tag's fixed
// callback slots (MaxCallbacksPerTag) are already full.
var ErrTooManySubscribers = errors.New("mccc: too many subscribers for this payload type")

// ErrObserverPoolShutdownTimeout is returned by ObserverPool.Close
// when workers haven't drained the queue within the given timeout.
var ErrObserverPoolShutdownTimeout = errors.New("mccc: observer pool shutdown timed out")
