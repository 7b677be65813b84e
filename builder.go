package mccc

import (
	"context"
	"reflect"
	"sync"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

const (
	defaultQueueDepth         = 131072
	defaultMaxTags            = 8
	defaultMaxCallbacksPerTag = 16
	defaultObserverWorkers    = 2
	defaultObserverBuffer     = 256
)

// BuilderOption configures a BusBuilder. WithPayloadType[T]() is the
// only option constructor today; the indirection exists because Go
// has no generic methods, so a generic payload-type registration
// cannot be a (*BusBuilder) method.
type BuilderOption func(*BusBuilder)

// BusBuilder constructs Bus instances. Mirrors the teacher's
// BusBuilder shape (chainable With* methods culminating in Build),
// reconfigured for ring/admission/dispatch parameters instead of
// transport/codec ones.
type BusBuilder struct {
	queueDepth         uint32
	singleProducer     bool
	maxTags            int
	maxCallbacksPerTag int

	singleCoreRequested    bool
	singleCoreAcknowledged bool

	mode PerformanceMode

	clock         xclock.Clock
	logger        *xlog.Logger
	errorCallback ErrorCallbackFunc
	observers     []Observer

	observerWorkers int
	observerBuffer  int

	payloadTypes []reflect.Type
}

// NewBusBuilder returns a builder with the same defaults as the
// original's compile-time #define configuration: a 131072-slot queue,
// 8 tags, 16 callbacks per tag, FULL performance mode.
func NewBusBuilder() *BusBuilder {
	return &BusBuilder{
		queueDepth:         defaultQueueDepth,
		maxTags:            defaultMaxTags,
		maxCallbacksPerTag: defaultMaxCallbacksPerTag,
		mode:               ModeFull,
		observerWorkers:    defaultObserverWorkers,
		observerBuffer:     defaultObserverBuffer,
	}
}

// WithQueueDepth sets the ring's slot count. Must be a power of two;
// validated at Build().
func (bb *BusBuilder) WithQueueDepth(depth uint32) *BusBuilder {
	bb.queueDepth = depth
	return bb
}

// WithSingleProducer selects the SPSC ring path (no CAS on the
// producer cursor), valid only when the caller guarantees a single
// publishing goroutine for this bus's lifetime.
func (bb *BusBuilder) WithSingleProducer(single bool) *BusBuilder {
	bb.singleProducer = single
	return bb
}

// WithMaxTags sets the dispatch table's tag dimension (the maximum
// number of distinct payload types this bus can register).
func (bb *BusBuilder) WithMaxTags(n int) *BusBuilder {
	bb.maxTags = n
	return bb
}

// WithMaxCallbacksPerTag sets the dispatch table's per-tag callback
// capacity.
func (bb *BusBuilder) WithMaxCallbacksPerTag(n int) *BusBuilder {
	bb.maxCallbacksPerTag = n
	return bb
}

// WithSingleCore requests BARE_METAL-friendly single-core operation
// (skipping the dispatch table's RWMutex on the hot path is still a
// SetPerformanceMode decision; this flag instead governs whether the
// ring's CAS-based MPSC path may be downgraded to uncontended stores).
// Since that downgrade is unsafe if the assumption is ever violated,
// Build() refuses to proceed unless WithSingleCoreAcknowledged(true)
// was also called, matching spec.md §4.1's explicit safety gate.
func (bb *BusBuilder) WithSingleCore(requested bool) *BusBuilder {
	bb.singleCoreRequested = requested
	return bb
}

// WithSingleCoreAcknowledged is the explicit, separate opt-in required
// alongside WithSingleCore(true); it exists so that enabling the
// unsafe path is never a single accidental flag flip.
func (bb *BusBuilder) WithSingleCoreAcknowledged(ack bool) *BusBuilder {
	bb.singleCoreAcknowledged = ack
	return bb
}

// WithPerformanceMode sets the initial PerformanceMode; default FULL.
func (bb *BusBuilder) WithPerformanceMode(mode PerformanceMode) *BusBuilder {
	bb.mode = mode
	return bb
}

// WithClock injects a clock, primarily for tests (xclock.NewMock or
// equivalent). Defaults to xclock.Default().
func (bb *BusBuilder) WithClock(c xclock.Clock) *BusBuilder {
	bb.clock = c
	return bb
}

// WithLogger injects a logger. Defaults to xlog.Default().
func (bb *BusBuilder) WithLogger(l *xlog.Logger) *BusBuilder {
	bb.logger = l
	return bb
}

// WithErrorCallback installs the bus's initial error callback.
func (bb *BusBuilder) WithErrorCallback(fn ErrorCallbackFunc) *BusBuilder {
	bb.errorCallback = fn
	return bb
}

// WithObserver registers additional lifecycle observers beyond the
// default LoggingObserver.
func (bb *BusBuilder) WithObserver(obs ...Observer) *BusBuilder {
	for _, o := range obs {
		if o != nil {
			bb.observers = append(bb.observers, o)
		}
	}
	return bb
}

// WithObserverPool overrides the ObserverPool's worker count and
// buffer size.
func (bb *BusBuilder) WithObserverPool(workers, bufferSize int) *BusBuilder {
	bb.observerWorkers = workers
	bb.observerBuffer = bufferSize
	return bb
}

// WithOptions applies a set of BuilderOptions, currently only used for
// WithPayloadType[T]().
func (bb *BusBuilder) WithOptions(opts ...BuilderOption) *BusBuilder {
	for _, opt := range opts {
		if opt != nil {
			opt(bb)
		}
	}
	return bb
}

// WithPayloadType registers T as a member of the bus's closed payload
// alphabet. Must be called (directly or via WithOptions) at least once
// before Build(). Go has no generic methods, so this is a free
// function returning a BuilderOption rather than a (*BusBuilder)
// method -- the same shape as Subscribe[T].
func WithPayloadType[T any]() BuilderOption {
	return func(bb *BusBuilder) {
		var zero T
		bb.payloadTypes = append(bb.payloadTypes, reflect.TypeOf(zero))
	}
}

// Build validates the accumulated configuration and constructs a Bus.
func (bb *BusBuilder) Build() (*Bus, error) {
	if bb.queueDepth == 0 || bb.queueDepth&(bb.queueDepth-1) != 0 {
		return nil, ErrQueueDepthNotPowerOfTwo
	}
	if len(bb.payloadTypes) == 0 {
		return nil, ErrNoPayloadTypesConfigured
	}
	if bb.singleCoreRequested && !bb.singleCoreAcknowledged {
		return nil, ErrSingleCoreNotAcknowledged
	}

	registry := newPayloadRegistry(bb.maxTags)
	for _, t := range bb.payloadTypes {
		if _, err := registry.register(t); err != nil {
			return nil, err
		}
	}
	registry.seal()

	// Single-core acknowledgment downgrades the ring to the
	// uncontended SPSC path regardless of WithSingleProducer, since on
	// a genuinely single-core target there is by construction never a
	// concurrent second producer to race.
	singleProducer := bb.singleProducer || (bb.singleCoreRequested && bb.singleCoreAcknowledged)

	r := newRing(bb.queueDepth, singleProducer)

	clk := bb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := bb.logger
	if lg == nil {
		lg = xlog.Default()
	}

	b := &Bus{
		ring:      r,
		admission: newAdmissionController(r),
		dispatch:  newDispatchTable(bb.maxTags, bb.maxCallbacksPerTag),
		registry:  registry,
		stats:     &statistics{},
		clock:     clk,
		logger:    lg,
	}
	b.mode.set(bb.mode)
	if bb.errorCallback != nil {
		b.errorCb.set(bb.errorCallback)
	}
	b.recovery = RecoveryMiddleware(func(_ BusError, msgID uint64) { b.reportProcessingError(msgID) })
	b.baseCtx = InjectAll(context.Background(), lg, clk)

	b.observerPool = NewObserverPool(context.Background(), bb.observerWorkers, bb.observerBuffer)

	hasLoggingObserver := false
	for _, o := range bb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		b.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range bb.observers {
		b.AddObserver(o)
	}

	return b, nil
}

var (
	defaultBus   *Bus
	defaultBusMu sync.Mutex
)

// New constructs a Bus via a builder configured by init.
func New(init func(bb *BusBuilder)) (*Bus, error) {
	bb := NewBusBuilder()
	if init != nil {
		init(bb)
	}
	return bb.Build()
}

// Default returns the process-wide singleton Bus, lazily constructing
// it on first call via init if it hasn't been set explicitly with
// SetDefault.
func Default(init func(bb *BusBuilder)) (*Bus, error) {
	defaultBusMu.Lock()
	defer defaultBusMu.Unlock()

	if defaultBus != nil {
		return defaultBus, nil
	}
	bb := NewBusBuilder()
	if init != nil {
		init(bb)
	}
	bus, err := bb.Build()
	if err != nil {
		return nil, err
	}
	defaultBus = bus
	return defaultBus, nil
}

// SetDefault installs bus as the process-wide singleton, overriding
// any bus previously lazily constructed by Default.
func SetDefault(bus *Bus) {
	defaultBusMu.Lock()
	defaultBus = bus
	defaultBusMu.Unlock()
}
