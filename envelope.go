package mccc

import (
	"fmt"
	"reflect"
	"sync"
)

// Envelope is the unit of transport: a header plus a tagged payload.
// It is copied by value into and out of ring slots; Payload is stored
// as any, so callers that need to stay on a zero-allocation hot path
// should publish pointer-shaped payloads.
type Envelope struct {
	Header  MessageHeader
	Payload any
	tag     int
}

// Tag returns the payload's registered tag index. Envelopes read back
// out of a Bus always carry the tag the registry assigned at publish
// time; hand-constructed envelopes in tests default to tag 0 unless
// set explicitly.
func (e *Envelope) Tag() int { return e.tag }

// payloadRegistry assigns each distinct concrete payload type a
// stable tag index in [0, maxTags) the first time it is registered.
// The registry is built once, at Bus construction time (via
// BusBuilder.WithOptions(WithPayloadType[T]())), and is immutable
// after Build() returns -- this is the Go expression of "the payload
// alphabet is a closed tagged union fixed at bus instantiation."
type payloadRegistry struct {
	mu      sync.RWMutex
	tagOf   map[reflect.Type]int
	typeOf  []reflect.Type
	maxTags int
	sealed  bool
}

func newPayloadRegistry(maxTags int) *payloadRegistry {
	return &payloadRegistry{
		tagOf:   make(map[reflect.Type]int, maxTags),
		typeOf:  make([]reflect.Type, 0, maxTags),
		maxTags: maxTags,
	}
}

// register assigns t a tag index if it doesn't already have one.
// Idempotent. Returns an error once maxTags distinct types have been
// registered, or once the registry has been sealed by Build().
func (r *payloadRegistry) register(t reflect.Type) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tag, ok := r.tagOf[t]; ok {
		return tag, nil
	}
	if r.sealed {
		return -1, fmt.Errorf("mccc: payload type %s registered after bus construction", t)
	}
	if len(r.typeOf) >= r.maxTags {
		return -1, fmt.Errorf("mccc: payload alphabet exceeds MaxTags=%d", r.maxTags)
	}
	tag := len(r.typeOf)
	r.tagOf[t] = tag
	r.typeOf = append(r.typeOf, t)
	return tag, nil
}

func (r *payloadRegistry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// tagFor returns the tag index for the concrete type of v.
func (r *payloadRegistry) tagFor(v any) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.tagOf[reflect.TypeOf(v)]
	return tag, ok
}

func (r *payloadRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.typeOf)
}

// tagOfType is the generic-function-friendly lookup used by Subscribe[T],
// resolving T's tag without requiring a live value of T.
func (r *payloadRegistry) tagOfType(t reflect.Type) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.tagOf[t]
	return tag, ok
}
