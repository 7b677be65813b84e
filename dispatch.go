package mccc

import (
	"reflect"
	"sync"
)

// subscriptionNone is the id of an unassigned SubscriptionHandle.
// dispatchTable.nextID starts at 0 and is pre-incremented before each
// assignment, so the first real handle gets id 1 and 0 is never
// issued to a caller.
const subscriptionNone = uint64(0)

// SubscriptionHandle identifies one subscription so it can later be
// removed via Unsubscribe. The zero value is not a valid handle; a
// handle obtained from Subscribe is always valid until unsubscribed.
type SubscriptionHandle struct {
	tag int
	id  uint64
}

// Valid reports whether h is a handle issued by Subscribe rather than
// the zero value. It does not track removal: a handle stays Valid
// after Unsubscribe.
func (h SubscriptionHandle) Valid() bool { return h.id != subscriptionNone }

type callbackEntry struct {
	id uint64
	fn func(*Envelope)
}

// dispatchTable is the fixed MaxTags x MaxCallbacksPerTag array of
// subscriber callbacks described in spec.md §4.4. One RWMutex guards
// the whole table: Subscribe/Unsubscribe take the writer lock,
// dispatch takes the reader lock (and may skip it entirely in
// BARE_METAL mode, per spec.md §4.2 -- that skip is the bus's decision,
// not this type's).
type dispatchTable struct {
	mu          sync.RWMutex
	perTagLimit int
	tags        []*FixedVector[callbackEntry]
	nextID      uint64
}

func newDispatchTable(maxTags, maxCallbacksPerTag int) *dispatchTable {
	tags := make([]*FixedVector[callbackEntry], maxTags)
	for i := range tags {
		tags[i] = NewFixedVector[callbackEntry](maxCallbacksPerTag)
	}
	return &dispatchTable{perTagLimit: maxCallbacksPerTag, tags: tags}
}

// subscribe registers fn against tag, returning a handle for later
// removal. Returns ok=false if the tag's callback slots are exhausted.
func (d *dispatchTable) subscribe(tag int, fn func(*Envelope)) (SubscriptionHandle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	if !d.tags[tag].PushBack(callbackEntry{id: id, fn: fn}) {
		return SubscriptionHandle{}, false
	}
	return SubscriptionHandle{tag: tag, id: id}, true
}

// unsubscribe removes the callback identified by h. Idempotent: once
// removed (or never valid), a second call returns false harmlessly.
func (d *dispatchTable) unsubscribe(h SubscriptionHandle) bool {
	if !h.Valid() {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	vec := d.tags[h.tag]
	found := -1
	vec.Each(func(i int, e callbackEntry) {
		if e.id == h.id {
			found = i
		}
	})
	if found < 0 {
		return false
	}
	vec.EraseUnordered(found)
	return true
}

// dispatch invokes every callback registered for tag, in whatever
// order EraseUnordered's swap-last churn has left them -- subscribers
// must not depend on delivery order across different callbacks.
//
// recovery, if non-nil, is applied per callback entry rather than
// around the loop as a whole: a panicking subscriber must not prevent
// its siblings on the same tag from being invoked for this message.
func (d *dispatchTable) dispatch(tag int, env *Envelope, skipLock bool, recovery DispatchMiddleware) {
	if !skipLock {
		d.mu.RLock()
		defer d.mu.RUnlock()
	}
	d.tags[tag].Each(func(_ int, e callbackEntry) {
		fn := e.fn
		if recovery != nil {
			fn = Chain(fn, recovery)
		}
		fn(env)
	})
}

// Subscribe registers a typed handler for payload type T. Go has no
// generic methods, so this is a package-level function rather than a
// method on *Bus (the teacher's equivalent registration helpers are
// likewise free functions keyed by type).
func Subscribe[T any](b *Bus, handler func(MessageHeader, T)) (SubscriptionHandle, error) {
	var zero T
	tag, ok := b.registry.tagOfType(reflect.TypeOf(zero))
	if !ok {
		return SubscriptionHandle{}, ErrUnregisteredPayloadType
	}
	h, ok := b.dispatch.subscribe(tag, func(env *Envelope) {
		payload, _ := env.Payload.(T)
		handler(env.Header, payload)
	})
	if !ok {
		return SubscriptionHandle{}, ErrTooManySubscribers
	}
	b.emitAsync(LifecycleEvent{Type: EventSubscribed, Tag: tag})
	return h, nil
}

// Unsubscribe removes a subscription previously returned by Subscribe.
func Unsubscribe(b *Bus, h SubscriptionHandle) bool {
	if !b.dispatch.unsubscribe(h) {
		return false
	}
	b.emitAsync(LifecycleEvent{Type: EventUnsubscribed, Tag: h.tag})
	return true
}
