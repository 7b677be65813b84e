package mccc

import (
	"sync"
	"weak"
)

// maxHandlesPerComponent bounds how many subscriptions a single
// Component may accumulate, mirroring the original's
// FixedVector<SubscriptionHandle, N> handle list (component.hpp).
const maxHandlesPerComponent = 16

// Component is the Go analogue of the original's
// Component<PayloadVariant>, which relies on
// std::enable_shared_from_this and std::weak_ptr so that a subscriber
// can register a callback bound to itself without keeping itself
// alive past its own lifetime. Go has no shared_from_this, but the
// standard library's weak package gives the same guarantee: a
// weak.Pointer[T] observes whether the pointee has already been
// garbage collected, so SubscribeSafe's callback can no-op instead of
// touching a dead receiver.
type Component struct {
	name    FixedString
	mu      sync.Mutex
	handles *FixedVector[SubscriptionHandle]
	bus     *Bus
}

// NewComponent creates a Component bound to bus, identified by name
// for logging. name is truncated, never rejected, since a component
// name is cosmetic rather than a protocol-significant identifier.
func NewComponent(bus *Bus, name string) *Component {
	return &Component{
		name:    NewFixedStringTruncate(name, 32),
		handles: NewFixedVector[SubscriptionHandle](maxHandlesPerComponent),
		bus:     bus,
	}
}

func (c *Component) Name() string { return c.name.String() }

// SubscribeSafe registers handler for payload type T, wrapping it so
// that if self has already been garbage collected by the time a
// message is dispatched, the callback silently does nothing rather
// than touching freed state. self is typically the same *Component,
// or an owning struct that embeds one -- whatever object's lifetime
// the handler logically depends on.
//
// This is the direct port of component.hpp's SubscribeSafe, which
// captures a std::weak_ptr<Self> and checks weak_ptr::lock() before
// invoking the bound member function.
func SubscribeSafe[T any, S any](c *Component, self *S, handler func(*S, MessageHeader, T)) (SubscriptionHandle, error) {
	weakSelf := weak.Make(self)
	h, err := Subscribe[T](c.bus, func(hdr MessageHeader, payload T) {
		strong := weakSelf.Value()
		if strong == nil {
			return
		}
		handler(strong, hdr, payload)
	})
	if err != nil {
		return SubscriptionHandle{}, err
	}
	c.addHandle(h)
	return h, nil
}

// SubscribeSimple registers handler for payload type T without any
// lifetime binding -- the caller is responsible for ensuring handler
// does not outlive whatever state it closes over. This is the port of
// component.hpp's SubscribeSimple, offered alongside SubscribeSafe for
// callers (e.g. free functions, package-level singletons) that have no
// meaningful "self" to weak-bind.
func SubscribeSimple[T any](c *Component, handler func(MessageHeader, T)) (SubscriptionHandle, error) {
	h, err := Subscribe[T](c.bus, handler)
	if err != nil {
		return SubscriptionHandle{}, err
	}
	c.addHandle(h)
	return h, nil
}

func (c *Component) addHandle(h SubscriptionHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.handles.PushBack(h) {
		// Handle list exhausted: the subscription itself already
		// succeeded against the bus, so we only lose the ability to
		// auto-unsubscribe it on Close. Not fatal, but worth knowing.
		c.bus.errorCb.report(ErrProcessingError, 0)
	}
}

// Close unsubscribes every handle this Component registered. Safe to
// call multiple times; subsequent calls find an empty handle list.
func (c *Component) Close() {
	c.mu.Lock()
	handles := make([]SubscriptionHandle, 0, c.handles.Len())
	c.handles.Each(func(_ int, h SubscriptionHandle) {
		handles = append(handles, h)
	})
	c.handles.Clear()
	c.mu.Unlock()

	for _, h := range handles {
		Unsubscribe(c.bus, h)
	}
}
