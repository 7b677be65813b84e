package mccc

import "testing"

type pingPayload struct{ N int }

func TestDispatchTable_SubscribeUnsubscribeIdempotence(t *testing.T) {
	dt := newDispatchTable(4, 4)

	var received int
	h, ok := dt.subscribe(0, func(*Envelope) { received++ })
	if !ok {
		t.Fatalf("subscribe failed")
	}

	dt.dispatch(0, &Envelope{}, false, nil)
	if received != 1 {
		t.Fatalf("received = %d, want 1", received)
	}

	if !dt.unsubscribe(h) {
		t.Fatalf("unsubscribe returned false for a valid handle")
	}

	dt.dispatch(0, &Envelope{}, false, nil)
	if received != 1 {
		t.Fatalf("received = %d after unsubscribe, want unchanged at 1", received)
	}

	if dt.unsubscribe(h) {
		t.Fatalf("second unsubscribe of the same handle returned true")
	}
}

func TestDispatchTable_UnsubscribeInvalidHandle(t *testing.T) {
	dt := newDispatchTable(4, 4)
	if dt.unsubscribe(SubscriptionHandle{}) {
		t.Fatalf("unsubscribe of zero-value handle returned true")
	}
}

func TestDispatchTable_CapacityExhausted(t *testing.T) {
	dt := newDispatchTable(1, 2)
	if _, ok := dt.subscribe(0, func(*Envelope) {}); !ok {
		t.Fatalf("first subscribe failed")
	}
	if _, ok := dt.subscribe(0, func(*Envelope) {}); !ok {
		t.Fatalf("second subscribe failed")
	}
	if _, ok := dt.subscribe(0, func(*Envelope) {}); ok {
		t.Fatalf("third subscribe on a 2-slot tag succeeded")
	}
}

func TestSubscribe_TypedDispatch(t *testing.T) {
	bus, err := New(func(bb *BusBuilder) {
		bb.WithQueueDepth(16).WithOptions(WithPayloadType[pingPayload]())
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got pingPayload
	if _, err := Subscribe[pingPayload](bus, func(_ MessageHeader, p pingPayload) {
		got = p
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if !bus.PublishWithPriority(pingPayload{N: 42}, PriorityHigh, 1) {
		t.Fatalf("publish failed")
	}
	if n := bus.ProcessBatch(1); n != 1 {
		t.Fatalf("ProcessBatch = %d, want 1", n)
	}
	if got.N != 42 {
		t.Fatalf("got.N = %d, want 42", got.N)
	}
}

func TestDispatchTable_PanicInOneEntryDoesNotSuppressSiblings(t *testing.T) {
	dt := newDispatchTable(4, 4)

	if _, ok := dt.subscribe(0, func(*Envelope) { panic("boom") }); !ok {
		t.Fatalf("first subscribe failed")
	}
	var secondCalled bool
	if _, ok := dt.subscribe(0, func(*Envelope) { secondCalled = true }); !ok {
		t.Fatalf("second subscribe failed")
	}

	var reported int
	recovery := RecoveryMiddleware(func(BusError, uint64) { reported++ })
	dt.dispatch(0, &Envelope{}, false, recovery)

	if !secondCalled {
		t.Fatalf("second subscriber not invoked after first panicked")
	}
	if reported != 1 {
		t.Fatalf("reported = %d, want 1", reported)
	}
}

func TestSubscribe_UnregisteredPayloadType(t *testing.T) {
	bus, err := New(func(bb *BusBuilder) {
		bb.WithQueueDepth(16).WithOptions(WithPayloadType[pingPayload]())
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	type notRegistered struct{}
	if _, err := Subscribe[notRegistered](bus, func(MessageHeader, notRegistered) {}); err != ErrUnregisteredPayloadType {
		t.Fatalf("err = %v, want ErrUnregisteredPayloadType", err)
	}
}
