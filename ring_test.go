package mccc

import "testing"

func TestRing_SingleProducerOrdering(t *testing.T) {
	r := newRing(8, true)
	for i := 0; i < 8; i++ {
		slot, pos, ok := r.tryReserve()
		if !ok {
			t.Fatalf("tryReserve failed at i=%d", i)
		}
		r.commit(slot, pos, Envelope{Header: MessageHeader{MsgID: uint64(i)}})
	}

	var got []uint64
	r.tryConsumeBatch(8, func(e *Envelope) {
		got = append(got, e.Header.MsgID)
	})
	for i, v := range got {
		if v != uint64(i) {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestRing_FullAtCapacityThenOneMoreFails(t *testing.T) {
	r := newRing(4, true)
	for i := 0; i < 4; i++ {
		_, _, ok := r.tryReserve()
		if !ok {
			t.Fatalf("tryReserve(%d) should have succeeded", i)
		}
	}
	if _, _, ok := r.tryReserve(); ok {
		t.Fatalf("tryReserve succeeded past capacity")
	}
}

func TestRing_SingleItemRoundTrip(t *testing.T) {
	r := newRing(4, true)
	slot, pos, ok := r.tryReserve()
	if !ok {
		t.Fatalf("tryReserve failed")
	}
	r.commit(slot, pos, Envelope{})

	if r.producerPos() != 1 {
		t.Fatalf("producerPos = %d, want 1", r.producerPos())
	}

	if !r.tryConsumeOne(func(*Envelope) {}) {
		t.Fatalf("tryConsumeOne returned false on non-empty ring")
	}
	if r.consumerPos() != 1 {
		t.Fatalf("consumerPos = %d, want 1", r.consumerPos())
	}
}

func TestRing_ConsumeOnEmptyIsNoop(t *testing.T) {
	r := newRing(4, true)
	if r.tryConsumeOne(func(*Envelope) { t.Fatal("dispatch called on empty ring") }) {
		t.Fatalf("tryConsumeOne returned true on empty ring")
	}
	if n := r.tryConsumeBatch(10, func(*Envelope) {}); n != 0 {
		t.Fatalf("tryConsumeBatch = %d, want 0", n)
	}
	if r.producerPos() != 0 || r.consumerPos() != 0 {
		t.Fatalf("cursors mutated by no-op consume")
	}
}

func TestRing_MultiProducerCAS(t *testing.T) {
	const depth = 1024
	r := newRing(depth, false)

	const producers = 4
	const perProducer = 10000
	type job struct {
		tid, seq uint32
	}
	done := make(chan int, producers)
	for p := 0; p < producers; p++ {
		go func(tid uint32) {
			admitted := 0
			for s := uint32(0); s < perProducer; s++ {
				slot, pos, ok := r.tryReserve()
				if !ok {
					continue
				}
				checksum := tid ^ s
				r.commit(slot, pos, Envelope{Header: MessageHeader{SenderID: tid}, Payload: job{tid: tid, seq: s}, tag: int(checksum)})
				admitted++
			}
			done <- admitted
		}(uint32(p))
	}

	total := 0
	for i := 0; i < producers; i++ {
		total += <-done
	}
	if total > producers*perProducer {
		t.Fatalf("admitted %d, exceeds total attempted %d", total, producers*perProducer)
	}

	var consumed int
	for {
		n := r.tryConsumeBatch(256, func(e *Envelope) {
			j := e.Payload.(job)
			want := int(j.tid ^ j.seq)
			if e.tag != want {
				t.Fatalf("checksum mismatch: tag=%d want=%d", e.tag, want)
			}
		})
		consumed += int(n)
		if n == 0 {
			break
		}
	}
	if consumed != total {
		t.Fatalf("consumed %d, want %d admitted", consumed, total)
	}
}
