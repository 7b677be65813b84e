// Package mccc implements an in-process, lock-free message bus for
// low-latency control and telemetry pipelines: a bounded MPSC ring
// queue with sequenced slots, a priority-aware admission controller,
// and a typed dispatch table driving subscriber callbacks.
//
// A Bus is constructed with BusBuilder, which closes the payload
// alphabet at Build() time:
//
//	bus, err := mccc.New(func(bb *mccc.BusBuilder) {
//		bb.WithQueueDepth(1024).
//			WithOptions(mccc.WithPayloadType[SensorReading]())
//	})
//
// Publishers call Publish, PublishWithPriority or PublishFast;
// subscribers register with the package-level generic Subscribe[T],
// since Go has no generic methods. A consumer goroutine drains the
// ring with ProcessBatch.
package mccc
