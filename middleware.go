package mccc

// DispatchFunc is the shape of a single subscriber invocation as seen
// by dispatch middleware: no error return, since the bus's dispatch
// path never propagates handler failures back to the publisher --
// publish and dispatch are decoupled by the ring. Failures are instead
// surfaced through the bus's ErrorCallbackFunc.
type DispatchFunc func(*Envelope)

// DispatchMiddleware wraps a DispatchFunc, e.g. for recovery or timing.
type DispatchMiddleware func(DispatchFunc) DispatchFunc

// RecoveryMiddleware prevents a panicking subscriber callback from
// taking down the consumer's call stack. On recovery it reports
// ErrProcessingError through report rather than re-panicking, since a
// misbehaving subscriber must not be able to stall message processing
// for every other subscriber on the same tag.
func RecoveryMiddleware(report func(err BusError, msgID uint64)) DispatchMiddleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(env *Envelope) {
			defer func() {
				if r := recover(); r != nil {
					if report != nil {
						report(ErrProcessingError, env.Header.MsgID)
					}
				}
			}()
			next(env)
		}
	}
}

// Chain composes middlewares around fn in order: the first middleware
// in mws is the outermost wrapper.
func Chain(fn DispatchFunc, mws ...DispatchMiddleware) DispatchFunc {
	wrapped := fn
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
