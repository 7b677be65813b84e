package mccc

// MessageHeader carries tracing metadata for an Envelope. MsgID is
// assigned by the bus at admit time from a monotonic counter starting
// at 1; it is never reused. TimestampUs is either caller-supplied
// (PublishFast) or taken from the bus's injected clock at publish.
type MessageHeader struct {
	MsgID       uint64
	TimestampUs uint64
	SenderID    uint32
	Priority    Priority
}
