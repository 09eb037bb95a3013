package transport

// EventType identifies a connection-level occurrence the embedder should
// react to between Send/Recv rounds, since this core never calls back into
// the embedder on its own (spec.md 5: no internal thread or event loop).
type EventType int

const (
	// EventStream fires once per round a stream newly has data (or a fin)
	// available for the embedder to read.
	EventStream EventType = iota
	// EventConnClose fires once the connection has reached CLOSE_WAIT.
	EventConnClose
)

func (t EventType) String() string {
	switch t {
	case EventStream:
		return "stream"
	case EventConnClose:
		return "conn_close"
	default:
		return "unknown"
	}
}

// Event is a single occurrence queued for the embedder's handler. StreamID
// is only meaningful for EventStream.
type Event struct {
	Type     EventType
	StreamID uint32
}
