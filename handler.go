package quic

import "github.com/eeverettrbx/qcore/transport"

// EventConnAccept fires once per connection, the round its handshake
// completes (spec.md 6 handshake_completed, translated into the polling
// Handler model below). It shares transport.EventType's numbering space but
// lives here since accepting a connection is this package's concern, not
// the Connection Core's (the core itself never decides "accepted", only
// "handshake done").
const EventConnAccept transport.EventType = transport.EventConnClose + 1

// EventConnClose is re-exported for callers that only import quic.
const EventConnClose = transport.EventConnClose

// Handler is the embedder's callback for connection-level events. Serve is
// invoked once per poll round with whatever events accumulated on c since
// the previous round: a connection accepted/established, stream data
// arrived, or the connection closed.
type Handler interface {
	Serve(c *Conn, events []transport.Event)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(c *Conn, events []transport.Event)

func (f HandlerFunc) Serve(c *Conn, events []transport.Event) { f(c, events) }
