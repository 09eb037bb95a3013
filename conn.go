package quic

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"github.com/eeverettrbx/qcore/transport"
)

// Conn is the embedder-facing handle for one connection: the transport
// core plus the network address it is reachable at, and the state a UDP
// read loop and Stream wrappers need between Send/Recv rounds (spec.md
// §6's callback boundary, translated into the polling Handler model
// cmd/quince's clientHandler expects).
type Conn struct {
	addr net.Addr
	cid  uint64
	core *transport.Conn
	send func([]byte) (int, error)

	mu            sync.Mutex
	events        []transport.Event
	streams       map[uint32]*Stream
	closed        bool
	closeNotified bool
}

func newConn(cid uint64, addr net.Addr, core *transport.Conn, send func([]byte) (int, error)) *Conn {
	return &Conn{
		addr:    addr,
		cid:     cid,
		core:    core,
		send:    send,
		streams: make(map[uint32]*Stream),
	}
}

// RemoteAddr returns the peer address this connection is reachable at.
func (c *Conn) RemoteAddr() net.Addr { return c.addr }

// Stream returns the read/write handle for stream id, opening it locally
// first if it does not already exist.
func (c *Conn) Stream(id uint32) *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.streams[id]; ok {
		return s
	}
	if _, ok := c.core.FindStream(id); !ok {
		if _, err := c.core.OpenStream(id, nil); err != nil {
			return nil
		}
	}
	s := &Stream{id: id, conn: c}
	c.streams[id] = s
	return s
}

func (c *Conn) streamFor(id uint32) *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[id]
	if !ok {
		s = &Stream{id: id, conn: c}
		c.streams[id] = s
	}
	return s
}

func (c *Conn) pushEvent(e transport.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *Conn) drainEvents() []transport.Event {
	c.mu.Lock()
	ev := c.events
	c.events = nil
	c.mu.Unlock()
	return ev
}

// deliver appends newly-received bytes to streamID's read buffer. It backs
// the RecvStreamData callback built in newCallbacks.
func (c *Conn) deliver(streamID uint32, fin bool, data []byte) {
	s := c.streamFor(streamID)
	s.mu.Lock()
	s.buf.Write(data)
	if fin {
		s.readClosed = true
	}
	s.mu.Unlock()
	c.pushEvent(transport.Event{Type: transport.EventStream, StreamID: streamID})
}

// flush drains every datagram the transport core currently has queued to
// send and transmits each over the owning socket.
func (c *Conn) flush(now time.Time) error {
	out := make([]byte, transport.MaxPacketSize)
	for {
		n, err := c.core.Send(out, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := c.send(out[:n]); err != nil {
			return err
		}
	}
}

// checkPeerClose notices a connection the peer closed (CONNECTION_CLOSE
// received, driving the core to CLOSE_WAIT without a local Close() call)
// and queues EventConnClose exactly once.
func (c *Conn) checkPeerClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeNotified || !c.core.IsClosed() {
		return
	}
	c.closeNotified = true
	c.events = append(c.events, transport.Event{Type: transport.EventConnClose})
}

// Close tears the connection down, flushing a final CONNECTION_CLOSE.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeNotified = true
	c.mu.Unlock()
	c.core.Close(false, uint64(transport.NoError), "")
	err := c.flush(time.Now())
	c.pushEvent(transport.Event{Type: transport.EventConnClose})
	return err
}

// Stream is an io.ReadWriteCloser over one transport stream, buffering
// contiguous received bytes between Read calls — the transport core
// delivers data via callback, not a blocking read.
type Stream struct {
	id   uint32
	conn *Conn

	mu         sync.Mutex
	buf        bytes.Buffer
	readClosed bool
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() == 0 {
		if s.readClosed {
			return 0, io.EOF
		}
		return 0, nil
	}
	return s.buf.Read(p)
}

func (s *Stream) Write(p []byte) (int, error) {
	out := make([]byte, transport.MaxPacketSize)
	written, consumed, err := s.conn.core.WriteStream(out, s.id, false, p, time.Now())
	if err != nil {
		return 0, err
	}
	if written > 0 {
		if _, err := s.conn.send(out[:written]); err != nil {
			return consumed, err
		}
	}
	return consumed, nil
}

func (s *Stream) Close() error {
	out := make([]byte, transport.MaxPacketSize)
	written, _, err := s.conn.core.WriteStream(out, s.id, true, nil, time.Now())
	if err != nil {
		return err
	}
	if written > 0 {
		_, err = s.conn.send(out[:written])
	}
	return err
}
