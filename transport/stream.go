package transport

// Shutdown flags (spec.md 3).
type shutFlags uint8

const (
	shutRD shutFlags = 1 << iota
	shutWR
	shutRDWR = shutRD | shutWR
)

// ackedRange tracks which send-side byte ranges have been acknowledged, so
// Stream can tell when it has no unacked tx data before tx_offset (spec.md
// 4.1 destroy condition).
type ackedRange struct {
	lo, hi uint64 // [lo, hi)
}

type ackedTxTracker struct {
	ranges []ackedRange
}

func (a *ackedTxTracker) ack(offset, length uint64) {
	if length == 0 {
		return
	}
	lo, hi := offset, offset+length
	out := a.ranges[:0:0]
	inserted := false
	for _, r := range a.ranges {
		if r.hi < lo {
			out = append(out, r)
			continue
		}
		if r.lo > hi {
			if !inserted {
				out = append(out, ackedRange{lo, hi})
				inserted = true
			}
			out = append(out, r)
			continue
		}
		// Overlaps or touches; merge.
		if r.lo < lo {
			lo = r.lo
		}
		if r.hi > hi {
			hi = r.hi
		}
	}
	if !inserted {
		out = append(out, ackedRange{lo, hi})
	}
	a.ranges = out
}

// contiguousUpTo reports whether [0, txOffset) is fully covered by acked
// ranges, i.e. there is no unacked tx data before txOffset.
func (a *ackedTxTracker) contiguousUpTo(txOffset uint64) bool {
	if txOffset == 0 {
		return true
	}
	for _, r := range a.ranges {
		if r.lo <= 0 && r.hi >= txOffset {
			return true
		}
	}
	return false
}

// sendQueue is a trivial FIFO of unsent byte spans for a stream's send
// side. Unlike the reassembly buffer, offsets here are always contiguous
// from txOffset (handshake/stream callbacks hand data in order), so a small
// slice of pending spans is enough. Lost data is not re-queued here.
type sendSpan struct {
	offset uint64
	data   []byte
	fin    bool
}

type sendQueue struct {
	pending []sendSpan
}

func (q *sendQueue) push(data []byte, offset uint64, fin bool) {
	q.pending = append(q.pending, sendSpan{offset: offset, data: data, fin: fin})
}

func (q *sendQueue) pop(max int) (data []byte, offset uint64, fin bool) {
	if len(q.pending) == 0 {
		return nil, 0, false
	}
	span := q.pending[0]
	if len(span.data) <= max {
		q.pending = q.pending[1:]
		return span.data, span.offset, span.fin
	}
	if max <= 0 {
		return nil, 0, false
	}
	head := span.data[:max]
	q.pending[0] = sendSpan{offset: span.offset + uint64(max), data: span.data[max:], fin: span.fin}
	return head, span.offset, false
}

func (q *sendQueue) empty() bool { return len(q.pending) == 0 }

// Stream is one QUIC stream's per-endpoint state: send/recv offsets, flow
// windows, reassembly, and shutdown bitfield (spec.md 3/4.1).
type Stream struct {
	id   uint32
	User interface{} // embedder-supplied opaque handle, set via open_stream

	flow flowControl

	lastRxOffset uint64
	recvBuf      reassembleBuffer

	send     sendQueue
	txOffset uint64
	acked    ackedTxTracker

	shut shutFlags

	// flowPendingLinked records whether this stream's id is on the
	// connection's flow-control-pending list, which holds stream ids
	// rather than pointers (spec.md 9 design note).
	flowPendingLinked bool
}

func (s *Stream) init(id uint32, initialMaxRx, initialMaxTx uint64) {
	s.id = id
	s.flow.init(initialMaxRx, initialMaxTx)
}

// rxOffset returns the first byte not yet delivered contiguously: the high
// water mark of data handed to recv_stream_data, which is also the implicit
// "deliver from here" cursor the reassembly buffer drains against.
func (s *Stream) rxOffset() uint64 {
	return s.flow.rxOffset64()
}

// recvReordered stores out-of-order bytes for later contiguous delivery
// (spec.md 4.1).
func (s *Stream) recvReordered(offset uint64, data []byte, fin bool) {
	s.recvBuf.insert(offset, data, fin)
}

// shutdown sets the given direction flags. Per spec.md 4.1, once SHUT_RD is
// set further incoming frames must not extend last_rx_offset; callers are
// responsible for rejecting such frames as a protocol error before calling
// this again.
func (s *Stream) shutdown(dir shutFlags) {
	s.shut |= dir
}

func (s *Stream) isShutRD() bool   { return s.shut&shutRD != 0 }
func (s *Stream) isShutWR() bool   { return s.shut&shutWR != 0 }
func (s *Stream) isShutRDWR() bool { return s.shut&shutRDWR == shutRDWR }

// closable reports whether the stream has no rx gap before last_rx_offset
// and no unacked tx before tx_offset, the destroy precondition of spec.md
// 4.1/4.5.
func (s *Stream) closable() bool {
	if !s.isShutRDWR() {
		return false
	}
	if s.recvBuf.hasGapBefore(s.lastRxOffset) {
		return false
	}
	return s.acked.contiguousUpTo(s.txOffset)
}

// popSend pulls up to max bytes of pending send data (used by both the
// handshake stream and application streams).
func (s *Stream) popSend(max int) ([]byte, uint64, bool) {
	return s.send.pop(max)
}

// pushSend enqueues application data for transmission, consuming send-side
// flow-control credit bookkeeping happens at the assembler when the bytes
// are actually popped onto the wire.
func (s *Stream) pushSend(data []byte, fin bool) {
	s.send.push(data, s.txOffset+pendingSendLen(s), fin)
}

func pendingSendLen(s *Stream) uint64 {
	var n uint64
	for _, p := range s.send.pending {
		n += uint64(len(p.data))
	}
	return n
}

// advanceTx records n bytes as handed to the wire.
func (s *Stream) advanceTx(n int) {
	s.txOffset += uint64(n)
}

// ack records that [offset, offset+len) has been acknowledged by the peer.
func (s *Stream) ack(offset, length uint64) {
	s.acked.ack(offset, length)
}
