package transport

import (
	"container/heap"
	"time"
)

// rtbEntry is one in-flight packet record: the RTB entry of spec.md 3. It
// owns the chain of frames the packet carried so they can be resent (in
// whole or in part) on expiry, or freed on ack.
type rtbEntry struct {
	pktNum       uint64
	typ          packetType
	frames       []frame
	ackEliciting bool
	expiry       time.Time
	heapIndex    int
}

// retransmitBuffer is the min-heap of rtbEntry keyed by expiry (spec.md
// 3/4.3). container/heap is the idiomatic stdlib primitive for this; every
// QUIC-adjacent Go implementation in the reference pack (the quic-go
// vendor copies under caddyserver, kcp-go's send window) reaches for it
// rather than a third-party priority queue, so this is one place the
// teacher and the rest of the pack agree stdlib is the right tool.
type retransmitBuffer struct {
	h rtbHeap
}

func (b *retransmitBuffer) init() {
	b.h = b.h[:0]
	heap.Init(&b.h)
}

func (b *retransmitBuffer) len() int { return len(b.h) }

func (b *retransmitBuffer) add(e *rtbEntry) {
	heap.Push(&b.h, e)
}

// top returns the soonest-expiring entry without removing it.
func (b *retransmitBuffer) top() *rtbEntry {
	if len(b.h) == 0 {
		return nil
	}
	return b.h[0]
}

// pop removes and returns the soonest-expiring entry.
func (b *retransmitBuffer) pop() *rtbEntry {
	if len(b.h) == 0 {
		return nil
	}
	return heap.Pop(&b.h).(*rtbEntry)
}

// recvAck walks f's covered ranges and removes every matching entry,
// returning the concatenation of their owned frame chains so the caller can
// process acked stream/flow-control state (spec.md 4.3).
func (b *retransmitBuffer) recvAck(f *ackFrame) []frame {
	var freed []frame
	i := 0
	for i < len(b.h) {
		if ackContains(f, b.h[i].pktNum) {
			e := heap.Remove(&b.h, i).(*rtbEntry)
			freed = append(freed, e.frames...)
			continue
		}
		i++
	}
	return freed
}

// dropAll empties the buffer, returning the frame chains it held. Used by
// Conn.Close, which discards every unacknowledged packet.
func (b *retransmitBuffer) dropAll() []frame {
	var dropped []frame
	for _, e := range b.h {
		dropped = append(dropped, e.frames...)
	}
	b.h = b.h[:0]
	return dropped
}

// rtbHeap implements container/heap.Interface over *rtbEntry.
type rtbHeap []*rtbEntry

func (h rtbHeap) Len() int { return len(h) }

func (h rtbHeap) Less(i, j int) bool {
	if h[i].expiry.Equal(h[j].expiry) {
		return h[i].pktNum < h[j].pktNum
	}
	return h[i].expiry.Before(h[j].expiry)
}

func (h rtbHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *rtbHeap) Push(x interface{}) {
	e := x.(*rtbEntry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}

func (h *rtbHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// stripAckFrames removes any *ackFrame from a retransmitted chain: spec.md 9
// explicitly preserves the source's behavior of never carrying in-flight
// ACK frames forward on retransmission.
func stripAckFrames(frames []frame) []frame {
	out := frames[:0:0]
	for _, f := range frames {
		if _, ok := f.(*ackFrame); ok {
			continue
		}
		out = append(out, f)
	}
	return out
}
