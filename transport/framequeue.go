package transport

// frameQueue is the connection-level FIFO of pending control frames
// (MAX_DATA, MAX_STREAM_DATA, MAX_STREAM_ID, CONNECTION_CLOSE) the Packet
// Assembler drains ahead of stream data on every send (spec.md 3/4.4).
//
// Entries carry a staleness check: by the time the assembler gets around to
// packing a queued MAX_STREAM_DATA frame, a later update may have already
// superseded it (spec.md 4.7, "only the most recent limit matters"). Rather
// than mutate queued frames in place, each entry is re-validated against a
// supplied staleness predicate at drain time and dropped silently if it no
// longer reflects current state.
type queuedFrame struct {
	f     frame
	stale func() bool
}

type frameQueue struct {
	entries []queuedFrame
}

// push admits f, paired with a staleness predicate. A nil predicate means
// the frame is never considered stale (e.g. CONNECTION_CLOSE).
func (q *frameQueue) push(f frame, stale func() bool) {
	q.entries = append(q.entries, queuedFrame{f: f, stale: stale})
}

func (q *frameQueue) empty() bool { return len(q.entries) == 0 }

// drain returns, in FIFO order, every non-stale queued frame whose encoded
// length fits within budget, removing them from the queue. Stale frames are
// dropped outright without consuming budget. Frames that don't fit are left
// in the queue for the next packet.
func (q *frameQueue) drain(budget int) []frame {
	var out []frame
	kept := q.entries[:0:0]
	for _, e := range q.entries {
		if e.stale != nil && e.stale() {
			continue
		}
		ln := e.f.encodedLen()
		if ln <= budget {
			out = append(out, e.f)
			budget -= ln
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return out
}

// pruneStale removes every currently-stale entry without draining anything,
// used by callers that want to keep the queue tidy between sends.
func (q *frameQueue) pruneStale() {
	kept := q.entries[:0:0]
	for _, e := range q.entries {
		if e.stale != nil && e.stale() {
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
}
