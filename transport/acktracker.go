package transport

import "time"

// ackRecord is one received-packet record held by the ACK Tracker: a packet
// number and the time it was received (spec.md 3).
type ackRecord struct {
	pktNum uint64
	ts     time.Time
}

// ackTracker is the ordered set of received packet numbers pending
// acknowledgment (spec.md 4.2). Entries are kept sorted descending, head =
// largest received packet number, so ACK assembly can walk
// largest-to-smallest without a separate sort step.
type ackTracker struct {
	entries       []ackRecord
	nextAckExpiry time.Time
}

func (t *ackTracker) init() {
	t.entries = t.entries[:0]
}

// add inserts pktNum/ts preserving descending order. Duplicate packet
// numbers are idempotent.
func (t *ackTracker) add(pktNum uint64, ts time.Time) {
	i := 0
	for i < len(t.entries) {
		if t.entries[i].pktNum == pktNum {
			return
		}
		if t.entries[i].pktNum < pktNum {
			break
		}
		i++
	}
	t.entries = append(t.entries, ackRecord{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = ackRecord{pktNum: pktNum, ts: ts}
	if t.nextAckExpiry.IsZero() {
		t.nextAckExpiry = ts.Add(DelayedAckTimeout)
	}
}

// get peeks the head (largest pending) entry, or returns ok=false if empty.
func (t *ackTracker) get() (ackRecord, bool) {
	if len(t.entries) == 0 {
		return ackRecord{}, false
	}
	return t.entries[0], true
}

func (t *ackTracker) empty() bool { return len(t.entries) == 0 }

func (t *ackTracker) clearExpiry() { t.nextAckExpiry = time.Time{} }

// assemble builds an ACK frame covering as much of the pending set as fits
// under the 255-gap/255-block caps (spec.md 4.2), removing the packet
// numbers it consumed from the tracker. Returns nil if nothing is pending.
func (t *ackTracker) assemble(now time.Time) *ackFrame {
	if len(t.entries) == 0 {
		return nil
	}
	largest := t.entries[0]
	runEnd := largest.pktNum
	i := 1
	for i < len(t.entries) && t.entries[i].pktNum == runEnd-1 {
		runEnd = t.entries[i].pktNum
		i++
	}
	firstAckBlockLen := largest.pktNum - runEnd

	var ranges []ackRange
	prevLow := runEnd
	for i < len(t.entries) && len(ranges) < maxAckBlocks {
		gapCount := prevLow - 1 - t.entries[i].pktNum
		if gapCount > maxAckGap {
			break
		}
		hi := t.entries[i].pktNum
		lo := hi
		j := i + 1
		// A block's length shares the gap's 8-bit cap; a longer run
		// continues in the next range with a zero gap.
		for j < len(t.entries) && t.entries[j].pktNum == lo-1 && hi-lo < maxAckGap {
			lo = t.entries[j].pktNum
			j++
		}
		blklen := hi - lo
		ranges = append(ranges, ackRange{gap: uint8(gapCount), blklen: uint8(blklen)})
		prevLow = lo
		i = j
	}

	t.entries = t.entries[i:]
	if len(t.entries) == 0 {
		t.clearExpiry()
	}
	ackDelay := uint64(now.Sub(largest.ts).Microseconds())
	return newAckFrame(ackDelay, largest.pktNum, firstAckBlockLen, ranges)
}
