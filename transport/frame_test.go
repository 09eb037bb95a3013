package transport

import (
	"testing"
	"time"
)

func TestAckFrameEncodeDecodeRoundTrip(t *testing.T) {
	want := newAckFrame(42, 100, 10, []ackRange{{gap: 3, blklen: 5}, {gap: 1, blklen: 0}})
	b := make([]byte, want.encodedLen())
	n := want.encode(b)
	if n != len(b) {
		t.Fatalf("encode wrote %d bytes, encodedLen said %d", n, len(b))
	}

	got := &ackFrame{}
	n2, err := got.decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n2 != n {
		t.Fatalf("decode consumed %d bytes, encode wrote %d", n2, n)
	}
	if got.largestAck != want.largestAck || got.ackDelay != want.ackDelay ||
		got.firstAckBlockLen != want.firstAckBlockLen || len(got.ranges) != len(want.ranges) {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
	}
	for i := range want.ranges {
		if got.ranges[i] != want.ranges[i] {
			t.Fatalf("range %d mismatch: got %+v want %+v", i, got.ranges[i], want.ranges[i])
		}
	}
}

func TestAckTrackerAssembleCapsAtMaxAckBlocks(t *testing.T) {
	var tr ackTracker
	tr.init()
	now := time.Date(2020, time.January, 5, 2, 3, 4, 0, time.UTC)
	// One isolated packet number per slot forces a new (gap, blklen) range
	// per addition, well past maxAckBlocks, so assemble must stop at the cap
	// rather than overflow the uint8 gap/blklen fields (spec.md 4.2).
	pn := uint64(2000)
	for i := 0; i < maxAckBlocks+20; i++ {
		tr.add(pn, now)
		pn -= 2
	}

	f := tr.assemble(now)
	if f == nil {
		t.Fatal("assemble returned nil with entries pending")
	}
	if len(f.ranges) > maxAckBlocks {
		t.Fatalf("assembled %d ranges, want at most %d", len(f.ranges), maxAckBlocks)
	}
	for _, r := range f.ranges {
		if uint64(r.gap) > maxAckGap {
			t.Fatalf("range gap %d exceeds cap %d", r.gap, maxAckGap)
		}
	}
	if tr.empty() {
		t.Fatal("assemble should leave the excess entries pending, not drain the tracker")
	}
}

func TestAckCoveredRangesMatchesEncodedRanges(t *testing.T) {
	f := newAckFrame(0, 50, 2, []ackRange{{gap: 1, blklen: 1}})
	ranges := ackCoveredRanges(f)
	if len(ranges) != 2 {
		t.Fatalf("got %d covered ranges, want 2", len(ranges))
	}
	if ranges[0] != [2]uint64{48, 50} {
		t.Fatalf("first range = %v, want [48 50]", ranges[0])
	}
	if !ackContains(f, 48) || !ackContains(f, 50) {
		t.Fatal("ackContains should cover the first block's endpoints")
	}
	if ackContains(f, 49-2) {
		t.Fatal("ackContains should not cover the gap")
	}
}
