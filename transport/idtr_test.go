package transport

import "testing"

func TestIdTrackerOpenCloseReopen(t *testing.T) {
	var tr idTracker
	tr.init()

	if r := tr.open(3); r != idOpenedNew {
		t.Fatalf("first open() = %v, want idOpenedNew", r)
	}
	if r := tr.open(3); r != idAlreadyOpen {
		t.Fatalf("second open() = %v, want idAlreadyOpen", r)
	}

	tr.close(3)
	if r := tr.open(3); r != idPreviouslyClosed {
		t.Fatalf("open() after close = %v, want idPreviouslyClosed", r)
	}
	// A previously-closed id must stay closed; it never reopens (spec.md
	// 4.8/7).
	if r := tr.open(3); r != idPreviouslyClosed {
		t.Fatalf("repeated open() after close = %v, want idPreviouslyClosed", r)
	}
}

func TestIdTrackerTracksHighestOpened(t *testing.T) {
	var tr idTracker
	tr.init()
	tr.open(1)
	tr.open(5)
	tr.open(2)
	if !tr.hasHighest || tr.highestOpened != 5 {
		t.Fatalf("highestOpened = %v (hasHighest=%v), want 5", tr.highestOpened, tr.hasHighest)
	}
}

func TestTranslateStreamID(t *testing.T) {
	cases := []struct {
		id   uint32
		want uint32
	}{
		{1, 0}, {3, 1}, {5, 2},
		{2, 0}, {4, 1}, {6, 2},
	}
	for _, c := range cases {
		if got := translateStreamID(c.id); got != c.want {
			t.Errorf("translateStreamID(%d) = %d, want %d", c.id, got, c.want)
		}
	}
}

func TestIsStreamLocal(t *testing.T) {
	if !isStreamLocal(3, true) {
		t.Error("odd id should be local for a client")
	}
	if isStreamLocal(2, true) {
		t.Error("even id should be remote for a client")
	}
	if !isStreamLocal(2, false) {
		t.Error("even id should be local for a server")
	}
	if isStreamLocal(3, false) {
		t.Error("odd id should be remote for a server")
	}
}
