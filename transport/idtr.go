package transport

// idState is the admission state of one peer-initiated stream-id slot in
// the remote id tracker (spec.md 3/4.8).
type idState uint8

const (
	idUnopened idState = iota
	idOpen
	idClosed
)

// idResult is the outcome of attempting to open a translated stream id.
type idResult uint8

const (
	idOpenedNew       idResult = iota // a fresh slot, now open
	idAlreadyOpen                     // already open (duplicate frame for a live stream)
	idPreviouslyClosed                // closed: silently ignore per spec.md 4.8/7/9
)

// idTracker tracks which peer-initiated stream-id slots (addressed by the
// translated id space, (id-1)/2 or (id-2)/2 per spec.md 3) have been
// opened, are currently open, or have been destroyed. Grounded on the
// teacher's isStreamLocal/isStreamBidi helpers, generalized to the early-
// draft odd/even parity space spec.md 3 specifies (no uni/bidi distinction,
// per DESIGN.md Open Question 2).
type idTracker struct {
	states map[uint32]idState
	// highestOpened is the highest translated id ever opened. open()
	// records it but does not consult it; an id is unopened simply when
	// the map has no entry for it.
	highestOpened uint32
	hasHighest    bool
}

func (t *idTracker) init() {
	t.states = make(map[uint32]idState)
}

// open attempts to admit translated id as a newly-referenced peer stream.
func (t *idTracker) open(id uint32) idResult {
	switch t.states[id] {
	case idOpen:
		return idAlreadyOpen
	case idClosed:
		return idPreviouslyClosed
	default:
		t.states[id] = idOpen
		if !t.hasHighest || id > t.highestOpened {
			t.highestOpened = id
			t.hasHighest = true
		}
		return idOpenedNew
	}
}

// close marks translated id as destroyed; any future open() for the same id
// reports idPreviouslyClosed.
func (t *idTracker) close(id uint32) {
	t.states[id] = idClosed
}

// translateStreamID maps a wire stream id to the id-allocator's id space,
// per spec.md 3: (id-1)/2 for odd ids, (id-2)/2 for even ids.
func translateStreamID(id uint32) uint32 {
	if id%2 == 1 {
		return (id - 1) / 2
	}
	return (id - 2) / 2
}

// isStreamLocal reports whether id was (or would be) locally initiated.
// Stream id parity encodes the initiator: servers' local ids are even,
// clients' local ids are odd (spec.md 3). Stream 0 is treated as
// remote/neutral and is handled specially by callers (it is never routed
// through the registry's local/remote admission checks).
func isStreamLocal(id uint32, isClient bool) bool {
	if isClient {
		return id%2 == 1
	}
	return id%2 == 0
}
