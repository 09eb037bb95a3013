package transport

// streamRegistry owns every live Stream on a connection: locally-opened
// streams (opened under the caller's own id), and peer-initiated streams admitted
// through idtr's remote id tracker (spec.md 3/4.8).
type streamRegistry struct {
	isClient bool

	streams map[uint32]*Stream

	nextLocalID uint32 // high-water mark for locally-opened ids, kept for future auto-allocation

	remote streamIDTracker

	// maxRemoteStreamID is the highest wire stream id the peer is
	// currently permitted to open; bumped on destroy per spec.md 4.8.
	maxRemoteStreamID uint32

	initialMaxStreamDataRx uint64
	initialMaxStreamDataTx uint64
}

// streamIDTracker wraps idTracker with a count of admitted peer streams.
// The count is not consulted when maxRemoteStreamID is bumped; destroy
// raises the limit by a fixed two wire-id slots.
type streamIDTracker struct {
	idTracker
	admittedCount uint32
}

func (r *streamRegistry) init(isClient bool, initialMaxStreamDataRx, initialMaxStreamDataTx uint64, initialMaxRemoteStreamID uint32) {
	r.isClient = isClient
	r.streams = make(map[uint32]*Stream)
	r.remote.init()
	r.initialMaxStreamDataRx = initialMaxStreamDataRx
	r.initialMaxStreamDataTx = initialMaxStreamDataTx
	r.maxRemoteStreamID = initialMaxRemoteStreamID
	if isClient {
		r.nextLocalID = 1
	} else {
		r.nextLocalID = 2
	}
}

func (r *streamRegistry) find(id uint32) (*Stream, bool) {
	s, ok := r.streams[id]
	return s, ok
}

// openLocal registers a new locally-initiated stream under the caller's
// wire id (spec.md 4.8 open_stream(id, user) takes an explicit id; this
// core never auto-allocates one on the caller's behalf).
func (r *streamRegistry) openLocal(id uint32) *Stream {
	s := &Stream{}
	s.init(id, r.initialMaxStreamDataRx, r.initialMaxStreamDataTx)
	r.streams[id] = s
	if id+2 > r.nextLocalID {
		r.nextLocalID = id + 2
	}
	return s
}

// admitRemoteResult mirrors idResult with the extra "over limit" outcome
// the registry layers on top of idTracker (spec.md 4.8).
type admitRemoteResult uint8

const (
	admitOpenedNew admitRemoteResult = iota
	admitAlreadyOpen
	admitPreviouslyClosed
	admitOverLimit
)

// admitRemote attempts to admit a peer-initiated wire stream id, enforcing
// the id-limit check of spec.md 4.5/4.8 before falling through to idtr.
func (r *streamRegistry) admitRemote(id uint32) (*Stream, admitRemoteResult) {
	if id > r.maxRemoteStreamID {
		return nil, admitOverLimit
	}
	tid := translateStreamID(id)
	switch r.remote.open(tid) {
	case idAlreadyOpen:
		return r.streams[id], admitAlreadyOpen
	case idPreviouslyClosed:
		return nil, admitPreviouslyClosed
	default:
		s := &Stream{}
		s.init(id, r.initialMaxStreamDataRx, r.initialMaxStreamDataTx)
		r.streams[id] = s
		r.remote.admittedCount++
		return s, admitOpenedNew
	}
}

// destroy removes a stream once its Stream.closable() precondition holds,
// and for peer-initiated streams bumps maxRemoteStreamID by two wire-id
// slots to grant the peer room to open a replacement (spec.md 4.8).
func (r *streamRegistry) destroy(id uint32) {
	_, ok := r.streams[id]
	if !ok {
		return
	}
	delete(r.streams, id)
	if !isStreamLocal(id, r.isClient) {
		r.remote.close(translateStreamID(id))
		r.maxRemoteStreamID += 2
	}
}

// bumpLimitFrame builds the MAX_STREAM_ID frame to announce the current
// maxRemoteStreamID, or nil if there is nothing new to announce relative to
// announced.
func (r *streamRegistry) bumpLimitFrame(announced uint32) *maxStreamIDFrame {
	if r.maxRemoteStreamID <= announced {
		return nil
	}
	return newMaxStreamIDFrame(r.maxRemoteStreamID)
}

// all returns every live stream; destroyAll uses it to collect the streams
// it drops. Iteration order is unspecified.
func (r *streamRegistry) all() []*Stream {
	out := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	return out
}

// destroyAll drops every live stream at once, returning them for any final
// bookkeeping the caller wants. Used when the owning connection itself is
// torn down (spec.md 3's cascading teardown) — unlike destroy, it does not
// bump maxRemoteStreamID per stream, since the connection has nothing left
// to grant that credit to.
func (r *streamRegistry) destroyAll() []*Stream {
	s := r.all()
	r.streams = make(map[uint32]*Stream)
	return s
}
