package transport

// Frame type tags. The core only needs the small vocabulary spec.md's
// Packet Assembler/Ingestor actually schedule or dispatch; later-draft frame
// types the teacher supported (RESET_STREAM, STOP_SENDING, NEW_TOKEN,
// *_BLOCKED, HANDSHAKE_DONE, PING) have no spec operation behind them in
// this early-draft core and are intentionally not reintroduced (see
// DESIGN.md, "Dropped teacher concerns").
const (
	frameTypePadding        uint64 = 0x00
	frameTypeStream         uint64 = 0x01
	frameTypeAck            uint64 = 0x02
	frameTypeMaxData        uint64 = 0x03
	frameTypeMaxStreamData  uint64 = 0x04
	frameTypeMaxStreamID    uint64 = 0x05
	frameTypeConnectionClose uint64 = 0x06
)

// frame is a decoded QUIC frame. encode/decode operate on the whole frame
// including its leading type tag; decode returns the number of bytes
// consumed.
type frame interface {
	encodedLen() int
	encode(b []byte) int
	decode(b []byte) (int, error)
	frameType() uint64
}

// isFrameAckEliciting reports whether receiving a frame of this type
// should cause an ACK to eventually be sent. PADDING, ACK and
// CONNECTION_CLOSE do not elicit acks; everything else does.
func isFrameAckEliciting(typ uint64) bool {
	switch typ {
	case frameTypePadding, frameTypeAck, frameTypeConnectionClose:
		return false
	default:
		return true
	}
}

// encodeFrames encodes frames in order into b, returning the total bytes
// written.
func encodeFrames(b []byte, frames []frame) (int, error) {
	n := 0
	for _, f := range frames {
		ln := f.encodedLen()
		if n+ln > len(b) {
			return 0, newError(NoBuffer, "short buffer encoding frames")
		}
		w := f.encode(b[n:])
		if w != ln {
			return 0, newError(InternalError, "frame encode length mismatch")
		}
		n += ln
	}
	return n, nil
}

// --- PADDING ---

type paddingFrame struct {
	length int // total bytes including the type byte of the first padding byte
}

func newPaddingFrame(length int) *paddingFrame {
	return &paddingFrame{length: length}
}

func (f *paddingFrame) frameType() uint64 { return frameTypePadding }
func (f *paddingFrame) encodedLen() int   { return f.length }

func (f *paddingFrame) encode(b []byte) int {
	for i := 0; i < f.length; i++ {
		b[i] = 0
	}
	return f.length
}

func (f *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == 0 {
		n++
	}
	f.length = n
	return n, nil
}

// --- STREAM ---

type streamFrame struct {
	streamID uint32
	offset   uint64
	data     []byte
	fin      bool
}

func newStreamFrame(streamID uint32, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: streamID, offset: offset, data: data, fin: fin}
}

func (f *streamFrame) frameType() uint64 { return frameTypeStream }

func (f *streamFrame) encodedLen() int {
	return 1 + varintLen(uint64(f.streamID)) + varintLen(f.offset) + varintLen(uint64(len(f.data))) + 1 + len(f.data)
}

func (f *streamFrame) encode(b []byte) int {
	n := 0
	b[n] = byte(frameTypeStream)
	n++
	n += putVarint(b[n:], uint64(f.streamID))
	n += putVarint(b[n:], f.offset)
	n += putVarint(b[n:], uint64(len(f.data)))
	if f.fin {
		b[n] = 1
	} else {
		b[n] = 0
	}
	n++
	n += copy(b[n:], f.data)
	return n
}

func (f *streamFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != byte(frameTypeStream) {
		return 0, newError(InternalError, "not a stream frame")
	}
	n := 1
	var sid, offset, ln uint64
	w := getVarint(b[n:], &sid)
	if w == 0 {
		return 0, newError(InternalError, "truncated stream frame")
	}
	n += w
	w = getVarint(b[n:], &offset)
	if w == 0 {
		return 0, newError(InternalError, "truncated stream frame")
	}
	n += w
	w = getVarint(b[n:], &ln)
	if w == 0 {
		return 0, newError(InternalError, "truncated stream frame")
	}
	n += w
	if len(b) < n+1 {
		return 0, newError(InternalError, "truncated stream frame")
	}
	fin := b[n] != 0
	n++
	if uint64(len(b)-n) < ln {
		return 0, newError(InternalError, "truncated stream frame data")
	}
	f.streamID = uint32(sid)
	f.offset = offset
	f.data = b[n : n+int(ln)]
	f.fin = fin
	return n + int(ln), nil
}

// --- ACK ---

// ackRange is one additional (gap, blklen) pair in an ACK frame, per
// spec.md 4.2: gap and block length are each capped at 255.
type ackRange struct {
	gap    uint8
	blklen uint8
}

type ackFrame struct {
	largestAck       uint64
	ackDelay         uint64
	firstAckBlockLen uint64
	ranges           []ackRange
}

func newAckFrame(ackDelay uint64, largestAck, firstAckBlockLen uint64, ranges []ackRange) *ackFrame {
	return &ackFrame{
		largestAck:       largestAck,
		ackDelay:         ackDelay,
		firstAckBlockLen: firstAckBlockLen,
		ranges:           ranges,
	}
}

func (f *ackFrame) frameType() uint64 { return frameTypeAck }

func (f *ackFrame) encodedLen() int {
	return 1 + varintLen(f.largestAck) + varintLen(f.ackDelay) + varintLen(f.firstAckBlockLen) +
		varintLen(uint64(len(f.ranges))) + 2*len(f.ranges)
}

func (f *ackFrame) encode(b []byte) int {
	n := 0
	b[n] = byte(frameTypeAck)
	n++
	n += putVarint(b[n:], f.largestAck)
	n += putVarint(b[n:], f.ackDelay)
	n += putVarint(b[n:], f.firstAckBlockLen)
	n += putVarint(b[n:], uint64(len(f.ranges)))
	for _, r := range f.ranges {
		b[n] = r.gap
		n++
		b[n] = r.blklen
		n++
	}
	return n
}

func (f *ackFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != byte(frameTypeAck) {
		return 0, newError(InternalError, "not an ack frame")
	}
	n := 1
	var largest, delay, first, count uint64
	for _, v := range []*uint64{&largest, &delay, &first, &count} {
		w := getVarint(b[n:], v)
		if w == 0 {
			return 0, newError(InternalError, "truncated ack frame")
		}
		n += w
	}
	if count > maxAckBlocks {
		return 0, newError(ProtocolViolation, "too many ack ranges")
	}
	ranges := make([]ackRange, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(b) < n+2 {
			return 0, newError(InternalError, "truncated ack range")
		}
		ranges = append(ranges, ackRange{gap: b[n], blklen: b[n+1]})
		n += 2
	}
	f.largestAck = largest
	f.ackDelay = delay
	f.firstAckBlockLen = first
	f.ranges = ranges
	return n, nil
}

// ackCoveredRanges returns the inclusive [lo, hi] packet-number ranges this
// ACK frame covers, largest range first. It is the single definition both
// assembly (acktracker.go) and matching (rtb.go) rely on, so encode/decode
// round-trip by construction (spec.md 8, property 4).
func ackCoveredRanges(f *ackFrame) [][2]uint64 {
	lo := f.largestAck - f.firstAckBlockLen
	out := [][2]uint64{{lo, f.largestAck}}
	prevLow := lo
	for _, r := range f.ranges {
		if prevLow < uint64(r.gap)+1 {
			break // malformed range, stop rather than underflow
		}
		hi := prevLow - uint64(r.gap) - 1
		if hi < uint64(r.blklen) {
			break
		}
		thisLow := hi - uint64(r.blklen)
		out = append(out, [2]uint64{thisLow, hi})
		prevLow = thisLow
	}
	return out
}

func ackContains(f *ackFrame, pn uint64) bool {
	for _, r := range ackCoveredRanges(f) {
		if pn >= r[0] && pn <= r[1] {
			return true
		}
	}
	return false
}

// --- MAX_DATA ---

type maxDataFrame struct {
	maximumDataHigh uint64
}

func newMaxDataFrame(maximumDataHigh uint64) *maxDataFrame {
	return &maxDataFrame{maximumDataHigh: maximumDataHigh}
}

func (f *maxDataFrame) frameType() uint64 { return frameTypeMaxData }
func (f *maxDataFrame) encodedLen() int   { return 1 + varintLen(f.maximumDataHigh) }

func (f *maxDataFrame) encode(b []byte) int {
	b[0] = byte(frameTypeMaxData)
	return 1 + putVarint(b[1:], f.maximumDataHigh)
}

func (f *maxDataFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != byte(frameTypeMaxData) {
		return 0, newError(InternalError, "not a max_data frame")
	}
	var v uint64
	w := getVarint(b[1:], &v)
	if w == 0 {
		return 0, newError(InternalError, "truncated max_data frame")
	}
	f.maximumDataHigh = v
	return 1 + w, nil
}

// --- MAX_STREAM_DATA ---

type maxStreamDataFrame struct {
	streamID    uint32
	maximumData uint64
}

func newMaxStreamDataFrame(streamID uint32, maximumData uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: streamID, maximumData: maximumData}
}

func (f *maxStreamDataFrame) frameType() uint64 { return frameTypeMaxStreamData }
func (f *maxStreamDataFrame) encodedLen() int {
	return 1 + varintLen(uint64(f.streamID)) + varintLen(f.maximumData)
}

func (f *maxStreamDataFrame) encode(b []byte) int {
	b[0] = byte(frameTypeMaxStreamData)
	n := 1
	n += putVarint(b[n:], uint64(f.streamID))
	n += putVarint(b[n:], f.maximumData)
	return n
}

func (f *maxStreamDataFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != byte(frameTypeMaxStreamData) {
		return 0, newError(InternalError, "not a max_stream_data frame")
	}
	n := 1
	var sid, max uint64
	w := getVarint(b[n:], &sid)
	if w == 0 {
		return 0, newError(InternalError, "truncated max_stream_data frame")
	}
	n += w
	w = getVarint(b[n:], &max)
	if w == 0 {
		return 0, newError(InternalError, "truncated max_stream_data frame")
	}
	n += w
	f.streamID = uint32(sid)
	f.maximumData = max
	return n, nil
}

// --- MAX_STREAM_ID ---

type maxStreamIDFrame struct {
	maximumStreamID uint32
}

func newMaxStreamIDFrame(maximumStreamID uint32) *maxStreamIDFrame {
	return &maxStreamIDFrame{maximumStreamID: maximumStreamID}
}

func (f *maxStreamIDFrame) frameType() uint64 { return frameTypeMaxStreamID }
func (f *maxStreamIDFrame) encodedLen() int   { return 1 + varintLen(uint64(f.maximumStreamID)) }

func (f *maxStreamIDFrame) encode(b []byte) int {
	b[0] = byte(frameTypeMaxStreamID)
	return 1 + putVarint(b[1:], uint64(f.maximumStreamID))
}

func (f *maxStreamIDFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != byte(frameTypeMaxStreamID) {
		return 0, newError(InternalError, "not a max_stream_id frame")
	}
	var v uint64
	w := getVarint(b[1:], &v)
	if w == 0 {
		return 0, newError(InternalError, "truncated max_stream_id frame")
	}
	f.maximumStreamID = uint32(v)
	return 1 + w, nil
}

// --- CONNECTION_CLOSE ---

type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	reasonPhrase []byte
}

func newConnectionCloseFrame(errorCode uint64, reason []byte, application bool) *connectionCloseFrame {
	return &connectionCloseFrame{application: application, errorCode: errorCode, reasonPhrase: reason}
}

func (f *connectionCloseFrame) frameType() uint64 { return frameTypeConnectionClose }
func (f *connectionCloseFrame) encodedLen() int {
	return 1 + 1 + varintLen(f.errorCode) + varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
}

func (f *connectionCloseFrame) encode(b []byte) int {
	b[0] = byte(frameTypeConnectionClose)
	n := 1
	if f.application {
		b[n] = 1
	} else {
		b[n] = 0
	}
	n++
	n += putVarint(b[n:], f.errorCode)
	n += putVarint(b[n:], uint64(len(f.reasonPhrase)))
	n += copy(b[n:], f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) decode(b []byte) (int, error) {
	if len(b) < 2 || b[0] != byte(frameTypeConnectionClose) {
		return 0, newError(InternalError, "not a connection_close frame")
	}
	n := 1
	app := b[n] != 0
	n++
	var code, ln uint64
	w := getVarint(b[n:], &code)
	if w == 0 {
		return 0, newError(InternalError, "truncated connection_close frame")
	}
	n += w
	w = getVarint(b[n:], &ln)
	if w == 0 {
		return 0, newError(InternalError, "truncated connection_close frame")
	}
	n += w
	if uint64(len(b)-n) < ln {
		return 0, newError(InternalError, "truncated connection_close reason")
	}
	f.application = app
	f.errorCode = code
	f.reasonPhrase = b[n : n+int(ln)]
	return n + int(ln), nil
}
