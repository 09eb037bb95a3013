package transport

import (
	"encoding/binary"
	"time"
)

// connState is the connection-level state machine spec.md 4.6 names
// explicitly. Unlike the teacher's 5-phase connectionState (which folds
// client and server into one enum with isClient/didRetry flags and also
// carries Retry/Version-Negotiation phases this early-draft core never
// reaches), client and server each walk their own named phase list, both
// converging on POST_HANDSHAKE/CLOSE_WAIT.
type connState uint8

const (
	stateClientInitial connState = iota
	stateClientWaitHandshake
	stateClientHandshakeAlmostFinished
	stateServerInitial
	stateServerWaitHandshake
	statePostHandshake
	stateCloseWait
)

func (s connState) String() string {
	switch s {
	case stateClientInitial:
		return "CLIENT_INITIAL"
	case stateClientWaitHandshake:
		return "CLIENT_WAIT_HANDSHAKE"
	case stateClientHandshakeAlmostFinished:
		return "CLIENT_HANDSHAKE_ALMOST_FINISHED"
	case stateServerInitial:
		return "SERVER_INITIAL"
	case stateServerWaitHandshake:
		return "SERVER_WAIT_HANDSHAKE"
	case statePostHandshake:
		return "POST_HANDSHAKE"
	case stateCloseWait:
		return "CLOSE_WAIT"
	default:
		return "UNKNOWN"
	}
}

func (s connState) isHandshakePhase() bool {
	return s != statePostHandshake && s != stateCloseWait
}

// Conn is one QUIC connection's Connection Core: the state machine,
// packet assembler/ingestor, and every owned collaborator (spec.md 3).
type Conn struct {
	isClient bool
	connID   uint64
	version  uint32

	state connState

	localSettings  Settings
	remoteSettings Settings

	nextTxPktNum  uint64
	maxRxPktNum   uint64
	gotFirstRxPkt bool

	flow       flowControl
	registry   streamRegistry
	ackTracker ackTracker
	rtb        retransmitBuffer
	frameQueue frameQueue

	txCKM *ckm
	rxCKM *ckm
	aead  AEAD

	// flowPending is the index-based arena replacing the teacher's/spec's
	// intrusive per-stream flow-control-pending list (spec.md 9): stream
	// ids currently linked, in link order.
	flowPending []uint32

	// rxBuffered holds short-header packets that arrive before the
	// handshake completes, capped at MaxBufferedRxProtectedPackets
	// (spec.md 4.6/5).
	rxBuffered [][]byte

	cb Callbacks

	closeFrame *connectionCloseFrame

	logEventFn func(LogEvent)
}

// NewClient constructs a client-role connection (spec.md 6 new_client).
func NewClient(connID uint64, version uint32, cb Callbacks, settings Settings, aead AEAD) (*Conn, error) {
	return newConn(connID, version, cb, settings, aead, true)
}

// NewServer constructs a server-role connection (spec.md 6 new_server).
func NewServer(connID uint64, version uint32, cb Callbacks, settings Settings, aead AEAD) (*Conn, error) {
	return newConn(connID, version, cb, settings, aead, false)
}

func newConn(connID uint64, version uint32, cb Callbacks, settings Settings, aead AEAD, isClient bool) (*Conn, error) {
	if cb.RecvHandshakeData == nil {
		return nil, newError(InvalidArgument, "RecvHandshakeData callback required")
	}
	c := &Conn{
		isClient:     isClient,
		connID:       connID,
		version:      version,
		localSettings: settings,
		cb:           cb,
		aead:         aead,
	}
	if isClient {
		c.state = stateClientInitial
	} else {
		c.state = stateServerInitial
	}
	c.ackTracker.init()
	c.rtb.init()
	c.flow.init(settings.MaxData, 0)
	c.registry.init(isClient, settings.MaxStreamData, 0, settings.MaxStreamID)
	// Stream 0 is created at connection birth (spec.md 3).
	s0 := &Stream{}
	s0.init(0, settings.MaxStreamData, settings.MaxStreamData)
	c.registry.streams[0] = s0
	return c, nil
}

func (c *Conn) cidBytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, c.connID)
	return b
}

// earliestExpiry returns min(next_ack_expiry, earliest_rtb_expiry), or the
// zero Time if neither is armed (spec.md 5).
func (c *Conn) earliestExpiry() time.Time {
	var deadline time.Time
	if !c.ackTracker.nextAckExpiry.IsZero() {
		deadline = c.ackTracker.nextAckExpiry
	}
	if top := c.rtb.top(); top != nil {
		if deadline.IsZero() || top.expiry.Before(deadline) {
			deadline = top.expiry
		}
	}
	return deadline
}

// EarliestExpiry returns the next deadline the embedder should arm a timer
// for (spec.md 6 earliest_expiry()), or the zero Time if nothing is armed.
func (c *Conn) EarliestExpiry() time.Time { return c.earliestExpiry() }

// Send produces one datagram into out, returning bytes written (0 if
// nothing to send) (spec.md 6 send()).
func (c *Conn) Send(out []byte, now time.Time) (int, error) {
	if n, ok, err := c.connRetransmit(out, now); ok {
		return n, err
	}
	switch c.state {
	case stateClientInitial:
		return c.sendClientInitial(out, now)
	case stateClientWaitHandshake, stateClientHandshakeAlmostFinished:
		return c.sendClientCleartext(out, now)
	case stateServerInitial:
		return c.sendServerCleartext(out, true, now)
	case stateServerWaitHandshake:
		return c.sendServerCleartext(out, false, now)
	case statePostHandshake, stateCloseWait:
		return c.sendProtected(out, now)
	default:
		return 0, newError(InvalidState, "unknown connection state")
	}
}

// Recv ingests one datagram (spec.md 6 recv()).
func (c *Conn) Recv(b []byte, now time.Time) error {
	if c.state.isHandshakePhase() {
		return c.recvHandshakePkt(b, now)
	}
	return c.recvProtectedPkt(b, now)
}

// connRetransmit attempts to drain the earliest-expired RTB entry before
// any state-driven send (spec.md 4.6). ok is false when there is nothing
// due, meaning the caller should fall through to its normal send path.
func (c *Conn) connRetransmit(out []byte, now time.Time) (n int, ok bool, err error) {
	c.frameQueue.pruneStale()
	top := c.rtb.top()
	if top == nil || top.expiry.After(now) {
		return 0, false, nil
	}
	if !top.typ.isLongHeader() && top.typ != packetTypeShort {
		c.rtb.pop()
		return 0, false, nil
	}
	entry := c.rtb.pop()
	frames := stripAckFrames(entry.frames)
	frames = c.filterStaleControlFrames(frames)
	if len(frames) == 0 {
		return 0, false, nil
	}

	budget := len(out) - c.packetOverheadEstimate(entry.typ)
	if budget <= 0 {
		c.rtb.add(entry)
		return 0, true, newError(NoBuffer, "no room to retransmit")
	}
	var packed []frame
	packedLen := 0
	i := 0
	for ; i < len(frames); i++ {
		ln := frames[i].encodedLen()
		if packedLen+ln > budget {
			break
		}
		packed = append(packed, frames[i])
		packedLen += ln
	}
	if len(packed) == 0 {
		c.rtb.add(&rtbEntry{pktNum: entry.pktNum, typ: entry.typ, frames: frames, ackEliciting: entry.ackEliciting, expiry: entry.expiry})
		return 0, true, newError(NoBuffer, "no room to retransmit")
	}
	if i < len(frames) {
		remaining := frames[i:]
		c.rtb.add(&rtbEntry{
			typ:          entry.typ,
			frames:       remaining,
			ackEliciting: entry.ackEliciting,
			expiry:       now.Add(InitialExpiry),
			pktNum:       entry.pktNum,
		})
	}
	pn := c.nextTxPktNum
	c.nextTxPktNum++
	n, err = c.encodePacket(out, entry.typ, pn, packed, now)
	if err != nil {
		return 0, true, err
	}
	c.rtb.add(&rtbEntry{pktNum: pn, typ: entry.typ, frames: packed, ackEliciting: true, expiry: now.Add(InitialExpiry)})
	return n, true, nil
}

// filterStaleControlFrames drops any MAX_STREAM_DATA/MAX_DATA/MAX_STREAM_ID
// frame in a retransmitted chain whose advertised value has already been
// superseded by current state — spec.md 4.4's stale-aware admission policy,
// applied here the way ngtcp2_conn's conn_retransmit_protected/unprotected
// drop a stale MAX_STREAM_DATA frame chain-walking the entry before
// re-encoding it. STREAM/ACK/CONNECTION_CLOSE frames pass through untouched.
func (c *Conn) filterStaleControlFrames(frames []frame) []frame {
	out := frames[:0:0]
	for _, f := range frames {
		switch fr := f.(type) {
		case *maxStreamDataFrame:
			s, ok := c.registry.find(fr.streamID)
			if !ok || fr.maximumData < s.flow.maxRxOffsetHigh {
				continue
			}
		case *maxDataFrame:
			if fr.maximumDataHigh < c.flow.maxRxOffsetHigh {
				continue
			}
		case *maxStreamIDFrame:
			if fr.maximumStreamID < c.localSettings.MaxStreamID {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

func (c *Conn) packetOverheadEstimate(typ packetType) int {
	if typ.isLongHeader() {
		return 1 + 4 + 1 + 8 + 1 + 8 + 4 + packetHashLen
	}
	return 1 + 8 + 4 + c.aeadOverhead()
}

func (c *Conn) aeadOverhead() int {
	if c.aead == nil {
		return 0
	}
	return c.aead.Overhead()
}

// Close sets the connection to draining, as the embedder's teardown
// request (spec.md 6/7 surfaced via CONNECTION_CLOSE). Per spec.md 3's
// Connection lifecycle ("destroyed by explicit teardown which cascades to
// all owned entities"), this also discards every stream and any
// outstanding retransmission record: nothing past this point is worth
// retransmitting or delivering.
func (c *Conn) Close(application bool, errorCode uint64, reason string) {
	if c.closeFrame != nil {
		return
	}
	c.closeFrame = newConnectionCloseFrame(errorCode, []byte(reason), application)
	c.frameQueue.push(c.closeFrame, nil)
	c.state = stateCloseWait
	c.registry.destroyAll()
	c.rtb.dropAll()
}

// OpenStream implements spec.md 6 open_stream: a locally-initiated stream
// must pass the remote id-limit check and must not already exist.
func (c *Conn) OpenStream(id uint32, user interface{}) (*Stream, error) {
	if !isStreamLocal(id, c.isClient) {
		return nil, newError(InvalidArgument, "not a local stream id")
	}
	if _, ok := c.registry.find(id); ok {
		return nil, newError(StreamInUse, "stream already open")
	}
	if id > c.remoteSettings.MaxStreamID {
		return nil, newError(StreamIDBlocked, "stream id exceeds remote limit")
	}
	s := c.registry.openLocal(id)
	s.User = user
	return s, nil
}

func (c *Conn) FindStream(id uint32) (*Stream, bool) {
	return c.registry.find(id)
}

func (c *Conn) CloseStream(s *Stream) {
	c.registry.destroy(s.id)
}

// ExtendMaxOffset is the application's cue that connection-level data has
// been consumed (spec.md 6/4.7).
func (c *Conn) ExtendMaxOffset(delta uint64) {
	c.flow.extendMaxOffset(delta)
}

// ExtendMaxStreamOffset is the per-stream equivalent; it links the stream
// into the flow-control-pending arena once consumption crosses half the
// announced window (spec.md 4.7).
func (c *Conn) ExtendMaxStreamOffset(id uint32, delta uint64) error {
	s, ok := c.registry.find(id)
	if !ok {
		return newError(InvalidArgument, "unknown stream")
	}
	s.flow.extendMaxOffset(delta)
	if !s.flowPendingLinked && s.flow.pendingCreditExceedsHalf(c.localSettings.MaxStreamData) {
		s.flowPendingLinked = true
		c.flowPending = append(c.flowPending, id)
	}
	return nil
}

// WriteStream is a one-shot packet emission carrying a single STREAM frame
// (spec.md 6 write_stream).
func (c *Conn) WriteStream(out []byte, id uint32, fin bool, data []byte, now time.Time) (written, consumed int, err error) {
	s, ok := c.registry.find(id)
	if !ok {
		return 0, 0, newError(InvalidArgument, "unknown stream")
	}
	s.pushSend(data, fin)
	n, err := c.sendProtected(out, now)
	if err != nil {
		return 0, 0, err
	}
	if fin && s.send.empty() {
		s.shutdown(shutWR)
		if s.closable() {
			c.registry.destroy(id)
		}
	}
	return n, len(data), nil
}

// SetRemoteTransportParams stores the peer's announced settings (spec.md 6).
func (c *Conn) SetRemoteTransportParams(s Settings) {
	c.remoteSettings = s
	c.flow.setMaxSend(s.MaxData)
}

// GetLocalTransportParams returns the local settings currently in effect.
func (c *Conn) GetLocalTransportParams() Settings {
	return c.localSettings
}

// UpdateTxKeys installs the protected send-direction key material. It is
// one-shot; calling it again is an error (spec.md 6).
func (c *Conn) UpdateTxKeys(key, iv []byte) error {
	if c.txCKM == nil {
		c.txCKM = &ckm{}
	} else if len(c.txCKM.txKey) > 0 {
		return newError(InvalidState, "tx keys already set")
	}
	c.txCKM.txKey = key
	c.txCKM.txIV = iv
	return nil
}

// UpdateRxKeys installs the protected receive-direction key material.
func (c *Conn) UpdateRxKeys(key, iv []byte) error {
	if c.rxCKM == nil {
		c.rxCKM = &ckm{}
	} else if len(c.rxCKM.rxKey) > 0 {
		return newError(InvalidState, "rx keys already set")
	}
	c.rxCKM.rxKey = key
	c.rxCKM.rxIV = iv
	return nil
}

func (c *Conn) IsEstablished() bool { return c.state == statePostHandshake || c.state == stateCloseWait }
func (c *Conn) IsClosed() bool      { return c.state == stateCloseWait }

// ConnID returns the connection id currently in effect (spec.md 3). For a
// client this updates once, to the server's chosen value, on the first
// SERVER_CLEARTEXT packet (DESIGN.md open question 8).
func (c *Conn) ConnID() uint64 { return c.connID }

// IsClient reports the role this connection was constructed with.
func (c *Conn) IsClient() bool { return c.isClient }

// OnLogEvent sets the handler for qlog-style wire-level events (spec.md
// ambient logging surface, distinct from the optional Recv*/Send*
// observers in Callbacks).
func (c *Conn) OnLogEvent(fn func(LogEvent)) {
	c.logEventFn = fn
}

func (c *Conn) logPacketDropped(p *packet, now time.Time) {
	if c.logEventFn != nil {
		c.logEventFn(newLogEventPacket(now, logEventPacketDropped, p))
	}
}

func (c *Conn) logPacketReceived(p *packet, now time.Time) {
	if c.logEventFn != nil {
		c.logEventFn(newLogEventPacket(now, logEventPacketReceived, p))
	}
}

func (c *Conn) logPacketSent(p *packet, frames []frame, now time.Time) {
	if c.logEventFn == nil {
		return
	}
	c.logEventFn(newLogEventPacket(now, logEventPacketSent, p))
	for _, f := range frames {
		c.logEventFn(newLogEventFrame(now, logEventFramesProcessed, f))
	}
}

func (c *Conn) logFrameProcessed(f frame, now time.Time) {
	if c.logEventFn != nil {
		c.logEventFn(newLogEventFrame(now, logEventFramesProcessed, f))
	}
}
