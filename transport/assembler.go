package transport

import "time"

// Packet Assembler (spec.md 4.4): two encode variants (unprotected
// long-header handshake packets, AEAD-protected short-header packets)
// sharing the frame-packing order of spec.md 4.4/5: ACK, MAX_STREAM_ID
// (protected only), MAX_DATA, MAX_STREAM_DATA batch, then frame-queue/
// stream-data drain.

func (c *Conn) sendClientInitial(out []byte, now time.Time) (int, error) {
	if c.cb.SendClientInitial == nil {
		return 0, newError(CallbackFailure, "SendClientInitial not set")
	}
	pktNum, payload, fin, err := c.cb.SendClientInitial(now.UnixNano())
	if err != nil {
		return 0, newError(CallbackFailure, "send_client_initial failed")
	}
	var frames []frame
	s0 := c.registry.streams[0]
	if len(payload) > 0 {
		frames = append(frames, newStreamFrame(0, payload, s0.txOffset, fin))
		s0.advanceTx(len(payload))
	}
	overhead := c.packetOverheadEstimate(packetTypeClientInitial)
	payloadLen := 0
	for _, f := range frames {
		payloadLen += f.encodedLen()
	}
	if target := MinInitialPacketSize - overhead; payloadLen < target {
		frames = append(frames, newPaddingFrame(target-payloadLen))
	}
	c.nextTxPktNum = pktNum + 1
	n, err := c.encodePacket(out, packetTypeClientInitial, pktNum, frames, now)
	if err != nil {
		return 0, err
	}
	c.recordRTB(packetTypeClientInitial, pktNum, frames, now)
	c.state = stateClientWaitHandshake
	return n, nil
}

func (c *Conn) sendClientCleartext(out []byte, now time.Time) (int, error) {
	if c.cb.SendClientCleartext == nil {
		return 0, newError(CallbackFailure, "SendClientCleartext not set")
	}
	payload, fin, err := c.cb.SendClientCleartext(now.UnixNano())
	if err != nil {
		return 0, newError(CallbackFailure, "send_client_cleartext failed")
	}
	if len(payload) == 0 {
		if c.state == stateClientHandshakeAlmostFinished {
			c.state = statePostHandshake
			c.drainBufferedRx(now)
			return 0, nil
		}
		return c.sendAckOnlyCleartext(out, packetTypeClientCleartext, now)
	}
	s0 := c.registry.streams[0]
	frames := []frame{newStreamFrame(0, payload, s0.txOffset, fin)}
	s0.advanceTx(len(payload))
	pktNum := c.nextTxPktNum
	c.nextTxPktNum++
	n, err := c.encodePacket(out, packetTypeClientCleartext, pktNum, frames, now)
	if err != nil {
		return 0, err
	}
	c.recordRTB(packetTypeClientCleartext, pktNum, frames, now)
	return n, nil
}

func (c *Conn) sendServerCleartext(out []byte, initial bool, now time.Time) (int, error) {
	if c.cb.SendServerCleartext == nil {
		return 0, newError(CallbackFailure, "SendServerCleartext not set")
	}
	pktNum, payload, fin, err := c.cb.SendServerCleartext(initial, now.UnixNano())
	if err != nil {
		return 0, newError(CallbackFailure, "send_server_cleartext failed")
	}
	if initial {
		c.nextTxPktNum = pktNum + 1
	} else {
		pktNum = c.nextTxPktNum
		c.nextTxPktNum++
	}
	if len(payload) == 0 {
		if initial {
			c.state = stateServerWaitHandshake
			return 0, nil
		}
		return c.sendAckOnlyCleartext(out, packetTypeServerCleartext, now)
	}
	s0 := c.registry.streams[0]
	frames := []frame{newStreamFrame(0, payload, s0.txOffset, fin)}
	s0.advanceTx(len(payload))
	n, err := c.encodePacket(out, packetTypeServerCleartext, pktNum, frames, now)
	if err != nil {
		return 0, err
	}
	c.recordRTB(packetTypeServerCleartext, pktNum, frames, now)
	if initial {
		c.state = stateServerWaitHandshake
	}
	return n, nil
}

func (c *Conn) sendAckOnlyCleartext(out []byte, typ packetType, now time.Time) (int, error) {
	if c.ackTracker.empty() || now.Before(c.ackTracker.nextAckExpiry) {
		return 0, nil
	}
	f := c.ackTracker.assemble(now)
	if f == nil {
		return 0, nil
	}
	pktNum := c.nextTxPktNum
	c.nextTxPktNum++
	return c.encodePacket(out, typ, pktNum, []frame{f}, now)
}

func (c *Conn) sendProtected(out []byte, now time.Time) (int, error) {
	overhead := c.packetOverheadEstimate(packetTypeShort)
	budget := len(out) - overhead
	if budget <= 0 {
		return 0, newError(NoBuffer, "buffer too small")
	}
	frames, _ := c.packFrames(budget, now, true)
	if len(frames) == 0 {
		return 0, nil
	}
	pktNum := c.nextTxPktNum
	c.nextTxPktNum++
	n, err := c.encodePacket(out, packetTypeShort, pktNum, frames, now)
	if err != nil {
		return 0, err
	}
	c.recordRTB(packetTypeShort, pktNum, frames, now)
	return n, nil
}

// packFrames implements spec.md 4.4 steps 1, (2), 3-5, shared by both
// packet forms. protected gates step 2 (MAX_STREAM_ID), which spec.md
// restricts to protected packets only.
func (c *Conn) packFrames(budget int, now time.Time, protected bool) ([]frame, int) {
	var frames []frame
	used := 0
	add := func(f frame) bool {
		ln := f.encodedLen()
		if ln > budget {
			return false
		}
		frames = append(frames, f)
		used += ln
		budget -= ln
		return true
	}

	// 1. ACK
	if !c.ackTracker.empty() && !now.Before(c.ackTracker.nextAckExpiry) {
		if f := c.ackTracker.assemble(now); f != nil {
			add(f)
		}
	}

	// 2. MAX_STREAM_ID, protected only
	if protected {
		if f := c.registry.bumpLimitFrame(c.localSettings.MaxStreamID); f != nil {
			if add(f) {
				c.localSettings.MaxStreamID = f.maximumStreamID
			}
		}
	}

	// 3. MAX_DATA
	if c.flow.shouldSendMaxData() {
		f := newMaxDataFrame(c.flow.unsentMaxRxOffsetHigh)
		if add(f) {
			c.flow.commitMaxRecv()
		}
	}

	// 4. Drain flow-control-pending arena into MAX_STREAM_DATA frames.
	if len(c.flowPending) > 0 {
		remaining := c.flowPending[:0:0]
		for _, id := range c.flowPending {
			s, ok := c.registry.find(id)
			if !ok {
				continue
			}
			f := newMaxStreamDataFrame(id, s.flow.unsentMaxRxOffsetHigh)
			if add(f) {
				s.flow.commitMaxRecv()
				s.flowPendingLinked = false
			} else {
				remaining = append(remaining, id)
			}
		}
		c.flowPending = remaining
	}

	// 5. Frame queue (the CONNECTION_CLOSE that Close pushes), then
	// stream-data.
	for _, f := range c.frameQueue.drain(budget) {
		ln := f.encodedLen()
		frames = append(frames, f)
		used += ln
		budget -= ln
	}

	if protected {
		for _, id := range pendingStreamIDs(&c.registry) {
			s := c.registry.streams[id]
			left := budget - maxStreamFrameOverhead
			if left < streamSplitThreshold {
				// Not enough room left to usefully split further data;
				// stop draining stream data entirely (spec.md 4.4 step 5).
				break
			}
			allowed := left
			if credit := int(c.flow.canSend()); credit < allowed {
				allowed = credit
			}
			if allowed <= 0 {
				continue
			}
			data, offset, fin := s.popSend(allowed)
			if len(data) == 0 {
				continue
			}
			f := newStreamFrame(id, data, offset, fin)
			ln := f.encodedLen()
			frames = append(frames, f)
			used += ln
			budget -= ln
			c.flow.addSend(len(data))
			s.advanceTx(len(data))
		}
	}

	return frames, used
}

// pendingStreamIDs returns, in ascending order, the ids of streams with
// unsent data queued.
func pendingStreamIDs(r *streamRegistry) []uint32 {
	var ids []uint32
	for id, s := range r.streams {
		if !s.send.empty() {
			ids = append(ids, id)
		}
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// recordRTB finalizes step 6: if frames contains any ack-eliciting
// (retransmittable) content, record an RTB entry owning the non-padding
// frames (spec.md 4.4 step 6).
func (c *Conn) recordRTB(typ packetType, pktNum uint64, frames []frame, now time.Time) {
	var kept []frame
	ackEliciting := false
	for _, f := range frames {
		if _, ok := f.(*paddingFrame); ok {
			continue
		}
		kept = append(kept, f)
		if isFrameAckEliciting(f.frameType()) {
			ackEliciting = true
		}
	}
	if !ackEliciting {
		return
	}
	c.rtb.add(&rtbEntry{
		pktNum:       pktNum,
		typ:          typ,
		frames:       kept,
		ackEliciting: true,
		expiry:       now.Add(InitialExpiry),
	})
}

// encodePacket writes one packet of typ/pktNum carrying frames into out,
// choosing the unprotected or AEAD-protected encoding per spec.md 4.4.
func (c *Conn) encodePacket(out []byte, typ packetType, pktNum uint64, frames []frame, now time.Time) (int, error) {
	cid := c.cidBytes()
	payloadLen := 0
	for _, f := range frames {
		payloadLen += f.encodedLen()
	}
	payload := make([]byte, payloadLen)
	if _, err := encodeFrames(payload, frames); err != nil {
		return 0, err
	}
	for _, f := range frames {
		c.cb.sendFrame(typ, f)
	}
	var n int
	var err error
	if typ.isLongHeader() {
		n, err = encodeLongHeader(out, typ, c.version, cid, cid, pktNum, payload)
	} else {
		if c.txCKM == nil || c.aead == nil {
			return 0, newError(InvalidState, "protected send requires tx keys and an AEAD")
		}
		pnLen := pnLenFor(pktNum, c.maxRxPktNum)
		headerLen, herr := encodeShortHeader(out, cid, pktNum, pnLen)
		if herr != nil {
			return 0, herr
		}
		sealed, serr := c.txCKM.seal(c.aead, out[headerLen:headerLen], payload, out[:headerLen], pktNum)
		if serr != nil {
			return 0, serr
		}
		n = headerLen + len(sealed)
	}
	if err != nil {
		return 0, err
	}
	c.cb.sendPkt(typ, pktNum)
	hdr := packetHeader{typ: typ, dcid: cid, scid: cid}
	if typ.isLongHeader() {
		hdr.version = c.version
	}
	c.logPacketSent(&packet{header: hdr, packetNumber: pktNum, payloadLen: payloadLen}, frames, now)
	return n, nil
}

// drainBufferedRx replays short-header packets buffered during the
// handshake phase (spec.md 4.6), in arrival order.
func (c *Conn) drainBufferedRx(now time.Time) {
	buffered := c.rxBuffered
	c.rxBuffered = nil
	for _, b := range buffered {
		_ = c.recvProtectedPkt(b, now)
	}
}
