package transport

import (
	"encoding/binary"
	"time"
)

// Packet Ingestor (spec.md 4.5): header-form dispatch, AEAD open, frame
// iteration/dispatch, and the STREAM-frame admission algorithm.

func (c *Conn) recvHandshakePkt(b []byte, now time.Time) error {
	var p packet
	if _, err := p.decodeHeader(b); err != nil {
		return err
	}
	typ := p.header.typ
	if typ == packetTypeShort {
		if len(c.rxBuffered) < MaxBufferedRxProtectedPackets {
			c.rxBuffered = append(c.rxBuffered, append([]byte(nil), b...))
		} else {
			c.logPacketDropped(&p, now)
		}
		return nil
	}
	if !verifyPacketHash(b) {
		return newError(BadPacketHash, "long header integrity tag mismatch")
	}
	if c.isClient && typ == packetTypeServerCleartext && len(p.header.scid) == 8 {
		c.connID = binary.BigEndian.Uint64(p.header.scid)
	}
	pn := adjustPktNum(c.maxRxPktNum, p.header.truncPN, 32)
	p.packetNumber = pn
	c.cb.recvPkt(typ, pn)
	payloadStart := p.header.pnOffset + p.header.pnLen
	payloadEnd := len(b) - packetHashLen
	if payloadEnd < payloadStart {
		return newError(ProtocolViolation, "packet shorter than header+tag")
	}
	payload := b[payloadStart:payloadEnd]
	p.payloadLen = len(payload)
	c.logPacketReceived(&p, now)

	ackElicited, handshakeFin, err := c.recvFrames(typ, payload, now)
	if err != nil {
		return err
	}
	if pn > c.maxRxPktNum || !c.gotFirstRxPkt {
		c.maxRxPktNum = pn
		c.gotFirstRxPkt = true
	}
	if ackElicited {
		c.ackTracker.add(pn, now)
	}
	if handshakeFin {
		if c.cb.HandshakeCompleted != nil {
			if err := c.cb.HandshakeCompleted(); err != nil {
				return newError(CallbackFailure, "handshake_completed failed")
			}
		}
		switch c.state {
		case stateClientWaitHandshake:
			c.state = stateClientHandshakeAlmostFinished
		default:
			c.state = statePostHandshake
			c.drainBufferedRx(now)
		}
	}
	return nil
}

func (c *Conn) recvProtectedPkt(b []byte, now time.Time) error {
	var p packet
	if _, err := p.decodeHeader(b); err != nil {
		return err
	}
	if p.header.typ != packetTypeShort {
		return newError(ProtocolViolation, "unexpected long-header packet post-handshake")
	}
	if c.rxCKM == nil || c.aead == nil {
		return newError(InvalidState, "rx keys not installed")
	}
	pn := adjustPktNum(c.maxRxPktNum, p.header.truncPN, uint(p.header.pnLen*8))
	headerLen := p.header.pnOffset + p.header.pnLen
	aad := b[:headerLen]
	plaintext, err := c.rxCKM.open(c.aead, nil, b[headerLen:], aad, pn)
	if err != nil {
		return err
	}
	p.packetNumber = pn
	p.payloadLen = len(plaintext)
	c.cb.recvPkt(packetTypeShort, pn)
	c.logPacketReceived(&p, now)
	ackElicited, _, err := c.recvFrames(packetTypeShort, plaintext, now)
	if err != nil {
		return err
	}
	if pn > c.maxRxPktNum || !c.gotFirstRxPkt {
		c.maxRxPktNum = pn
		c.gotFirstRxPkt = true
	}
	if ackElicited {
		c.ackTracker.add(pn, now)
	}
	return nil
}

// recvFrames iterates the frame vocabulary in wire order, dispatching each
// (spec.md 4.5 step 3). It returns whether any ack-eliciting frame was seen
// (step 4: schedule an ack) and whether stream 0 just observed its fin
// (this core's chosen handshake_completed signal, since stream 0 carries
// handshake bytes as ordinary STREAM frames per spec.md's glossary).
func (c *Conn) recvFrames(typ packetType, b []byte, now time.Time) (ackElicited, handshakeFin bool, err error) {
	for len(b) > 0 {
		var ftyp uint64
		w := getVarint(b, &ftyp)
		if w == 0 {
			return false, false, newError(ProtocolViolation, "truncated frame type")
		}
		switch ftyp {
		case frameTypePadding:
			var f paddingFrame
			n, derr := f.decode(b)
			if derr != nil {
				return false, false, derr
			}
			b = b[n:]
		case frameTypeStream:
			var f streamFrame
			n, derr := f.decode(b)
			if derr != nil {
				return false, false, derr
			}
			c.cb.recvFrame(typ, &f)
			c.logFrameProcessed(&f, now)
			if f.streamID == 0 {
				// spec.md 9: zero-datalen stream-0 frames are ignored
				// during handshake.
				if len(f.data) > 0 || f.fin {
					if cberr := c.cb.RecvHandshakeData(f.data); cberr != nil {
						return false, false, newError(CallbackFailure, "recv_handshake_data failed")
					}
					if f.fin {
						c.registry.streams[0].shutdown(shutRD)
						handshakeFin = true
					}
				}
			} else if serr := c.recvStreamFrame(&f, now); serr != nil {
				return false, false, serr
			}
			ackElicited = true
			b = b[n:]
		case frameTypeAck:
			var f ackFrame
			n, derr := f.decode(b)
			if derr != nil {
				return false, false, derr
			}
			c.cb.recvFrame(typ, &f)
			c.logFrameProcessed(&f, now)
			c.recvAck(&f)
			b = b[n:]
		case frameTypeMaxData:
			var f maxDataFrame
			n, derr := f.decode(b)
			if derr != nil {
				return false, false, derr
			}
			c.cb.recvFrame(typ, &f)
			c.logFrameProcessed(&f, now)
			c.flow.setMaxSend(f.maximumDataHigh)
			ackElicited = true
			b = b[n:]
		case frameTypeMaxStreamData:
			var f maxStreamDataFrame
			n, derr := f.decode(b)
			if derr != nil {
				return false, false, derr
			}
			c.cb.recvFrame(typ, &f)
			c.logFrameProcessed(&f, now)
			if s, ok := c.registry.find(f.streamID); ok {
				s.flow.setMaxSend(f.maximumData)
			}
			ackElicited = true
			b = b[n:]
		case frameTypeMaxStreamID:
			var f maxStreamIDFrame
			n, derr := f.decode(b)
			if derr != nil {
				return false, false, derr
			}
			c.cb.recvFrame(typ, &f)
			c.logFrameProcessed(&f, now)
			if f.maximumStreamID > c.remoteSettings.MaxStreamID {
				c.remoteSettings.MaxStreamID = f.maximumStreamID
			}
			ackElicited = true
			b = b[n:]
		case frameTypeConnectionClose:
			var f connectionCloseFrame
			n, derr := f.decode(b)
			if derr != nil {
				return false, false, derr
			}
			c.cb.recvFrame(typ, &f)
			c.logFrameProcessed(&f, now)
			c.state = stateCloseWait
			b = b[n:]
		default:
			if c.logEventFn != nil {
				c.logEventFn(newLogEventUnknownFrame(now, ftyp, b))
			}
			return false, false, newError(ProtocolViolation, "unsupported frame type")
		}
	}
	return ackElicited, handshakeFin, nil
}

// recvStreamFrame implements spec.md 4.5's non-handshake STREAM admission
// algorithm: id-limit check, registration/admission, flow-control checks
// (stream then connection), last_rx_offset/SHUT_RD bookkeeping, reassembly
// and contiguous delivery, and the destroy check.
func (c *Conn) recvStreamFrame(f *streamFrame, now time.Time) error {
	frEnd := f.offset + uint64(len(f.data))
	if frEnd < f.offset {
		return newError(ProtocolViolation, "stream offset overflow")
	}
	id := f.streamID
	peerInitiated := !isStreamLocal(id, c.isClient)
	if peerInitiated && id > c.localSettings.MaxStreamID {
		return newError(ProtocolViolation, "stream id exceeds local limit")
	}
	s, ok := c.registry.find(id)
	if !ok {
		if !peerInitiated {
			return newError(InvalidArgument, "frame for unknown local stream")
		}
		ns, result := c.registry.admitRemote(id)
		switch result {
		case admitPreviouslyClosed:
			return nil
		case admitOverLimit:
			return newError(ProtocolViolation, "stream id exceeds local limit")
		}
		s = ns
	}

	if frEnd > s.flow.maxRxOffset64() {
		return newError(FlowControlError, "stream flow control violated")
	}
	if frEnd > s.lastRxOffset {
		if s.isShutRD() {
			return newError(ProtocolViolation, "stream data received after SHUT_RD")
		}
		newBytes := frEnd - s.lastRxOffset
		if c.flow.maxDataViolated(newBytes) {
			return newError(FlowControlError, "connection flow control violated")
		}
		c.flow.addRecv(newBytes)
		s.lastRxOffset = frEnd
	}
	if f.fin {
		if frEnd != s.lastRxOffset {
			return newError(ProtocolViolation, "fin precedes last_rx_offset")
		}
		s.shutdown(shutRD)
	}

	rxOffset := s.rxOffset()
	if f.offset <= rxOffset {
		data := f.data
		if skip := rxOffset - f.offset; skip > 0 {
			if skip > uint64(len(data)) {
				skip = uint64(len(data))
			}
			data = data[skip:]
		}
		if len(data) > 0 {
			s.flow.addRecv(uint64(len(data)))
		}
		finNow := f.fin && s.recvBuf.empty()
		if len(data) > 0 || finNow {
			if err := c.cb.RecvStreamData(id, finNow, data); err != nil {
				return newError(CallbackFailure, "recv_stream_data failed")
			}
		}
		s.recvBuf.dropBefore(s.rxOffset())
		for {
			chunk, ok := s.recvBuf.popContiguous(s.rxOffset())
			if !ok {
				break
			}
			s.flow.addRecv(uint64(len(chunk.data)))
			chunkFin := chunk.fin && s.recvBuf.empty()
			if err := c.cb.RecvStreamData(id, chunkFin, chunk.data); err != nil {
				return newError(CallbackFailure, "recv_stream_data failed")
			}
		}
	} else {
		s.recvReordered(f.offset, f.data, f.fin)
	}

	if s.closable() {
		c.registry.destroy(id)
	}
	return nil
}

// recvAck processes an incoming ACK frame: frees matching RTB entries and
// applies their effects (stream acked-range bookkeeping, stream destroy
// check). Monotonicity of the decoded ranges is enforced by
// ackCoveredRanges itself, which stops decoding rather than underflow on a
// malformed block (spec.md 4.5 step 3).
func (c *Conn) recvAck(f *ackFrame) {
	freed := c.rtb.recvAck(f)
	for _, fr := range freed {
		sf, ok := fr.(*streamFrame)
		if !ok || sf.streamID == 0 {
			continue
		}
		s, ok := c.registry.find(sf.streamID)
		if !ok {
			continue
		}
		s.ack(sf.offset, uint64(len(sf.data)))
		if s.closable() {
			c.registry.destroy(sf.streamID)
		}
	}
}
