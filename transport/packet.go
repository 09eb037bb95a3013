package transport

import (
	"crypto/sha256"
)

// packetType distinguishes the long-header handshake packet types from the
// short-header protected form. Retry and Version Negotiation packet types
// are intentionally absent: the core's state machine never produces or
// consumes them (spec.md Non-goals; DESIGN.md Open Question 1).
type packetType uint8

const (
	packetTypeClientInitial packetType = iota
	packetTypeClientCleartext
	packetTypeServerCleartext
	packetTypeShort
)

// connIDLen is the fixed width of this core's single 64-bit connection id
// on the wire (DESIGN.md Open Question 8).
const connIDLen = 8

func (t packetType) String() string {
	switch t {
	case packetTypeClientInitial:
		return "CLIENT_INITIAL"
	case packetTypeClientCleartext:
		return "CLIENT_CLEARTEXT"
	case packetTypeServerCleartext:
		return "SERVER_CLEARTEXT"
	case packetTypeShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

func (t packetType) isLongHeader() bool { return t != packetTypeShort }

// packetHeader is the decoded header of one packet. dcid/scid reference
// into the decode buffer and must be copied by the caller if retained.
type packetHeader struct {
	typ     packetType
	version uint32
	dcid    []byte
	scid    []byte // long-header only

	// pnOffset/pnLen describe where the truncated packet number lives in
	// the original buffer, so the caller can reconstruct it once the full
	// header (and, for long packets, a length field) has been parsed.
	pnOffset int
	pnLen    int
	truncPN  uint64
}

// packet is a header plus the bookkeeping the assembler/ingestor carry
// alongside it; it does not itself own the payload bytes.
type packet struct {
	header       packetHeader
	packetNumber uint64
	payloadLen   int // length of the frame payload, excluding header/tag/AEAD overhead bookkeeping
}

// headerForm returns true if the top bit of the first byte marks a
// long-header packet.
func headerForm(b byte) bool { return b&0x80 != 0 }

// decodeHeader parses a packet header from the front of b. It does not
// consume the packet number's variable-width encoding into packetNumber
// directly (truncPN holds the raw truncated value; reconstruction needs
// the connection's max_rx_pkt_num and happens in the ingestor).
func (p *packet) decodeHeader(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, newError(ProtocolViolation, "short packet")
	}
	b0 := b[0]
	if headerForm(b0) {
		return p.decodeLongHeader(b)
	}
	return p.decodeShortHeader(b)
}

func (p *packet) decodeLongHeader(b []byte) (int, error) {
	// byte0: 1 | typ(2 bits) | unused(5 bits)
	typ := packetType((b[0] >> 5) & 0x03)
	n := 1
	if len(b) < n+4 {
		return 0, newError(ProtocolViolation, "short long header")
	}
	version := uint32(b[n])<<24 | uint32(b[n+1])<<16 | uint32(b[n+2])<<8 | uint32(b[n+3])
	n += 4
	dcid, w, err := decodeCID(b[n:])
	if err != nil {
		return 0, err
	}
	n += w
	scid, w, err := decodeCID(b[n:])
	if err != nil {
		return 0, err
	}
	n += w
	if len(b) < n+4 {
		return 0, newError(ProtocolViolation, "short long header packet number")
	}
	pn := uint64(b[n])<<24 | uint64(b[n+1])<<16 | uint64(b[n+2])<<8 | uint64(b[n+3])
	p.header = packetHeader{
		typ:      typ,
		version:  version,
		dcid:     dcid,
		scid:     scid,
		pnOffset: n,
		pnLen:    4,
		truncPN:  pn,
	}
	return n + 4, nil
}

func (p *packet) decodeShortHeader(b []byte) (int, error) {
	// byte0: 0 | unused(5 bits) | pnLenType(2 bits)
	pnLen := shortPNLen(b[0] & 0x03)
	n := 1
	// Short headers carry no cid-length field; this core always uses an
	// 8-byte connection id (spec.md Data Model, DESIGN.md Open Question 8),
	// so the dcid width is implicit rather than caller-supplied.
	dcidLen := connIDLen
	if len(b) < n+dcidLen {
		return 0, newError(ProtocolViolation, "short header too short for dcid")
	}
	dcid := b[n : n+dcidLen]
	n += dcidLen
	if len(b) < n+pnLen {
		return 0, newError(ProtocolViolation, "short header too short for packet number")
	}
	var pn uint64
	for i := 0; i < pnLen; i++ {
		pn = pn<<8 | uint64(b[n+i])
	}
	p.header = packetHeader{
		typ:      packetTypeShort,
		dcid:     dcid,
		pnOffset: n,
		pnLen:    pnLen,
		truncPN:  pn,
	}
	return n + pnLen, nil
}

func shortPNLen(bits byte) int {
	switch bits {
	case 0:
		return 1
	case 1:
		return 2
	default:
		return 4
	}
}

func shortPNLenBits(pnLen int) byte {
	switch pnLen {
	case 1:
		return 0
	case 2:
		return 1
	default:
		return 2
	}
}

func decodeCID(b []byte) ([]byte, int, error) {
	if len(b) < 1 {
		return nil, 0, newError(ProtocolViolation, "missing cid length")
	}
	ln := int(b[0])
	if ln > MaxCIDLength || len(b) < 1+ln {
		return nil, 0, newError(ProtocolViolation, "invalid cid length")
	}
	return b[1 : 1+ln], 1 + ln, nil
}

// encodeLongHeader writes an unprotected long-header packet (header, frame
// payload, trailing integrity tag). pn is the full 64-bit packet number;
// long-header packets always carry it in 32 bits (spec.md 6).
func encodeLongHeader(b []byte, typ packetType, version uint32, dcid, scid []byte, pn uint64, payload []byte) (int, error) {
	need := 1 + 4 + 1 + len(dcid) + 1 + len(scid) + 4 + len(payload) + packetHashLen
	if len(b) < need {
		return 0, newError(NoBuffer, "short buffer for long header packet")
	}
	n := 0
	b[n] = 0x80 | byte(typ)<<5
	n++
	b[n] = byte(version >> 24)
	b[n+1] = byte(version >> 16)
	b[n+2] = byte(version >> 8)
	b[n+3] = byte(version)
	n += 4
	b[n] = byte(len(dcid))
	n++
	n += copy(b[n:], dcid)
	b[n] = byte(len(scid))
	n++
	n += copy(b[n:], scid)
	b[n] = byte(pn >> 24)
	b[n+1] = byte(pn >> 16)
	b[n+2] = byte(pn >> 8)
	b[n+3] = byte(pn)
	n += 4
	n += copy(b[n:], payload)
	tag := packetHash(b[:n])
	n += copy(b[n:], tag)
	return n, nil
}

// encodeShortHeader writes the short header of a protected packet into b
// and returns its length, which is also the offset at which the caller
// places the sealed payload.
func encodeShortHeader(b []byte, dcid []byte, pn uint64, pnLen int) (headerLen int, err error) {
	need := 1 + len(dcid) + pnLen
	if len(b) < need {
		return 0, newError(NoBuffer, "short buffer for short header packet")
	}
	n := 0
	b[n] = shortPNLenBits(pnLen)
	n++
	n += copy(b[n:], dcid)
	for i := pnLen - 1; i >= 0; i-- {
		b[n+i] = byte(pn)
		pn >>= 8
	}
	n += pnLen
	return n, nil
}

// packetHash computes the fixed-length integrity tag for unprotected
// long-header packets. This is not a security boundary (the cleartext
// handshake payload is protected by the real AEAD once a handshake key is
// negotiated); it only guards against on-wire corruption of packets sent
// before any key material exists, per spec.md's "footer hash" wording.
func packetHash(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:packetHashLen]
}

func verifyPacketHash(b []byte) bool {
	if len(b) < packetHashLen {
		return false
	}
	body, tag := b[:len(b)-packetHashLen], b[len(b)-packetHashLen:]
	want := packetHash(body)
	if len(tag) != len(want) {
		return false
	}
	for i := range tag {
		if tag[i] != want[i] {
			return false
		}
	}
	return true
}

// adjustPktNum reconstructs the full 64-bit packet number closest to
// maxRxPktNum given a truncated value of the given bit width, per spec.md
// 4.5/8 (property 5: nearest-in-window reconstruction).
func adjustPktNum(maxRxPktNum uint64, truncated uint64, width uint) uint64 {
	if maxRxPktNum == 0 && truncated == 0 {
		return 0
	}
	bits := uint64(1) << width
	mask := bits - 1
	expected := maxRxPktNum + 1
	win := bits / 2
	candidate := (expected &^ mask) | (truncated & mask)
	switch {
	case candidate+win <= expected && candidate+bits <= (^uint64(0)-win):
		return candidate + bits
	case candidate > expected+win && candidate >= bits:
		return candidate - bits
	default:
		return candidate
	}
}

// PeekConnID extracts the destination connection id from a datagram without
// fully decoding its header, so an embedder's listener can demultiplex
// incoming packets across live connections before handing one to its Conn.
func PeekConnID(b []byte) (uint64, bool) {
	if len(b) < 1 {
		return 0, false
	}
	var dcid []byte
	if headerForm(b[0]) {
		if len(b) < 6 {
			return 0, false
		}
		var err error
		dcid, _, err = decodeCID(b[5:])
		if err != nil {
			return 0, false
		}
	} else {
		if len(b) < 1+connIDLen {
			return 0, false
		}
		dcid = b[1 : 1+connIDLen]
	}
	if len(dcid) != connIDLen {
		return 0, false
	}
	var v uint64
	for _, c := range dcid {
		v = v<<8 | uint64(c)
	}
	return v, true
}

// pnLenFor picks the narrowest width (1, 2 or 4 bytes) that can unambiguously
// encode pn given the largest packet number the peer has acknowledged,
// mirroring real QUIC's packet-number-length selection.
func pnLenFor(pn, largestAcked uint64) int {
	diff := pn
	if largestAcked > 0 && pn > largestAcked {
		diff = pn - largestAcked
	}
	switch {
	case diff < 1<<7:
		return 1
	case diff < 1<<15:
		return 2
	default:
		return 4
	}
}

