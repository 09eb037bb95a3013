package transport

import "time"

const (
	// MaxCIDLength is the largest connection id this core accepts.
	MaxCIDLength = 20

	// MinInitialPacketSize is the minimum datagram size a CLIENT_INITIAL
	// packet is padded to.
	MinInitialPacketSize = 1200
	// MaxPacketSize bounds the packets this core will ever try to build.
	MaxPacketSize = 65527

	// packetHashLen is the length, in bytes, of the trailing integrity tag
	// carried by unprotected long-header packets.
	packetHashLen = 16

	// InitialExpiry is the fixed retransmission timeout used by the naive
	// RTB expiry scheme (no RTT-based loss detection, per spec Non-goals).
	InitialExpiry = 1 * time.Second

	// DelayedAckTimeout bounds how long a received ack-eliciting packet may
	// go un-acked before the ACK Tracker's timer fires.
	DelayedAckTimeout = 25 * time.Millisecond

	// MaxBufferedRxProtectedPackets caps the short-header packets buffered
	// while the handshake is still in progress (spec 4.6/5).
	MaxBufferedRxProtectedPackets = 16

	// maxAckGap / maxAckBlocks cap ACK frame assembly (spec 4.2).
	maxAckGap    = 255
	maxAckBlocks = 255

	// maxStreamFrameOverhead is the worst-case non-data size of an encoded
	// STREAM frame (type + varint stream id + varint offset + varint length
	// + fin byte), used when budgeting packet space.
	maxStreamFrameOverhead = 1 + 8 + 8 + 8 + 1

	// streamSplitThreshold is the minimum remaining packet space (spec 4.4
	// step 5) below which packing of stream data stops for this packet; the
	// unsent data stays queued for a later packet.
	streamSplitThreshold = 1024
)
