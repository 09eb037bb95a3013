package transport

// Settings are the local (or learned-remote) transport parameters spec.md
// 6 describes as `set_remote_transport_params`/`get_local_transport_params`.
// Unlike the teacher's full TLS transport-parameter extension, this core
// only tracks the three limits the spec's components actually consult.
type Settings struct {
	MaxStreamID     uint32
	MaxData         uint64 // kibibyte units, matching flowControl's high component
	MaxStreamData   uint64 // kibibyte units
}

// Callbacks are the application-supplied collaborators spec.md 6 lists.
// Every method mirrors the spec's naming so the state machine in conn.go
// reads as a direct transliteration. Construction fails only when
// RecvHandshakeData is nil. A nil Send* handshake callback makes Send fail
// with CallbackFailure once the state machine needs it; a nil
// HandshakeCompleted or observer is skipped; RecvStreamData is called
// without a nil check.
type Callbacks struct {
	// SendClientInitial returns the starting packet number and first
	// handshake chunk for CLIENT_INITIAL. fin marks this as the client's
	// last handshake contribution (this core's chosen handshake_completed
	// signal, see DESIGN.md open question 7).
	SendClientInitial func(now int64) (pktNum uint64, payload []byte, fin bool, err error)
	// SendClientCleartext returns further handshake bytes, or nil/empty
	// when there is nothing left to send this round.
	SendClientCleartext func(now int64) (payload []byte, fin bool, err error)
	// SendServerCleartext returns handshake bytes for SERVER_INITIAL
	// (initial=true) or SERVER_WAIT_HANDSHAKE (initial=false), and on the
	// first call also yields the starting packet number.
	SendServerCleartext func(initial bool, now int64) (pktNum uint64, payload []byte, fin bool, err error)

	// RecvHandshakeData delivers contiguous stream-0 bytes.
	RecvHandshakeData func(data []byte) error
	// HandshakeCompleted fires when the peer's stream-0 fin arrives. A
	// server then moves to POST_HANDSHAKE; a client moves to
	// CLIENT_HANDSHAKE_ALMOST_FINISHED and reaches POST_HANDSHAKE only after
	// sending its own last handshake packet.
	HandshakeCompleted func() error

	// RecvStreamData delivers contiguous application-stream bytes.
	RecvStreamData func(streamID uint32, fin bool, data []byte) error

	// Observers, all optional.
	RecvPkt   func(typ packetType, pktNum uint64)
	RecvFrame func(typ packetType, f frame)
	SendPkt   func(typ packetType, pktNum uint64)
	SendFrame func(typ packetType, f frame)
}

func (c *Callbacks) recvPkt(typ packetType, pn uint64) {
	if c.RecvPkt != nil {
		c.RecvPkt(typ, pn)
	}
}

func (c *Callbacks) recvFrame(typ packetType, f frame) {
	if c.RecvFrame != nil {
		c.RecvFrame(typ, f)
	}
}

func (c *Callbacks) sendPkt(typ packetType, pn uint64) {
	if c.SendPkt != nil {
		c.SendPkt(typ, pn)
	}
}

func (c *Callbacks) sendFrame(typ packetType, f frame) {
	if c.SendFrame != nil {
		c.SendFrame(typ, f)
	}
}

// Config bundles everything a role-specific factory needs to build a Conn.
type Config struct {
	ConnID    uint64
	Version   uint32
	Settings  Settings
	Callbacks Callbacks
	AEAD      AEAD
}
