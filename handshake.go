package quic

import (
	"sync"

	"github.com/eeverettrbx/qcore/internal/aead"
	"github.com/eeverettrbx/qcore/transport"
)

// The Connection Core treats handshake bytes as opaque (spec.md 1: "TLS/
// handshake data production — the application feeds opaque handshake bytes
// for stream 0 through callbacks"). This package's default wiring is a toy
// three-message exchange (CLIENT_HELLO, SERVER_HELLO, OK), not a TLS handshake: a real embedder would hand
// stream 0 to crypto/tls's QUIC transport instead. The exchange exists
// purely so cmd/quince is runnable end to end.
const (
	clientHelloPrefix = "CLIENT_HELLO "
	serverHello       = "SERVER_HELLO"
	clientAck         = "OK"
)

// handshakeState tracks the toy exchange's progress for one connection.
type handshakeState struct {
	mu        sync.Mutex
	peerHello string
	acked     bool
}

// newCallbacks builds the transport.Callbacks for conn's role, wiring the
// toy handshake above plus stream-data delivery into conn.deliver and key
// installation into conn.installKeys once HandshakeCompleted fires.
func newCallbacks(isClient bool, serverName string, conn *Conn) transport.Callbacks {
	hs := &handshakeState{}
	cb := transport.Callbacks{}

	if isClient {
		cb.SendClientInitial = func(now int64) (uint64, []byte, bool, error) {
			return 1, []byte(clientHelloPrefix + serverName), false, nil
		}
		cb.SendClientCleartext = func(now int64) ([]byte, bool, error) {
			hs.mu.Lock()
			defer hs.mu.Unlock()
			if hs.peerHello == "" || hs.acked {
				return nil, false, nil
			}
			hs.acked = true
			return []byte(clientAck), true, nil
		}
	} else {
		cb.SendServerCleartext = func(initial bool, now int64) (uint64, []byte, bool, error) {
			if !initial {
				return 0, nil, false, nil
			}
			return 1, []byte(serverHello), true, nil
		}
	}

	cb.RecvHandshakeData = func(data []byte) error {
		hs.mu.Lock()
		hs.peerHello = string(data)
		hs.mu.Unlock()
		return nil
	}
	cb.HandshakeCompleted = func() error {
		conn.installKeys()
		conn.pushEvent(transport.Event{Type: EventConnAccept})
		return nil
	}
	cb.RecvStreamData = func(streamID uint32, fin bool, data []byte) error {
		conn.deliver(streamID, fin, data)
		return nil
	}
	return cb
}

// installKeys derives and installs matching AEAD key material for both
// directions once the toy handshake completes. The "secret" is the shared
// connection id, which is adequate to drive the Connection Core's protected
// send/recv path end to end but is not a real key agreement — see the
// internal/aead.DeriveKeys doc comment.
func (c *Conn) installKeys() {
	var secret [8]byte
	id := c.core.ConnID()
	for i := 0; i < 8; i++ {
		secret[7-i] = byte(id >> (8 * i))
	}
	c2sKey, c2sIV := aead.DeriveKeys(secret[:], "c2s")
	s2cKey, s2cIV := aead.DeriveKeys(secret[:], "s2c")
	if c.core.IsClient() {
		_ = c.core.UpdateTxKeys(c2sKey, c2sIV)
		_ = c.core.UpdateRxKeys(s2cKey, s2cIV)
	} else {
		_ = c.core.UpdateTxKeys(s2cKey, s2cIV)
		_ = c.core.UpdateRxKeys(c2sKey, c2sIV)
	}
}
