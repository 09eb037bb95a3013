package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// noopAEAD is a pass-through AEAD used only to drive the state machine in
// tests without real key material — equivalent in spirit to the teacher's
// own test doubles for the Connection Core's crypto boundary.
type noopAEAD struct{}

func (noopAEAD) Overhead() int { return 0 }
func (noopAEAD) Encrypt(out, plaintext, key, nonce, aad []byte) ([]byte, error) {
	return append(out, plaintext...), nil
}
func (noopAEAD) Decrypt(out, ciphertext, key, nonce, aad []byte) ([]byte, error) {
	return append(out, ciphertext...), nil
}

// handshakeHarness wires a minimal three-message stream-0 exchange
// (CLIENT_HELLO, SERVER_HELLO, OK) similar in shape to the root quic
// package's handshake.go, so the Connection Core can be driven end to end
// without an embedder.
type handshakeHarness struct {
	peerHello string // first stream-0 message received from the peer
	acked     bool
	completed bool
}

func newTestCallbacks(isClient bool, h *handshakeHarness, recv *[]byte) Callbacks {
	cb := Callbacks{}
	if isClient {
		cb.SendClientInitial = func(now int64) (uint64, []byte, bool, error) {
			return 1, []byte("CLIENT_HELLO"), false, nil
		}
		cb.SendClientCleartext = func(now int64) ([]byte, bool, error) {
			if h.peerHello == "" || h.acked {
				return nil, false, nil
			}
			h.acked = true
			return []byte("OK"), true, nil
		}
	} else {
		cb.SendServerCleartext = func(initial bool, now int64) (uint64, []byte, bool, error) {
			if !initial {
				return 0, nil, false, nil
			}
			return 1, []byte("SERVER_HELLO"), true, nil
		}
	}
	cb.RecvHandshakeData = func(data []byte) error {
		if h.peerHello == "" {
			h.peerHello = string(data)
		}
		return nil
	}
	cb.HandshakeCompleted = func() error {
		h.completed = true
		return nil
	}
	cb.RecvStreamData = func(streamID uint32, fin bool, data []byte) error {
		*recv = append(*recv, data...)
		return nil
	}
	return cb
}

// TestHandshakeRoundTripEstablishesBothSides drives a full client/server
// handshake over an in-memory relay and confirms both sides converge on
// POST_HANDSHAKE (spec.md 8's round-trip laws, expanded into a concrete
// scenario test since this core has no embedder of its own to exercise it).
func TestHandshakeRoundTripEstablishesBothSides(t *testing.T) {
	now := time.Now()
	settings := Settings{MaxStreamID: 8, MaxData: 64, MaxStreamData: 64}

	clientHS := &handshakeHarness{}
	serverHS := &handshakeHarness{}
	var clientRecv, serverRecv []byte

	client, err := NewClient(1, 1, newTestCallbacks(true, clientHS, &clientRecv), settings, noopAEAD{})
	require.NoError(t, err)
	server, err := NewServer(1, 1, newTestCallbacks(false, serverHS, &serverRecv), settings, noopAEAD{})
	require.NoError(t, err)
	client.SetRemoteTransportParams(settings)
	server.SetRemoteTransportParams(settings)

	buf := make([]byte, MaxPacketSize)
	relay := func(from, to *Conn) bool {
		n, err := from.Send(buf, now)
		require.NoError(t, err)
		if n == 0 {
			return false
		}
		require.NoError(t, to.Recv(buf[:n], now))
		return true
	}

	// Drive the handshake to completion: client flight, server reply,
	// client ack, server's final transition. A handful of rounds is enough
	// since this toy exchange has no retransmits in the happy path.
	for i := 0; i < 6; i++ {
		relay(client, server)
		relay(server, client)
	}

	require.True(t, client.IsEstablished(), "client should reach POST_HANDSHAKE")
	require.True(t, server.IsEstablished(), "server should reach POST_HANDSHAKE")
	require.True(t, clientHS.completed)
	require.True(t, serverHS.completed)
	require.Equal(t, "SERVER_HELLO", clientHS.peerHello)
	require.Equal(t, "CLIENT_HELLO", serverHS.peerHello)

	// noopAEAD ignores key/nonce entirely, so any matching material is
	// enough to drive the protected send/recv path once established.
	key, iv := []byte("key"), []byte("iv")
	require.NoError(t, client.UpdateTxKeys(key, iv))
	require.NoError(t, client.UpdateRxKeys(key, iv))
	require.NoError(t, server.UpdateTxKeys(key, iv))
	require.NoError(t, server.UpdateRxKeys(key, iv))

	// Round-trip law: data written on one side's stream arrives verbatim
	// on the other (spec.md 8).
	_, err = client.OpenStream(1, nil)
	require.NoError(t, err)
	out := make([]byte, MaxPacketSize)
	written, _, err := client.WriteStream(out, 1, true, []byte("hello server"), now)
	require.NoError(t, err)
	require.Greater(t, written, 0)
	require.NoError(t, server.Recv(out[:written], now))
	require.Equal(t, "hello server", string(serverRecv))
}
