package quic

import (
	"io"
	"net"
	"strings"
)

// Client is the embedder-facing entry point for the client role: it owns a
// local UDP socket and the connections dialed from it, same shape as the
// teacher's quic.Client but built on the shared endpoint loop.
type Client struct {
	e *endpoint
}

// NewClient creates a Client from config. A nil config gets sane defaults
// (see newConfig).
func NewClient(config *Config) *Client {
	return &Client{e: newEndpoint(true, config)}
}

// SetHandler installs the event handler invoked after every Send/Recv round
// that produced events for a connection.
func (c *Client) SetHandler(h Handler) { c.e.handler = h }

// SetLogger installs ambient logrus-backed logging at the given verbosity,
// writing to w (nil keeps logrus's default stderr output).
func (c *Client) SetLogger(level int, w io.Writer) { c.e.log = newLogger(level, w) }

// ListenAndServe opens the local UDP socket the client sends and receives
// on. addr may be "" or a port-only address to bind an ephemeral port.
func (c *Client) ListenAndServe(addr string) error { return c.e.listen(addr) }

// LocalAddr returns the address the client socket is bound to.
func (c *Client) LocalAddr() net.Addr { return c.e.localAddr() }

// Connect dials addr, returning once the initial flight has been sent. The
// handshake itself completes asynchronously; watch for EventConnAccept.
func (c *Client) Connect(addr string) (*Conn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	name := c.e.config.TLS.ServerName
	if name == "" {
		name = serverName(addr)
	}
	return c.e.connect(udpAddr, name)
}

// Close shuts down the client socket and every connection it is serving.
func (c *Client) Close() error { return c.e.close() }

// serverName strips the port off a host:port address, the same way the
// teacher's cmd/quince derives a TLS server name from a dial target.
func serverName(s string) string {
	colon := strings.LastIndex(s, ":")
	if colon > 0 {
		bracket := strings.LastIndex(s, "]")
		if colon > bracket {
			return s[:colon]
		}
	}
	return s
}
