package quic

import (
	"io"
	"net"
)

// Server is the embedder-facing entry point for the server role: it owns a
// listening UDP socket and accepts a *Conn per new connection id it sees.
type Server struct {
	e *endpoint
}

// NewServer creates a Server from config. A nil config gets sane defaults
// (see newConfig).
func NewServer(config *Config) *Server {
	return &Server{e: newEndpoint(false, config)}
}

// SetHandler installs the event handler invoked after every Send/Recv round
// that produced events for a connection.
func (s *Server) SetHandler(h Handler) { s.e.handler = h }

// SetLogger installs ambient logrus-backed logging at the given verbosity,
// writing to w (nil keeps logrus's default stderr output).
func (s *Server) SetLogger(level int, w io.Writer) { s.e.log = newLogger(level, w) }

// ListenAndServe opens the UDP socket the server accepts connections on and
// starts serving until Close is called.
func (s *Server) ListenAndServe(addr string) error { return s.e.listen(addr) }

// LocalAddr returns the address the server socket is bound to.
func (s *Server) LocalAddr() net.Addr { return s.e.localAddr() }

// Close shuts down the listening socket and every connection it is serving.
func (s *Server) Close() error { return s.e.close() }
