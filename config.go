package quic

import (
	"github.com/rs/xid"

	"github.com/eeverettrbx/qcore/internal/config"
	"github.com/eeverettrbx/qcore/internal/metrics"
	"github.com/eeverettrbx/qcore/transport"
)

// TLSConfig carries the handshake-identity knobs cmd/quince exposes. This
// core's handshake bytes are opaque to the Connection Core (spec.md 1), so
// they are not a real TLS stack: ServerName is passed to this package's
// default toy handshake (handshake.go), and InsecureSkipVerify is carried
// but not read.
type TLSConfig struct {
	ServerName         string
	InsecureSkipVerify bool
}

// Config bundles everything NewClient/NewServer need.
type Config struct {
	// ConnID is the connection id to use; zero means synthesize one from
	// the first 8 bytes of an xid (SPEC_FULL.md 3 expansion).
	ConnID uint64
	// Version is the protocol version surfaced on the wire; this core
	// does not negotiate it beyond carrying it (spec.md Non-goals).
	Version uint32

	Settings transport.Settings
	TLS      TLSConfig

	// Metrics, if set, is wired to every connection's qlog observer
	// stream via transport.Conn.OnLogEvent (SPEC_FULL.md 3 expansion).
	Metrics *metrics.Collectors
}

// newConfig returns a Config with the settings a standalone quince process
// needs to be minimally useful: generous enough limits to carry the CLI's
// one-shot request/response stream, no metrics wired by default.
func newConfig() *Config {
	return &Config{
		Version: 1,
		Settings: transport.Settings{
			MaxStreamID:   8,
			MaxData:       64, // kibibytes
			MaxStreamData: 64, // kibibytes
		},
	}
}

// NewConfigFromFile translates a loaded internal/config.File into a Config,
// wiring a metrics.Collectors when the file asks for it. This is the bridge
// cmd/quince uses between its YAML settings and this package's API.
func NewConfigFromFile(f *config.File) *Config {
	cfg := &Config{
		Version: 1,
		Settings: transport.Settings{
			MaxStreamID:   f.Limits.MaxStreamID,
			MaxData:       f.Limits.MaxData,
			MaxStreamData: f.Limits.MaxStreamData,
		},
		TLS: TLSConfig{
			ServerName:         f.TLS.ServerName,
			InsecureSkipVerify: f.TLS.InsecureSkipVerify,
		},
	}
	if f.Metrics.Enabled {
		cfg.Metrics = metrics.NewCollectors(f.Metrics.Namespace)
	}
	return cfg
}

// resolveConnID returns cfg.ConnID, or a freshly synthesized one.
func resolveConnID(cfg *Config) uint64 {
	if cfg.ConnID != 0 {
		return cfg.ConnID
	}
	id := xid.New()
	b := id.Bytes()
	var n uint64
	for i := 0; i < 8 && i < len(b); i++ {
		n = n<<8 | uint64(b[i])
	}
	return n
}
