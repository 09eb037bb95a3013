// Package config loads the YAML settings file cmd/quince reads its
// defaults from, the same os.ReadFile-then-yaml.Unmarshal shape
// nishisan-dev-n-backup's internal/config uses for its agent config.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of quince's config file.
type File struct {
	Listen  ListenInfo  `yaml:"listen"`
	TLS     TLSInfo     `yaml:"tls"`
	Limits  LimitsInfo  `yaml:"limits"`
	Logging LoggingInfo `yaml:"logging"`
	Metrics MetricsInfo `yaml:"metrics"`
}

// ListenInfo is the address a client or server binds its UDP socket to.
type ListenInfo struct {
	Address string `yaml:"address"`
}

// TLSInfo carries the handshake-identity knobs (quic.TLSConfig's on-disk
// form).
type TLSInfo struct {
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// LimitsInfo mirrors transport.Settings.
type LimitsInfo struct {
	MaxStreamID   uint32 `yaml:"max_stream_id"`
	MaxData       uint64 `yaml:"max_data_kib"`
	MaxStreamData uint64 `yaml:"max_stream_data_kib"`
}

// LoggingInfo controls the ambient logrus logger's verbosity.
type LoggingInfo struct {
	Level int `yaml:"level"`
}

// MetricsInfo controls whether and where Prometheus metrics are exposed.
type MetricsInfo struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Address   string `yaml:"address"`
}

// Default returns the settings quince ships with when no config file is
// given: generous enough limits to carry a one-shot request/response
// stream, metrics off.
func Default() *File {
	return &File{
		Listen: ListenInfo{Address: "0.0.0.0:0"},
		Limits: LimitsInfo{
			MaxStreamID:   8,
			MaxData:       64,
			MaxStreamData: 64,
		},
		Logging: LoggingInfo{Level: 2},
		Metrics: MetricsInfo{Namespace: "quince"},
	}
}

// Load reads and parses the YAML file at path, starting from Default so an
// omitted section keeps its default value rather than zeroing out.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading quince config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing quince config: %w", err)
	}
	return cfg, nil
}
