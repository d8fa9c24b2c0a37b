package config

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultPort = "1935"

// RecvBufferSize is the size of the per-connection receive buffer.
const RecvBufferSize = 64 * 1024

// DefaultChunkSize is the inbound chunk size until the peer announces another.
const DefaultChunkSize uint32 = 128

// DefaultWindowAckSize is the acknowledgement window until the peer announces another.
const DefaultWindowAckSize uint32 = 2500000

// Parameters announced to the client during the connect sequence.
const (
	OutWindowAckSize uint32 = 2500000
	OutPeerBandwidth uint32 = 2500000
	OutChunkSize     uint32 = 60000
)

// PollInterval bounds how long the worker blocks in accept or recv before it
// rechecks the shutdown flag.
const PollInterval = 250 * time.Millisecond

// Config is the optional YAML-backed configuration for a receiver binary.
type Config struct {
	Addr          string `yaml:"addr"`
	EnableLogging bool   `yaml:"enable_logging"`
}

func Default() *Config {
	return &Config{
		Addr:          ":" + DefaultPort,
		EnableLogging: false,
	}
}

// Load reads a YAML config file, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":" + DefaultPort
	}
	return cfg, nil
}
