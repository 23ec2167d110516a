package walletbackend

import (
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"github.com/kryptokrona/kryptokrona-sub002/walletaddr"
)

// Config bundles every knob a Backend needs beyond its Node and wallet
// file path.
type Config struct {
	DaemonHost string `yaml:"daemonHost"`
	DaemonPort int    `yaml:"daemonPort"`

	NetworkPrefix byte `yaml:"networkPrefix"`

	RescanHeight    uint64 `yaml:"rescanHeight"`
	RescanTimestamp uint64 `yaml:"rescanTimestamp"`

	SyncQueueDepth int `yaml:"syncQueueDepth"`

	DefaultMixin uint64 `yaml:"defaultMixin"`
	DefaultFee   uint64 `yaml:"defaultFee"`

	MinimumFee uint64 `yaml:"minimumFee"`
	FeePerByte uint64 `yaml:"feePerByte"`

	MinMixin int `yaml:"minMixin"`
	MaxMixin int `yaml:"maxMixin"`

	MaxSplitAttempts int `yaml:"maxSplitAttempts"`

	// NodeFeeRefreshSeconds bounds how often Backend refreshes its cached
	// node fee in the background. Zero or a negative value selects a
	// ten-minute interval.
	NodeFeeRefreshSeconds int `yaml:"nodeFeeRefreshSeconds"`

	Units walletaddr.Units `yaml:"units"`
}

// DefaultConfig returns sane defaults for every knob a caller doesn't
// set explicitly.
func DefaultConfig() Config {
	return Config{
		SyncQueueDepth:        16,
		DefaultMixin:          3,
		MinMixin:              0,
		MaxMixin:              100,
		MaxSplitAttempts:      10,
		NodeFeeRefreshSeconds: 600,
		Units: walletaddr.Units{
			Decimals: 5,
		},
	}
}

// LoadConfig reads and parses a YAML configuration file, applying
// DefaultConfig for anything the file leaves at its zero value.
func LoadConfig(path string) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
