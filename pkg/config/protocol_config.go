package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProtocolConfiguration represents the tunable part of the protocol config.
// Load starts from the mainnet defaults, so fields absent from the file keep
// them; a non-positive MemPoolSize also falls back to its default.
type ProtocolConfiguration struct {
	// CorrectInvalidFees makes the builder backfill the fee of a locally
	// built (unsigned) transaction up to the minimum fee at the current
	// height. It never applies to transactions received already signed.
	CorrectInvalidFees bool `yaml:"CorrectInvalidFees"`

	// MemPoolSize is the unconfirmed transaction pool capacity.
	MemPoolSize int `yaml:"MemPoolSize"`
}

// DefaultProtocolConfiguration returns the mainnet configuration.
func DefaultProtocolConfiguration() ProtocolConfiguration {
	return ProtocolConfiguration{
		CorrectInvalidFees: true,
		MemPoolSize:        50000,
	}
}

// Load reads the protocol configuration from the given yaml file. An empty
// path yields the defaults.
func Load(path string) (ProtocolConfiguration, error) {
	cfg := DefaultProtocolConfiguration()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse config: %w", err)
	}
	if cfg.MemPoolSize <= 0 {
		cfg.MemPoolSize = DefaultProtocolConfiguration().MemPoolSize
	}
	return cfg, nil
}
