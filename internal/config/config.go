// Package config loads server settings from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/holiman/uint256"
)

// Config carries the tunables of one engine instance. Protocol constants
// (stake floor, timeout, fee, win threshold) are fixed at boot.
type Config struct {
	Addr    string `env:"BATTLESHIP_ADDR" envDefault:":8080"`
	KeysDir string `env:"BATTLESHIP_KEYS_DIR" envDefault:"./keys"`
	// DBPath enables SQLite persistence when set; empty keeps the engine
	// in-memory.
	DBPath string `env:"BATTLESHIP_DB"`
	Owner  string `env:"BATTLESHIP_OWNER" envDefault:"owner"`

	MinStake       string `env:"BATTLESHIP_MIN_STAKE" envDefault:"1000000000000000000"`
	FeeBps         uint64 `env:"BATTLESHIP_FEE_BPS" envDefault:"100"`
	TimeoutSeconds uint64 `env:"BATTLESHIP_TIMEOUT_SECONDS" envDefault:"86400"`
	WinThreshold   uint8  `env:"BATTLESHIP_WIN_THRESHOLD" envDefault:"17"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.FeeBps > 10000 {
		return Config{}, fmt.Errorf("fee bps %d exceeds 10000", cfg.FeeBps)
	}
	return cfg, nil
}

// MinStakeAmount parses the decimal stake floor.
func (c Config) MinStakeAmount() (*uint256.Int, error) {
	v, err := uint256.FromDecimal(c.MinStake)
	if err != nil {
		return nil, fmt.Errorf("parse min stake %q: %w", c.MinStake, err)
	}
	return v, nil
}
