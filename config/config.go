package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime configuration for the curation service.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Curve         Curve  `toml:"curve"`
}

// Curve holds the bonding-curve constants fixed at deployment. Total is the
// circulating supply estimate, Ceiling bounds the share any single entry may
// stake, and Decimals is the fixed-point base shared by both.
type Curve struct {
	Total    int64 `toml:"Total"`
	Ceiling  int64 `toml:"Ceiling"`
	Decimals int64 `toml:"Decimals"`
}

// Load loads the configuration from the given path, creating a commented
// default file when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8091"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Curve.Total <= 0 {
		return errors.New("curve Total must be positive")
	}
	if c.Curve.Ceiling <= 0 {
		return errors.New("curve Ceiling must be positive")
	}
	if c.Curve.Decimals <= 0 {
		return errors.New("curve Decimals must be positive")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8091",
		DataDir:       "./data",
		Curve: Curve{
			Total:    3_470_483_788,
			Ceiling:  588,
			Decimals: 1_000_000,
		},
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.WriteString("# Curation service configuration.\n# Curve constants are fixed at deployment and never mutated.\n\n"); err != nil {
		return nil, err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
