package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// OracleFeed binds a feed identifier referenced by pools to an HTTP endpoint.
type OracleFeed struct {
	ID       string `toml:"ID"`
	Endpoint string `toml:"Endpoint"`
}

type Config struct {
	ListenAddress       string       `toml:"ListenAddress"`
	DataDir             string       `toml:"DataDir"`
	Environment         string       `toml:"Environment"`
	GovernanceAuthority string       `toml:"GovernanceAuthority"`
	ProtocolIdentity    string       `toml:"ProtocolIdentity"`
	OracleMaxAgeSeconds int64        `toml:"OracleMaxAgeSeconds"`
	OracleMaxConfBps    uint64       `toml:"OracleMaxConfBps"`
	RateLimitPerSecond  float64      `toml:"RateLimitPerSecond"`
	RateLimitBurst      int          `toml:"RateLimitBurst"`
	Oracles             []OracleFeed `toml:"Oracles"`
}

// Load reads the configuration from path, writing a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8546"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./lendledger-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if c.RateLimitPerSecond <= 0 {
		c.RateLimitPerSecond = 50
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 100
	}
	if c.Oracles == nil {
		c.Oracles = []OracleFeed{}
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	for _, feed := range c.Oracles {
		if strings.TrimSpace(feed.ID) == "" {
			return fmt.Errorf("config: oracle feed with empty ID")
		}
		if strings.TrimSpace(feed.Endpoint) == "" {
			return fmt.Errorf("config: oracle feed %q has no endpoint", feed.ID)
		}
	}
	if c.OracleMaxAgeSeconds < 0 {
		return fmt.Errorf("config: OracleMaxAgeSeconds must not be negative")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
