package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"atlaschain/crypto"
)

// Config drives a single validator node.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	RPCAddress    string `toml:"RPCAddress"`
	DataDir       string `toml:"DataDir"`
	ValidatorKey  string `toml:"ValidatorKey"`
	GenesisFile   string `toml:"GenesisFile"`
	LogFile       string `toml:"LogFile"`

	QuorumFraction  float64 `toml:"QuorumFraction"`
	QuorumMinVoters int     `toml:"QuorumMinVoters"`

	PrepareTimeout   string `toml:"PrepareTimeout"`
	PreCommitTimeout string `toml:"PreCommitTimeout"`
	CommitTimeout    string `toml:"CommitTimeout"`

	BootstrapPeers []string `toml:"BootstrapPeers"`
}

// Load reads the configuration from path, creating a default file with a
// fresh validator key when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.ValidatorKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.ValidatorKey = hex.EncodeToString(key.Bytes())
		if err := cfg.write(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress: ":6001",
		RPCAddress:    ":8080",
		DataDir:       "./atlas-data",
		ValidatorKey:  hex.EncodeToString(key.Bytes()),
	}
	cfg.applyDefaults()
	if err := cfg.write(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":6001"
	}
	if c.RPCAddress == "" {
		c.RPCAddress = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = "./atlas-data"
	}
	if c.QuorumFraction == 0 {
		c.QuorumFraction = 0.67
	}
	if c.QuorumMinVoters == 0 {
		c.QuorumMinVoters = 1
	}
	if c.PrepareTimeout == "" {
		c.PrepareTimeout = "2s"
	}
	if c.PreCommitTimeout == "" {
		c.PreCommitTimeout = "2s"
	}
	if c.CommitTimeout == "" {
		c.CommitTimeout = "5s"
	}
}

func (c *Config) write(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// Validate checks key material and timer strings.
func (c *Config) Validate() error {
	if _, err := c.PrivateKey(); err != nil {
		return err
	}
	if c.QuorumFraction <= 0 || c.QuorumFraction > 1 {
		return fmt.Errorf("QuorumFraction %v outside (0, 1]", c.QuorumFraction)
	}
	for name, value := range map[string]string{
		"PrepareTimeout":   c.PrepareTimeout,
		"PreCommitTimeout": c.PreCommitTimeout,
		"CommitTimeout":    c.CommitTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	return nil
}

// PrivateKey decodes the validator key.
func (c *Config) PrivateKey() (*crypto.PrivateKey, error) {
	seed, err := hex.DecodeString(c.ValidatorKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ValidatorKey: %w", err)
	}
	return crypto.PrivateKeyFromBytes(seed)
}

// Timeouts returns the parsed phase timers.
func (c *Config) Timeouts() (prepare, precommit, commit time.Duration) {
	prepare, _ = time.ParseDuration(c.PrepareTimeout)
	precommit, _ = time.ParseDuration(c.PreCommitTimeout)
	commit, _ = time.ParseDuration(c.CommitTimeout)
	return prepare, precommit, commit
}
