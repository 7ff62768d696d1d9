package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"

	"github.com/0surface/Remittance/crypto"
	"github.com/0surface/Remittance/native/remittance"
	"github.com/0surface/Remittance/storage"
)

// Config is the remitd node configuration. TOML is the native format; files
// ending in .yaml or .yml are decoded as YAML with the same structure.
type Config struct {
	RPCAddress        string           `toml:"RPCAddress" yaml:"rpc_address"`
	DataDir           string           `toml:"DataDir" yaml:"data_dir"`
	Backend           string           `toml:"Backend" yaml:"backend"`
	Environment       string           `toml:"Environment" yaml:"environment"`
	OwnerKeystorePath string           `toml:"OwnerKeystorePath" yaml:"owner_keystore_path"`
	EventHistory      int              `toml:"EventHistory" yaml:"event_history"`
	Contract          ContractConfig   `toml:"Contract" yaml:"contract"`
	RateLimit         RateLimitConfig  `toml:"RateLimit" yaml:"rate_limit"`
	Log               LogConfig        `toml:"Log" yaml:"log"`
	Telemetry         TelemetryConfig  `toml:"Telemetry" yaml:"telemetry"`
	Genesis           []GenesisAccount `toml:"Genesis" yaml:"genesis"`
}

// ContractConfig pins the deployment. Address, scheme, hash and the lock
// bounds must not change once the data directory holds state.
type ContractConfig struct {
	Address         string `toml:"Address" yaml:"address"`
	Owner           string `toml:"Owner" yaml:"owner"`
	Scheme          string `toml:"Scheme" yaml:"scheme"`
	Hash            string `toml:"Hash" yaml:"hash"`
	MinLockDuration uint64 `toml:"MinLockDuration" yaml:"min_lock_duration"`
	MaxLockDuration uint64 `toml:"MaxLockDuration" yaml:"max_lock_duration"`
	LockDuration    uint64 `toml:"LockDuration" yaml:"lock_duration"`
	ClaimExpires    bool   `toml:"ClaimExpires" yaml:"claim_expires"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond" yaml:"requests_per_second"`
	Burst             int     `toml:"Burst" yaml:"burst"`
	// TrustedProxies are peers (addresses or CIDRs) allowed to name the
	// client through X-Real-IP / X-Forwarded-For.
	TrustedProxies []string `toml:"TrustedProxies" yaml:"trusted_proxies"`
}

type LogConfig struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
}

type TelemetryConfig struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}

// GenesisAccount is credited once, when the data directory is first
// initialised. Amount is a base-10 integer in the smallest native unit.
type GenesisAccount struct {
	Address string `toml:"Address" yaml:"address"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

// Load loads the configuration from the given path. A missing TOML file is
// created with defaults and a freshly generated owner keystore.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if isYAML(path) {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		return createDefault(path)
	}

	cfg := &Config{}
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Default returns a configuration with every optional field filled in. The
// contract owner and address are left empty.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./remit-data"
	}
	if strings.TrimSpace(c.Backend) == "" {
		c.Backend = storage.BackendLevelDB
	}
	if c.EventHistory <= 0 {
		c.EventHistory = 1024
	}
	if c.Contract.MaxLockDuration == 0 {
		c.Contract.MaxLockDuration = remittance.DefaultMaxLockDuration
	}
	if c.Contract.LockDuration == 0 {
		c.Contract.LockDuration = min(remittance.DefaultLockDuration, c.Contract.MaxLockDuration)
	}
	if strings.TrimSpace(c.Contract.Scheme) == "" {
		c.Contract.Scheme = remittance.SchemeRecipient.String()
	}
	if strings.TrimSpace(c.Contract.Hash) == "" {
		c.Contract.Hash = remittance.HashKeccak256.String()
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
}

// createDefault creates and saves a default configuration file along with an
// owner key protected by an empty passphrase.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	owner := key.PubKey().Address()
	cfg := Default()
	cfg.OwnerKeystorePath = keystorePath
	cfg.Contract.Owner = owner.String()
	cfg.Contract.Address = crypto.FromArray(DeriveContractAddress(owner.Array())).String()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DeriveContractAddress names a deployment after its first owner.
func DeriveContractAddress(owner [20]byte) [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256([]byte("remittance"), owner[:])[12:])
	return out
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "owner.keystore")
}
