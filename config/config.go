package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"ontlock/native/vault"
	"ontlock/storage"
)

type Config struct {
	RPCAddress     string    `toml:"RPCAddress"`
	DataDir        string    `toml:"DataDir"`
	StorageBackend string    `toml:"StorageBackend"`
	LogFile        string    `toml:"LogFile"`
	Environment    string    `toml:"Environment"`
	Vault          Vault     `toml:"Vault"`
	Height         Height    `toml:"Height"`
	RPC            RPC       `toml:"RPC"`
	Telemetry      Telemetry `toml:"Telemetry"`
}

// Load loads the configuration from path, writing a default file first when
// none exists. Fields left out of the file take their default values.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.Height.Source = strings.ToLower(strings.TrimSpace(cfg.Height.Source))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	params := vault.DefaultParams()
	return &Config{
		RPCAddress:     "127.0.0.1:8645",
		DataDir:        "./ontlock-data",
		StorageBackend: storage.BackendLevelDB,
		Environment:    "local",
		Vault: Vault{
			BaseAllowance: params.BaseAllowance,
			Multiplier:    params.Multiplier,
			StakePrice:    params.StakePrice,
			BuyPrice:      params.BuyPrice,
			StakeDelay:    params.StakeDelay,
			MaxFieldBytes: params.MaxFieldBytes,
		},
		Height: Height{
			Source:               HeightSourceLocal,
			BlockIntervalSeconds: 15,
		},
		RPC: RPC{
			JWTSecretEnv:      "ONTLOCK_JWT_SECRET",
			RequestsPerMinute: 120,
			Burst:             20,
			ReadTimeout:       10,
			WriteTimeout:      10,
			MaxBodyBytes:      1 << 20,
		},
		Telemetry: Telemetry{
			Endpoint: "localhost:4318",
			Insecure: true,
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
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
