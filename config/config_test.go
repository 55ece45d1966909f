package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"ontlock/crypto"
	"ontlock/native/vault"
	"ontlock/storage"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}
	if cfg.StorageBackend != storage.BackendLevelDB {
		t.Fatalf("unexpected backend %q", cfg.StorageBackend)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Vault != cfg.Vault || !reflect.DeepEqual(reloaded.RPC, cfg.RPC) {
		t.Fatalf("default config did not round-trip")
	}
	params, err := reloaded.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params != vault.DefaultParams() {
		t.Fatalf("expected default params, got %+v", params)
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	holding := crypto.MustNewAddress(crypto.AccountPrefix, []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20,
	})
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
StorageBackend = "BBOLT"

[Vault]
StakePrice = 75
HoldingAddress = "` + holding.String() + `"

[Height]
Source = "ethereum"
EthereumRPC = "http://localhost:8545"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" || cfg.StorageBackend != storage.BackendBolt {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	params, err := cfg.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.StakePrice != 75 || params.BuyPrice != vault.DefaultBuyPrice {
		t.Fatalf("unexpected prices %+v", params)
	}
	if params.Holding != holding.Array() {
		t.Fatalf("holding address not applied")
	}
	if cfg.Height.Source != HeightSourceEthereum {
		t.Fatalf("unexpected height source %q", cfg.Height.Source)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ListenAddress = \":6001\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ListenAddress") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":    func(c *Config) { c.StorageBackend = "rocks" },
		"multiplier": func(c *Config) { c.Vault.Multiplier = 0 },
		"price":      func(c *Config) { c.Vault.BuyPrice = 0 },
		"interval":   func(c *Config) { c.Height.BlockIntervalSeconds = 0 },
		"ethereum":   func(c *Config) { c.Height.Source = HeightSourceEthereum },
		"source":     func(c *Config) { c.Height.Source = "sundial" },
		"holding":    func(c *Config) { c.Vault.HoldingAddress = "not-an-address" },
		"sampling":   func(c *Config) { c.Telemetry.SampleRatio = 2 },
		"proxy":      func(c *Config) { c.RPC.TrustedProxies = []string{"10.0.0.0/33"} },
		"proxyHost":  func(c *Config) { c.RPC.TrustedProxies = []string{"proxy.internal"} },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	proxied := Default()
	proxied.RPC.TrustedProxies = []string{"10.0.0.0/8", "::1", " 192.168.1.7 "}
	if err := proxied.Validate(); err != nil {
		t.Fatalf("trusted proxies rejected: %v", err)
	}
	mem := Default()
	mem.StorageBackend = storage.BackendMemory
	mem.DataDir = ""
	if err := mem.Validate(); err != nil {
		t.Fatalf("memory backend needs no data dir: %v", err)
	}
}
