package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"ontlock/crypto"
	"ontlock/native/vault"
	"ontlock/storage"
)

// Validate rejects configurations the node cannot run with.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case storage.BackendLevelDB, storage.BackendBolt, storage.BackendMemory:
	default:
		return fmt.Errorf("storage: unknown backend %q", c.StorageBackend)
	}
	if strings.TrimSpace(c.DataDir) == "" && c.StorageBackend != storage.BackendMemory {
		return fmt.Errorf("storage: DataDir required")
	}
	if _, err := c.Params(); err != nil {
		return err
	}
	switch c.Height.Source {
	case HeightSourceLocal:
		if c.Height.BlockIntervalSeconds == 0 {
			return fmt.Errorf("height: BlockIntervalSeconds must be positive")
		}
	case HeightSourceEthereum:
		if strings.TrimSpace(c.Height.EthereumRPC) == "" {
			return fmt.Errorf("height: EthereumRPC required for ethereum source")
		}
	default:
		return fmt.Errorf("height: unknown source %q", c.Height.Source)
	}
	if c.RPC.RequestsPerMinute < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	for _, proxy := range c.RPC.TrustedProxies {
		entry := strings.TrimSpace(proxy)
		if entry == "" {
			continue
		}
		var err error
		if strings.Contains(entry, "/") {
			_, err = netip.ParsePrefix(entry)
		} else {
			_, err = netip.ParseAddr(entry)
		}
		if err != nil {
			return fmt.Errorf("rpc: invalid TrustedProxies entry %q", proxy)
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	return nil
}

// Params converts the [Vault] section into engine parameters.
func (c *Config) Params() (vault.Params, error) {
	params := vault.Params{
		BaseAllowance: c.Vault.BaseAllowance,
		Multiplier:    c.Vault.Multiplier,
		StakePrice:    c.Vault.StakePrice,
		BuyPrice:      c.Vault.BuyPrice,
		StakeDelay:    c.Vault.StakeDelay,
		MaxFieldBytes: c.Vault.MaxFieldBytes,
		Holding:       vault.DefaultHoldingAddress(),
	}
	if holding := strings.TrimSpace(c.Vault.HoldingAddress); holding != "" {
		addr, err := crypto.ParseAccount(holding)
		if err != nil {
			return vault.Params{}, fmt.Errorf("vault: HoldingAddress: %w", err)
		}
		params.Holding = addr
	}
	if err := params.Validate(); err != nil {
		return vault.Params{}, err
	}
	return params, nil
}

// GenesisTime returns the local height source origin.
func (h Height) GenesisTime() time.Time {
	return time.Unix(h.GenesisUnix, 0)
}

// BlockInterval returns the local height source block length.
func (h Height) BlockInterval() time.Duration {
	return time.Duration(h.BlockIntervalSeconds) * time.Second
}
