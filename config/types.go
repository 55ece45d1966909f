package config

// Vault holds the allowance and pricing parameters.
type Vault struct {
	BaseAllowance  uint64 `toml:"BaseAllowance"`
	Multiplier     uint64 `toml:"Multiplier"`
	StakePrice     uint64 `toml:"StakePrice"`
	BuyPrice       uint64 `toml:"BuyPrice"`
	StakeDelay     uint64 `toml:"StakeDelay"`
	MaxFieldBytes  int    `toml:"MaxFieldBytes"`
	HoldingAddress string `toml:"HoldingAddress"`
}

// Height selects where ledger heights come from.
type Height struct {
	Source               string `toml:"Source"`
	GenesisUnix          int64  `toml:"GenesisUnix"`
	BlockIntervalSeconds uint64 `toml:"BlockIntervalSeconds"`
	EthereumRPC          string `toml:"EthereumRPC"`
}

// RPC configures the JSON-RPC listener.
type RPC struct {
	JWTSecretEnv      string  `toml:"JWTSecretEnv"`
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
	ReadTimeout       int     `toml:"ReadTimeout"`
	WriteTimeout      int     `toml:"WriteTimeout"`
	MaxBodyBytes      int64   `toml:"MaxBodyBytes"`
	// TrustedProxies lists peers (IPs or CIDRs) whose X-Real-IP and
	// X-Forwarded-For headers identify the client for rate limiting.
	TrustedProxies []string `toml:"TrustedProxies"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
	Headers     string  `toml:"Headers"`
}

const (
	HeightSourceLocal    = "local"
	HeightSourceEthereum = "ethereum"
)
