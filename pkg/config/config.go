// Package config loads the tool configuration from an optional config file
// and the environment.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/code-payments/wallet-tools/pkg/solana"
)

// DevnetEndpoint is the public Solana devnet RPC endpoint.
const DevnetEndpoint = string(solana.EnvironmentDev)

// Config is the configuration shared by every command.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	RPCEndpoint string `mapstructure:"rpc_endpoint"`

	// Commitment is the level transactions are confirmed to, and the level
	// balances and blockhashes are read at. One of processed, confirmed or
	// finalized.
	Commitment string `mapstructure:"commitment"`

	// ConfirmTimeout bounds how long a submitted transaction is polled for
	// before it is reported as timed out.
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`

	// RPCRateLimit is the number of requests per second allowed per RPC
	// method. Zero disables limiting.
	RPCRateLimit float64 `mapstructure:"rpc_rate_limit"`

	KeypairPath string `mapstructure:"keypair_path"`

	// ProgramsPath is an optional file describing additional on-chain
	// program interfaces.
	ProgramsPath string `mapstructure:"programs_path"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`
}

var defaultConfig = Config{
	LogLevel: "info",
	AppName:  "wallet-tools",

	RPCEndpoint:    DevnetEndpoint,
	Commitment:     "confirmed",
	ConfirmTimeout: 60 * time.Second,

	KeypairPath: "dev-wallet.json",
}

var envKeys = []string{
	"log_level",
	"app_name",
	"rpc_endpoint",
	"commitment",
	"confirm_timeout",
	"rpc_rate_limit",
	"keypair_path",
	"programs_path",
	"new_relic_license_key",
}

// BindEnv binds every configuration key to its upper case environment
// variable, e.g. rpc_endpoint to RPC_ENDPOINT.
func BindEnv(v *viper.Viper) {
	for _, key := range envKeys {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}
}

// Load reads the configuration into a copy of the defaults. configPath is
// optional. When set, the file must exist.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	BindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	config.RPCEndpoint = solana.ResolveEndpoint(config.RPCEndpoint)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values are usable.
func (c *Config) Validate() error {
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return errors.Errorf("invalid commitment: %q", c.Commitment)
	}

	if c.RPCEndpoint == "" {
		return errors.New("rpc_endpoint is required")
	}
	if c.ConfirmTimeout <= 0 {
		return errors.Errorf("confirm_timeout must be positive: %s", c.ConfirmTimeout)
	}
	if c.RPCRateLimit < 0 {
		return errors.Errorf("rpc_rate_limit must not be negative: %v", c.RPCRateLimit)
	}

	return nil
}
