// Package config loads the service configuration from YAML, an optional
// .env file and STABLEPAY_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitwit/stablepay/clients"
	"github.com/vitwit/stablepay/quote"
	"github.com/vitwit/stablepay/types"
	"github.com/vitwit/stablepay/utils"
	"gopkg.in/yaml.v2"
)

const envPrefix = "STABLEPAY_"

// Default returns the Tempo testnet configuration without any endpoints.
func Default() types.Config {
	return types.Config{
		Address:        ":8080",
		DefaultTimeout: 2 * time.Minute,
		SlippageBps:    quote.DefaultSlippageBps,
		LogLevel:       "info",
		Client: types.ClientConfig{
			Network:         types.NetworkTempoTestnet,
			ChainID:         clients.TempoTestnetChainID,
			ExchangeAddress: clients.DefaultExchangeAddress,
			FeeToken:        clients.DefaultFeeToken,
			PollInterval:    time.Second,
		},
		Database: types.DatabaseConfig{
			Migrate: true,
		},
	}
}

// Load reads path (optional), applies .env and environment overrides, and
// validates the result.
func Load(path string) (*types.Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, types.NewError(types.ErrConfiguration, err, "read config file: %v", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, types.NewError(types.ErrConfiguration, err, "parse config file: %v", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, types.NewError(types.ErrConfiguration, err, "load .env: %v", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := utils.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *types.Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	str("ADDRESS", &cfg.Address)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("RPC_URL", &cfg.Client.RPCUrl)
	str("WALLET_RPC_URL", &cfg.Client.WalletRPCUrl)
	str("EXCHANGE_ADDRESS", &cfg.Client.ExchangeAddress)
	str("FEE_TOKEN", &cfg.Client.FeeToken)
	str("DATABASE_URL", &cfg.Database.URL)

	if v, ok := lookup(envPrefix + "NETWORK"); ok {
		cfg.Client.Network = types.Network(strings.TrimSpace(v))
	}
	if v, ok := lookup(envPrefix + "CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}

	var errs []string
	if v, ok := lookup(envPrefix + "CHAIN_ID"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("CHAIN_ID: %v", err))
		}
		cfg.Client.ChainID = n
	}
	if v, ok := lookup(envPrefix + "SLIPPAGE_BPS"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SLIPPAGE_BPS: %v", err))
		}
		cfg.SlippageBps = n
	}
	if v, ok := lookup(envPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("TIMEOUT: %v", err))
		}
		cfg.DefaultTimeout = d
	}
	if v, ok := lookup(envPrefix + "ENABLE_METRICS"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("ENABLE_METRICS: %v", err))
		}
		cfg.EnableMetrics = b
	}
	if v, ok := lookup(envPrefix + "DATABASE_MIGRATE"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("DATABASE_MIGRATE: %v", err))
		}
		cfg.Database.Migrate = b
	}

	if len(errs) > 0 {
		return types.NewError(types.ErrConfiguration, nil, "invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
