// Package config loads the collector's configuration with viper, the way
// the teacher's internal/config.Config does it: typed struct with
// mapstructure tags, defaults, an optional YAML file, and explicit env
// bindings so every field is independently overridable.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Database   DatabaseConfig
	Gateway    GatewayConfig
	Chain      ChainConfig
	Redemption RedemptionConfig
	Collector  CollectorConfig
	Server     ServerConfig
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type GatewayConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	TimeoutSec int64  `mapstructure:"timeout_sec"`
}

type ChainConfig struct {
	RPCURL          string `mapstructure:"rpc_url"`
	ContractAddress string `mapstructure:"contract_address"`
	ChainID         int64  `mapstructure:"chain_id"`
	SignerKey       string `mapstructure:"signer_key"` // hex-encoded ECDSA key used to sign redeemMany; key management itself is out of scope
}

type RedemptionConfig struct {
	Threshold      string `mapstructure:"threshold"`       // voucherRedemptionThreshold
	BatchThreshold string `mapstructure:"batch_threshold"` // voucherRedemptionBatchThreshold
	MaxBatchSize   int    `mapstructure:"max_batch_size"`  // voucherRedemptionMaxBatchSize
	TickIntervalSec int64 `mapstructure:"tick_interval_sec"`
}

type CollectorConfig struct {
	TickIntervalSec int64 `mapstructure:"tick_interval_sec"`
	BatchDelaySec   int64 `mapstructure:"batch_delay_sec"`
	ChunkSize       int   `mapstructure:"chunk_size"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("gateway.timeout_sec", 30)
	v.SetDefault("redemption.tick_interval_sec", 30)
	v.SetDefault("redemption.max_batch_size", 50)
	v.SetDefault("collector.tick_interval_sec", 10)
	v.SetDefault("collector.batch_delay_sec", 20*60)
	v.SetDefault("collector.chunk_size", 25000)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"database.dsn":                    "DATABASE_DSN",
		"gateway.endpoint":                "GATEWAY_ENDPOINT",
		"gateway.timeout_sec":             "GATEWAY_TIMEOUT_SEC",
		"chain.rpc_url":                   "CHAIN_RPC_URL",
		"chain.contract_address":          "CHAIN_CONTRACT_ADDRESS",
		"chain.chain_id":                  "CHAIN_ID",
		"chain.signer_key":                "CHAIN_SIGNER_KEY",
		"redemption.threshold":            "VOUCHER_REDEMPTION_THRESHOLD",
		"redemption.batch_threshold":      "VOUCHER_REDEMPTION_BATCH_THRESHOLD",
		"redemption.max_batch_size":       "VOUCHER_REDEMPTION_MAX_BATCH_SIZE",
		"redemption.tick_interval_sec":    "VOUCHER_REDEMPTION_TICK_INTERVAL_SEC",
		"collector.tick_interval_sec":     "COLLECTOR_TICK_INTERVAL_SEC",
		"collector.batch_delay_sec":       "COLLECTOR_BATCH_DELAY_SEC",
		"collector.chunk_size":            "COLLECTOR_CHUNK_SIZE",
		"server.port":                     "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Database.DSN, "DATABASE_DSN"},
		{c.Gateway.Endpoint, "GATEWAY_ENDPOINT"},
		{c.Chain.RPCURL, "CHAIN_RPC_URL"},
		{c.Chain.ContractAddress, "CHAIN_CONTRACT_ADDRESS"},
		{c.Chain.SignerKey, "CHAIN_SIGNER_KEY"},
		{c.Redemption.Threshold, "VOUCHER_REDEMPTION_THRESHOLD"},
		{c.Redemption.BatchThreshold, "VOUCHER_REDEMPTION_BATCH_THRESHOLD"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("required config missing: CHAIN_ID")
	}
	return nil
}
