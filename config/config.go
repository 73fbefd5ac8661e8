// Package config loads the environment options spec.md §6 recognizes,
// following the corpus's Viper-based env-var-only configuration pattern.
package config

import (
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every recognized environment option (spec.md §6).
type Config struct {
	Port                   string `mapstructure:"PORT"`
	PrivateKey             string `mapstructure:"PRIVATE_KEY"`
	CreditManagerAddress   string `mapstructure:"CREDIT_MANAGER_ADDRESS"`
	AssetAddress           string `mapstructure:"ASSET_ADDRESS"`
	RPCURL                 string `mapstructure:"RPC_URL"`
	MinStakeAmount         string `mapstructure:"MIN_STAKE_AMOUNT"`
	SlashBondAmount        string `mapstructure:"SLASH_BOND_AMOUNT"`
	Network                string `mapstructure:"NETWORK"`
	DefaultDeadlineSeconds int64  `mapstructure:"DEFAULT_DEADLINE_SECONDS"`
	StartBlock             uint64 `mapstructure:"START_BLOCK"`
	FacilitatorURL         string `mapstructure:"FACILITATOR_URL"`
	FacilitatorAPIKey      string `mapstructure:"FACILITATOR_API_KEY"`
}

// MinStake parses MinStakeAmount as a base-10 big.Int.
func (c Config) MinStake() (*big.Int, error) {
	return parseBigInt("MIN_STAKE_AMOUNT", c.MinStakeAmount)
}

// SlashBond parses SlashBondAmount as a base-10 big.Int.
func (c Config) SlashBond() (*big.Int, error) {
	return parseBigInt("SLASH_BOND_AMOUNT", c.SlashBondAmount)
}

func parseBigInt(field, value string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("config: %s is not a valid base-10 integer: %q", field, value)
	}
	return n, nil
}

// Load reads configuration from the environment (and an optional .env
// file at path, if present). private_key is the only option spec.md §6
// marks required.
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEFAULT_DEADLINE_SECONDS", 3600)
	viper.SetDefault("START_BLOCK", 0)
	viper.SetDefault("NETWORK", "base")

	for _, key := range []string{
		"PORT",
		"PRIVATE_KEY",
		"CREDIT_MANAGER_ADDRESS",
		"ASSET_ADDRESS",
		"RPC_URL",
		"MIN_STAKE_AMOUNT",
		"SLASH_BOND_AMOUNT",
		"NETWORK",
		"DEFAULT_DEADLINE_SECONDS",
		"START_BLOCK",
		"FACILITATOR_URL",
		"FACILITATOR_API_KEY",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read .env file; using environment values\" err=%v", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return Config{}, fmt.Errorf("config: PRIVATE_KEY is required")
	}
	if cfg.DefaultDeadlineSeconds <= 0 {
		cfg.DefaultDeadlineSeconds = 3600
	}

	return cfg, nil
}
