package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_ReadsRecognizedOptions(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("PRIVATE_KEY", "0xabc123")
	t.Setenv("CREDIT_MANAGER_ADDRESS", "0xcredit")
	t.Setenv("ASSET_ADDRESS", "0xasset")
	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("MIN_STAKE_AMOUNT", "1000")
	t.Setenv("SLASH_BOND_AMOUNT", "50")
	t.Setenv("NETWORK", "base-sepolia")
	t.Setenv("DEFAULT_DEADLINE_SECONDS", "1800")
	t.Setenv("START_BLOCK", "12345")
	t.Setenv("FACILITATOR_URL", "https://facilitator.example")
	t.Setenv("FACILITATOR_API_KEY", "fac-key")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.PrivateKey != "0xabc123" {
		t.Fatalf("unexpected private_key: %q", cfg.PrivateKey)
	}
	if cfg.CreditManagerAddress != "0xcredit" || cfg.AssetAddress != "0xasset" {
		t.Fatalf("unexpected contract addresses: %+v", cfg)
	}
	if cfg.DefaultDeadlineSeconds != 1800 {
		t.Fatalf("unexpected default_deadline_seconds: %d", cfg.DefaultDeadlineSeconds)
	}
	if cfg.StartBlock != 12345 {
		t.Fatalf("unexpected start_block: %d", cfg.StartBlock)
	}
	if cfg.Network != "base-sepolia" {
		t.Fatalf("unexpected network: %q", cfg.Network)
	}
}

func TestLoad_FailsWhenPrivateKeyMissing(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("PRIVATE_KEY", "")

	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected missing private_key error")
	}
	if !strings.Contains(err.Error(), "PRIVATE_KEY") {
		t.Fatalf("expected error to mention PRIVATE_KEY, got %v", err)
	}
}

func TestLoad_DefaultsDeadlineWhenUnset(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("PRIVATE_KEY", "0xabc123")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DefaultDeadlineSeconds != 3600 {
		t.Fatalf("expected default of 3600, got %d", cfg.DefaultDeadlineSeconds)
	}
	if cfg.Network != "base" {
		t.Fatalf("expected default network of base, got %q", cfg.Network)
	}
}

func TestMinStake_ParsesBaseTenInteger(t *testing.T) {
	cfg := Config{MinStakeAmount: "2500"}
	n, err := cfg.MinStake()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.String() != "2500" {
		t.Fatalf("unexpected value: %s", n.String())
	}
}

func TestMinStake_RejectsNonInteger(t *testing.T) {
	cfg := Config{MinStakeAmount: "not-a-number"}
	if _, err := cfg.MinStake(); err == nil {
		t.Fatal("expected an error for a non-integer MIN_STAKE_AMOUNT")
	}
}
