package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, root, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DEPLOYKIT_RPC_URL", "DEPLOYKIT_CHAIN_ID", "DEPLOYKIT_PRIVATE_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Artifacts != "artifacts" || cfg.Confirmations != 1 || cfg.Timeout != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Format != FormatPretty || !cfg.Warn.UnpinnedChain || !cfg.Warn.CompilerMismatch {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeConfig(t, root, `
rpc_url: http://127.0.0.1:8545
chain_id: 31337
artifacts: out
pipeline: pipelines/local.yml
confirmations: 3
timeout: 90s
gas_limit: 3000000
skip_step: [Leaderboard]
format: json
warn:
  unpinned_chain: false
`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCURL != "http://127.0.0.1:8545" || cfg.ChainID != 31337 {
		t.Fatalf("network settings not loaded: %+v", cfg)
	}
	if cfg.Artifacts != "out" || cfg.Pipeline != "pipelines/local.yml" {
		t.Fatalf("paths not loaded: %+v", cfg)
	}
	if cfg.Confirmations != 3 || cfg.Timeout != 90*time.Second || cfg.GasLimit != 3_000_000 {
		t.Fatalf("confirmation settings not loaded: %+v", cfg)
	}
	if len(cfg.SkipSteps) != 1 || cfg.SkipSteps[0] != "Leaderboard" {
		t.Fatalf("skip_step not loaded: %+v", cfg.SkipSteps)
	}
	if cfg.Warn.UnpinnedChain {
		t.Fatalf("expected unpinned_chain warning disabled")
	}
	if !cfg.Warn.CompilerMismatch {
		t.Fatalf("expected compiler_mismatch warning to keep its default")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeConfig(t, root, "confirmations: [1\n")

	if _, err := Load(root); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "rpc_url: http://file:8545\nchain_id: 1\n")
	t.Setenv("DEPLOYKIT_RPC_URL", "http://env:8545")
	t.Setenv("DEPLOYKIT_CHAIN_ID", "11155111")
	t.Setenv("DEPLOYKIT_PRIVATE_KEY", " 0xabc \n")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCURL != "http://env:8545" {
		t.Fatalf("expected env rpc url, got %q", cfg.RPCURL)
	}
	if cfg.ChainID != 11155111 {
		t.Fatalf("expected env chain id, got %d", cfg.ChainID)
	}
	if cfg.PrivateKey != "0xabc" {
		t.Fatalf("expected trimmed private key, got %q", cfg.PrivateKey)
	}
}

func TestLoadEnvInvalidChainID(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEPLOYKIT_CHAIN_ID", "mainnet")

	if _, err := Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "DEPLOYKIT_CHAIN_ID") {
		t.Fatalf("expected chain id error, got %v", err)
	}
}

func TestPrivateKeyIgnoredInFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeConfig(t, root, "private_key: 0xdeadbeef\n")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PrivateKey != "" {
		t.Fatalf("private key must only come from the environment")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	cfg.SkipSteps = []string{"Wager"}
	ApplyFlags(&cfg, FlagValues{
		RPCURL:        StringFlag{Value: "http://flag:8545", Set: true},
		Confirmations: Uint64Flag{Value: 2, Set: true},
		Timeout:       DurationFlag{Value: time.Minute, Set: true},
		OnlySteps:     SliceFlag{Values: []string{"Token"}},
		DryRun:        BoolFlag{Value: true, Set: true},
		Format:        StringFlag{Value: "", Set: false},
	})

	if cfg.RPCURL != "http://flag:8545" || cfg.Confirmations != 2 || cfg.Timeout != time.Minute {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if len(cfg.OnlySteps) != 1 || cfg.OnlySteps[0] != "Token" {
		t.Fatalf("only-step not applied: %+v", cfg.OnlySteps)
	}
	if len(cfg.SkipSteps) != 1 {
		t.Fatalf("unset slice flag must keep config value: %+v", cfg.SkipSteps)
	}
	if !cfg.DryRun || cfg.Format != FormatPretty {
		t.Fatalf("unexpected flag overlay: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"format":        func(c *Config) { c.Format = "xml" },
		"confirmations": func(c *Config) { c.Confirmations = 0 },
		"timeout":       func(c *Config) { c.Timeout = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), name) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}
