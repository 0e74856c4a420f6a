package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the optional per-project configuration file.
const FileName = ".deploykit.yml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEPLOYKIT"

// Config captures CLI options sourced from config files, the environment or
// flags.
type Config struct {
	RPCURL    string `yaml:"rpc_url"`
	ChainID   uint64 `yaml:"chain_id"`
	Artifacts string `yaml:"artifacts"`
	Pipeline  string `yaml:"pipeline"`

	Confirmations uint64        `yaml:"confirmations"`
	Timeout       time.Duration `yaml:"timeout"`
	GasLimit      uint64        `yaml:"gas_limit"`

	OnlySteps []string `yaml:"only_step"`
	SkipSteps []string `yaml:"skip_step"`

	DryRun  bool   `yaml:"dry_run"`
	Verbose bool   `yaml:"verbose"`
	Format  string `yaml:"format"`
	// From is the deployer address used to plan a dry run without a key.
	From string `yaml:"from"`

	Warn WarnConfig `yaml:"warn"`

	// PrivateKey is only ever read from the environment.
	PrivateKey string `yaml:"-"`
}

// WarnConfig controls additional warning behaviour.
type WarnConfig struct {
	UnpinnedChain    bool `yaml:"unpinned_chain"`
	CompilerMismatch bool `yaml:"compiler_mismatch"`
}

// Default returns the baseline configuration used when no flags or config file specify values.
func Default() Config {
	return Config{
		Artifacts:     "artifacts",
		Confirmations: 1,
		Timeout:       5 * time.Minute,
		Format:        FormatPretty,
		Warn: WarnConfig{
			UnpinnedChain:    true,
			CompilerMismatch: true,
		},
	}
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"
)

// Load reads .deploykit.yml from the project root when present, then applies
// environment overrides. Missing files are ignored.
func Load(root string) (Config, error) {
	cfg := Default()
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
		cfg = merge(cfg, fileCfg)
		// Warnings default to on, so a file can only turn them off explicitly.
		if err := applyWarnOverrides(&cfg, data); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func merge(base, override Config) Config {
	out := base

	if override.RPCURL != "" {
		out.RPCURL = override.RPCURL
	}
	if override.ChainID != 0 {
		out.ChainID = override.ChainID
	}
	if override.Artifacts != "" {
		out.Artifacts = override.Artifacts
	}
	if override.Pipeline != "" {
		out.Pipeline = override.Pipeline
	}
	if override.Confirmations != 0 {
		out.Confirmations = override.Confirmations
	}
	if override.Timeout != 0 {
		out.Timeout = override.Timeout
	}
	if override.GasLimit != 0 {
		out.GasLimit = override.GasLimit
	}
	if len(override.OnlySteps) > 0 {
		out.OnlySteps = append([]string{}, override.OnlySteps...)
	}
	if len(override.SkipSteps) > 0 {
		out.SkipSteps = append([]string{}, override.SkipSteps...)
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.From != "" {
		out.From = override.From
	}
	if override.DryRun {
		out.DryRun = true
	}
	if override.Verbose {
		out.Verbose = true
	}

	return out
}

func applyWarnOverrides(cfg *Config, data []byte) error {
	var doc struct {
		Warn struct {
			UnpinnedChain    *bool `yaml:"unpinned_chain"`
			CompilerMismatch *bool `yaml:"compiler_mismatch"`
		} `yaml:"warn"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Warn.UnpinnedChain != nil {
		cfg.Warn.UnpinnedChain = *doc.Warn.UnpinnedChain
	}
	if doc.Warn.CompilerMismatch != nil {
		cfg.Warn.CompilerMismatch = *doc.Warn.CompilerMismatch
	}
	return nil
}

// ApplyEnv overlays DEPLOYKIT_RPC_URL, DEPLOYKIT_CHAIN_ID and
// DEPLOYKIT_PRIVATE_KEY onto cfg.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range []string{"rpc_url", "chain_id", "private_key"} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if v.IsSet("rpc_url") {
		cfg.RPCURL = v.GetString("rpc_url")
	}
	if v.IsSet("chain_id") {
		raw := strings.TrimSpace(v.GetString("chain_id"))
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s_CHAIN_ID %q: %w", EnvPrefix, raw, err)
		}
		cfg.ChainID = id
	}
	if v.IsSet("private_key") {
		cfg.PrivateKey = strings.TrimSpace(v.GetString("private_key"))
	}
	return nil
}

// Validate rejects settings no run could use.
func (c Config) Validate() error {
	switch strings.ToLower(c.Format) {
	case FormatPretty, FormatJSON:
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	if c.Confirmations == 0 {
		return errors.New("confirmations must be at least 1")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if flags.RPCURL.Set {
		cfg.RPCURL = flags.RPCURL.Value
	}
	if flags.ChainID.Set {
		cfg.ChainID = flags.ChainID.Value
	}
	if flags.Artifacts.Set {
		cfg.Artifacts = flags.Artifacts.Value
	}
	if flags.Pipeline.Set {
		cfg.Pipeline = flags.Pipeline.Value
	}
	if flags.Confirmations.Set {
		cfg.Confirmations = flags.Confirmations.Value
	}
	if flags.Timeout.Set {
		cfg.Timeout = flags.Timeout.Value
	}
	if flags.GasLimit.Set {
		cfg.GasLimit = flags.GasLimit.Value
	}
	if len(flags.OnlySteps.Values) > 0 {
		cfg.OnlySteps = append([]string{}, flags.OnlySteps.Values...)
	}
	if len(flags.SkipSteps.Values) > 0 {
		cfg.SkipSteps = append([]string{}, flags.SkipSteps.Values...)
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.From.Set {
		cfg.From = flags.From.Value
	}
	if flags.DryRun.Set {
		cfg.DryRun = flags.DryRun.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	RPCURL        StringFlag
	ChainID       Uint64Flag
	Artifacts     StringFlag
	Pipeline      StringFlag
	Confirmations Uint64Flag
	Timeout       DurationFlag
	GasLimit      Uint64Flag
	OnlySteps     SliceFlag
	SkipSteps     SliceFlag
	Format        StringFlag
	From          StringFlag
	DryRun        BoolFlag
	Verbose       BoolFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// Uint64Flag represents an unsigned integer flag and whether it was set.
type Uint64Flag struct {
	Value uint64
	Set   bool
}

// DurationFlag represents a duration flag and whether it was set.
type DurationFlag struct {
	Value time.Duration
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values via CLI.
type SliceFlag struct {
	Values []string
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}
