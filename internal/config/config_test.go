package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

const locker = "0x663A5C229c09b049E36dCc11a9B0d4a8Eb9db214"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Factory != DefaultFactory || cfg.ReferenceAsset != DefaultReferenceAsset || cfg.ReferencePair != DefaultReferencePair {
		t.Fatalf("unexpected contract defaults: %+v", cfg)
	}
	if cfg.ReferenceDecimals != 18 || cfg.USDDecimals != 6 || !cfg.USDIsToken0 {
		t.Fatalf("unexpected reference pair defaults: %+v", cfg)
	}
	if cfg.Store != StoreJSONL || cfg.StoreDir != "./data" {
		t.Fatalf("unexpected store defaults: %s %s", cfg.Store, cfg.StoreDir)
	}
	if cfg.ResubscribeBackoff != 500*time.Millisecond || cfg.ResubscribeMaxBackoff != 30*time.Second {
		t.Fatalf("unexpected backoff defaults: %s %s", cfg.ResubscribeBackoff, cfg.ResubscribeMaxBackoff)
	}
	if cfg.DedupeWindow != 1024 || cfg.LogLevel != "info" || cfg.NotifyEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Lockers != nil {
		t.Fatalf("expected no lockers, got %v", cfg.Lockers)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("PAIRSCOUT_RPC", "wss://node.example")
	t.Setenv("PAIRSCOUT_STORE", "Memory")
	t.Setenv("PAIRSCOUT_MAX_CONCENTRATION_PCT", "75.5")
	t.Setenv("PAIRSCOUT_LOCKERS", locker+", ,"+DefaultFactory)
	t.Setenv("PAIRSCOUT_RESUBSCRIBE_BACKOFF", "2s")

	cfg, err := Load("", "", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "wss://node.example" {
		t.Fatalf("rpc: %s", cfg.RPCURL)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("store: %s", cfg.Store)
	}
	if cfg.MaxConcentrationPct != "75.5" {
		t.Fatalf("max concentration: %s", cfg.MaxConcentrationPct)
	}
	if len(cfg.Lockers) != 2 || cfg.Lockers[0] != locker {
		t.Fatalf("lockers: %v", cfg.Lockers)
	}
	if cfg.ResubscribeBackoff != 2*time.Second {
		t.Fatalf("backoff: %s", cfg.ResubscribeBackoff)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PAIRSCOUT_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.Int("dedupe-window", 1024, "")
	if err := flags.Parse([]string{"--log-level=debug", "--dedupe-window=16"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", "", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected flag to win, got %s", cfg.LogLevel)
	}
	if cfg.DedupeWindow != 16 {
		t.Fatalf("dedupe window: %d", cfg.DedupeWindow)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairscout.yaml")
	body := strings.Join([]string{
		"rpc: wss://file.example",
		"store: postgres",
		"pg-dsn: postgres://localhost/pairscout",
		"usd-is-token0: false",
		"lockers:",
		"  - " + locker,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, "", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "wss://file.example" || cfg.Store != StorePostgres || cfg.PGDSN == "" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.USDIsToken0 {
		t.Fatalf("expected usd-is-token0 false")
	}
	if len(cfg.Lockers) != 1 || cfg.Lockers[0] != locker {
		t.Fatalf("lockers: %v", cfg.Lockers)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "", nil); err == nil {
		t.Fatalf("expected error for explicit missing config file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "PAIRSCOUT_TELEGRAM_CHAT_ID"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=-100200300\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, err := Load("", path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TelegramChatID != -100200300 {
		t.Fatalf("chat id: %d", cfg.TelegramChatID)
	}

	if _, err := Load("", filepath.Join(t.TempDir(), ".env"), nil); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := Load("", "", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.RPCURL = "wss://node.example"
	return cfg
}

func TestValidate(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("defaults with rpc should validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing rpc", func(c *Config) { c.RPCURL = "" }},
		{"bad factory", func(c *Config) { c.Factory = "0x1234" }},
		{"missing reference pair", func(c *Config) { c.ReferencePair = "" }},
		{"decimals out of range", func(c *Config) { c.USDDecimals = 300 }},
		{"bad min liquidity", func(c *Config) { c.MinReferenceLiquidity = "1e18" }},
		{"negative min liquidity", func(c *Config) { c.MinReferenceLiquidity = "-1" }},
		{"zero max concentration", func(c *Config) { c.MaxConcentrationPct = "0" }},
		{"max concentration above 100", func(c *Config) { c.MaxConcentrationPct = "100.01" }},
		{"bad locker", func(c *Config) { c.Lockers = []string{"nope"} }},
		{"zero backoff", func(c *Config) { c.ResubscribeBackoff = 0 }},
		{"max backoff below base", func(c *Config) { c.ResubscribeMaxBackoff = time.Millisecond }},
		{"zero dedupe window", func(c *Config) { c.DedupeWindow = 0 }},
		{"unknown store", func(c *Config) { c.Store = "sqlite" }},
		{"postgres without dsn", func(c *Config) { c.Store = StorePostgres }},
		{"jsonl without dir", func(c *Config) { c.StoreDir = "" }},
		{"notify without token", func(c *Config) { c.NotifyEnabled = true; c.TelegramChatID = 1 }},
		{"notify without chat", func(c *Config) { c.NotifyEnabled = true; c.TelegramToken = "token" }},
		{"negative redis db", func(c *Config) { c.RedisDB = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestTypedSections(t *testing.T) {
	cfg := validConfig(t)
	cfg.Lockers = []string{locker}
	cfg.MaxConcentrationPct = "50"
	cfg.MinReferenceLiquidity = "5000000000000000000"

	adm, err := cfg.Admission()
	if err != nil {
		t.Fatalf("admission: %v", err)
	}
	if adm.Reference != common.HexToAddress(DefaultReferenceAsset) {
		t.Fatalf("reference: %s", adm.Reference.Hex())
	}
	if adm.MinReferenceLiquidity.String() != "5000000000000000000" {
		t.Fatalf("min liquidity: %s", adm.MinReferenceLiquidity)
	}
	if adm.MaxConcentrationPct.String() != "50" || adm.ReferenceDecimals != 18 {
		t.Fatalf("unexpected admission config: %+v", adm)
	}

	orc, err := cfg.Oracle()
	if err != nil {
		t.Fatalf("oracle: %v", err)
	}
	if orc.Pair != common.HexToAddress(DefaultReferencePair) || orc.USDDecimals != 6 || orc.RefDecimals != 18 || !orc.USDIsToken0 {
		t.Fatalf("unexpected oracle config: %+v", orc)
	}

	w, err := cfg.Watcher()
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	if w.Factory != common.HexToAddress(DefaultFactory) || len(w.Lockers) != 1 || w.DedupeWindow != 1024 {
		t.Fatalf("unexpected watcher config: %+v", w)
	}
}

func TestParseAddresses(t *testing.T) {
	addrs, err := ParseAddresses([]string{" " + locker + " ", "", DefaultFactory})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(addrs) != 2 || addrs[0] != common.HexToAddress(locker) {
		t.Fatalf("unexpected addresses: %v", addrs)
	}
	if _, err := ParseAddresses([]string{"0xzz"}); err == nil {
		t.Fatalf("expected invalid address error")
	}
}
