package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pairScout/internal/admission"
	"pairScout/internal/oracle"
	"pairScout/internal/watcher"
)

// Mainnet Uniswap V2 defaults.
const (
	DefaultFactory        = "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
	DefaultReferenceAsset = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	DefaultReferencePair  = "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"
)

// Store backends.
const (
	StoreJSONL    = "jsonl"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL                string
	Factory               string
	ReferenceAsset        string
	ReferenceDecimals     uint
	ReferencePair         string
	USDDecimals           uint
	USDIsToken0           bool
	MinReferenceLiquidity string
	MaxConcentrationPct   string
	Store                 string
	StoreDir              string
	PGDSN                 string
	NotifyEnabled         bool
	TelegramToken         string
	TelegramChatID        int64
	ExplorerURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	MetricsAddr           string
	Lockers               []string
	ResubscribeBackoff    time.Duration
	ResubscribeMaxBackoff time.Duration
	DedupeWindow          int
	LogLevel              string
	LogFile               string
}

// Load merges an optional .env file, config file, environment variables and
// flags into Config. Variables already present in the environment win over
// the .env file.
func Load(cfgFile, envFile string, flags *pflag.FlagSet) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("PAIRSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("factory", DefaultFactory)
	v.SetDefault("reference-asset", DefaultReferenceAsset)
	v.SetDefault("reference-decimals", 18)
	v.SetDefault("reference-pair", DefaultReferencePair)
	v.SetDefault("usd-decimals", 6)
	v.SetDefault("usd-is-token0", true)
	v.SetDefault("min-reference-liquidity", "1000000000000000000")
	v.SetDefault("max-concentration-pct", "90")
	v.SetDefault("store", StoreJSONL)
	v.SetDefault("store-dir", "./data")
	v.SetDefault("notify-enabled", false)
	v.SetDefault("explorer-url", "https://etherscan.io")
	v.SetDefault("redis-db", 0)
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("resubscribe-backoff", 500*time.Millisecond)
	v.SetDefault("resubscribe-max-backoff", 30*time.Second)
	v.SetDefault("dedupe-window", 1024)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("pairscout")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:                v.GetString("rpc"),
		Factory:               v.GetString("factory"),
		ReferenceAsset:        v.GetString("reference-asset"),
		ReferenceDecimals:     v.GetUint("reference-decimals"),
		ReferencePair:         v.GetString("reference-pair"),
		USDDecimals:           v.GetUint("usd-decimals"),
		USDIsToken0:           v.GetBool("usd-is-token0"),
		MinReferenceLiquidity: v.GetString("min-reference-liquidity"),
		MaxConcentrationPct:   v.GetString("max-concentration-pct"),
		Store:                 strings.ToLower(v.GetString("store")),
		StoreDir:              v.GetString("store-dir"),
		PGDSN:                 v.GetString("pg-dsn"),
		NotifyEnabled:         v.GetBool("notify-enabled"),
		TelegramToken:         v.GetString("telegram-token"),
		TelegramChatID:        v.GetInt64("telegram-chat-id"),
		ExplorerURL:           v.GetString("explorer-url"),
		RedisAddr:             v.GetString("redis-addr"),
		RedisPassword:         v.GetString("redis-password"),
		RedisDB:               v.GetInt("redis-db"),
		MetricsAddr:           v.GetString("metrics-addr"),
		Lockers:               getStringSlice(v, "lockers"),
		ResubscribeBackoff:    v.GetDuration("resubscribe-backoff"),
		ResubscribeMaxBackoff: v.GetDuration("resubscribe-max-backoff"),
		DedupeWindow:          v.GetInt("dedupe-window"),
		LogLevel:              v.GetString("log-level"),
		LogFile:               v.GetString("log-file"),
	}

	return cfg, nil
}

// Validate checks everything the watch command needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if _, err := c.Oracle(); err != nil {
		return err
	}
	if _, err := c.Admission(); err != nil {
		return err
	}
	if _, err := c.Watcher(); err != nil {
		return err
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.NotifyEnabled {
		if c.TelegramToken == "" {
			return fmt.Errorf("telegram token is required when notifications are enabled")
		}
		if c.TelegramChatID == 0 {
			return fmt.Errorf("telegram chat id is required when notifications are enabled")
		}
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis db must not be negative")
	}
	return nil
}

// ValidateStore checks the store selection and its settings.
func (c Config) ValidateStore() error {
	switch c.Store {
	case StoreJSONL:
		if c.StoreDir == "" {
			return fmt.Errorf("store dir is required for the jsonl store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	return nil
}

// Oracle returns the reference pair settings.
func (c Config) Oracle() (oracle.Config, error) {
	pair, err := ParseAddress("reference-pair", c.ReferencePair)
	if err != nil {
		return oracle.Config{}, err
	}
	usd, err := decimals("usd-decimals", c.USDDecimals)
	if err != nil {
		return oracle.Config{}, err
	}
	ref, err := decimals("reference-decimals", c.ReferenceDecimals)
	if err != nil {
		return oracle.Config{}, err
	}
	return oracle.Config{
		Pair:        pair,
		USDIsToken0: c.USDIsToken0,
		USDDecimals: usd,
		RefDecimals: ref,
	}, nil
}

// Admission returns the admission thresholds.
func (c Config) Admission() (admission.Config, error) {
	reference, err := ParseAddress("reference-asset", c.ReferenceAsset)
	if err != nil {
		return admission.Config{}, err
	}
	ref, err := decimals("reference-decimals", c.ReferenceDecimals)
	if err != nil {
		return admission.Config{}, err
	}

	minLiquidity, ok := new(big.Int).SetString(strings.TrimSpace(c.MinReferenceLiquidity), 10)
	if !ok || minLiquidity.Sign() < 0 {
		return admission.Config{}, fmt.Errorf("invalid min-reference-liquidity: %q", c.MinReferenceLiquidity)
	}

	maxPct, err := decimal.NewFromString(strings.TrimSpace(c.MaxConcentrationPct))
	if err != nil {
		return admission.Config{}, fmt.Errorf("invalid max-concentration-pct: %w", err)
	}
	if !maxPct.IsPositive() || maxPct.GreaterThan(decimal.NewFromInt(100)) {
		return admission.Config{}, fmt.Errorf("max-concentration-pct must be in (0, 100], got %s", maxPct)
	}

	return admission.Config{
		Reference:             reference,
		ReferenceDecimals:     ref,
		MinReferenceLiquidity: minLiquidity,
		MaxConcentrationPct:   maxPct,
	}, nil
}

// Watcher returns the feed settings.
func (c Config) Watcher() (watcher.Config, error) {
	factory, err := ParseAddress("factory", c.Factory)
	if err != nil {
		return watcher.Config{}, err
	}
	pair, err := ParseAddress("reference-pair", c.ReferencePair)
	if err != nil {
		return watcher.Config{}, err
	}
	lockers, err := ParseAddresses(c.Lockers)
	if err != nil {
		return watcher.Config{}, fmt.Errorf("lockers: %w", err)
	}
	if c.ResubscribeBackoff <= 0 {
		return watcher.Config{}, fmt.Errorf("resubscribe-backoff must be positive")
	}
	if c.ResubscribeMaxBackoff < c.ResubscribeBackoff {
		return watcher.Config{}, fmt.Errorf("resubscribe-max-backoff must not be below resubscribe-backoff")
	}
	if c.DedupeWindow <= 0 {
		return watcher.Config{}, fmt.Errorf("dedupe-window must be positive")
	}
	return watcher.Config{
		Factory:               factory,
		ReferencePair:         pair,
		Lockers:               lockers,
		ResubscribeBackoff:    c.ResubscribeBackoff,
		ResubscribeMaxBackoff: c.ResubscribeMaxBackoff,
		DedupeWindow:          c.DedupeWindow,
	}, nil
}

func decimals(key string, value uint) (uint8, error) {
	if value > math.MaxUint8 {
		return 0, fmt.Errorf("%s out of range: %d", key, value)
	}
	return uint8(value), nil
}

// ParseAddress converts a required hex address.
func ParseAddress(key, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("%s is required", key)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid %s: %s", key, input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return cleanStrings(strings.Split(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
