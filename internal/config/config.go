package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEventTopic is the ownership-transfer event signature watched by
// default: OwnershipTransferred(address,address).
const DefaultEventTopic = "0x8be0079c531659141344cd1fd0a4f28419497f9722a3daafe3b4186f6b6457e0"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL     string
	PrivateKey string
	ChainID    uint64

	EventTopic  string
	Deployers   []string
	TargetOwner string
	Wanted      string
	Unwanted    string
	Verify      bool

	Router        string
	TokenIn       string
	AmountIn      string
	AmountOutMin  string
	GasTier       string
	TradeDeadline time.Duration

	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration

	ReportOut string
	LogLevel  string
}

// Load merges config file, environment variables, and flags into Config.
// Environment variables use the SNIPER_ prefix with dashes replaced by
// underscores (SNIPER_RPC, SNIPER_PRIVATE_KEY, ...).
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNIPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(8453))
	v.SetDefault("event-topic", DefaultEventTopic)
	v.SetDefault("verify", true)
	v.SetDefault("amount-out-min", "1")
	v.SetDefault("gas-tier", "standard")
	v.SetDefault("trade-deadline", 5*time.Minute)
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("report-out", "./data/detections.jsonl")
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
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:     v.GetString("rpc"),
		PrivateKey: v.GetString("private-key"),
		ChainID:    v.GetUint64("chain-id"),

		EventTopic:  v.GetString("event-topic"),
		Deployers:   getStringSlice(v, "deployer"),
		TargetOwner: v.GetString("target-owner"),
		Wanted:      v.GetString("wanted"),
		Unwanted:    v.GetString("unwanted"),
		Verify:      v.GetBool("verify"),

		Router:        v.GetString("router"),
		TokenIn:       v.GetString("token-in"),
		AmountIn:      v.GetString("amount-in"),
		AmountOutMin:  v.GetString("amount-out-min"),
		GasTier:       v.GetString("gas-tier"),
		TradeDeadline: v.GetDuration("trade-deadline"),

		BatchSize:    v.GetUint64("batch-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),

		ReportOut: v.GetString("report-out"),
		LogLevel:  v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
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

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
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
