package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	ListenAddr     string
	RPCURL         string
	ProgramAddress string
	WebhookSecret  string
	AdminToken     string
	PGDSN          string

	BackfillLimit     int
	BackfillBatchSize int
	RPCCallDelay      time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration

	RPCQuota      int
	RPCWindow     time.Duration
	WebhookQuota  int
	WebhookWindow time.Duration
	UploadQuota   int
	UploadWindow  time.Duration
	LimiterCap    int

	UploadMaxBytes     int64
	UploadAllowedTypes []string
	GatewayURL         string

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAINMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("backfill-limit", 100)
	v.SetDefault("backfill-batch-size", 25)
	v.SetDefault("rpc-call-delay", 120*time.Millisecond)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("rpc-quota", 500)
	v.SetDefault("rpc-window", time.Minute)
	v.SetDefault("webhook-quota", 120)
	v.SetDefault("webhook-window", time.Minute)
	v.SetDefault("upload-quota", 10)
	v.SetDefault("upload-window", time.Minute)
	v.SetDefault("limiter-capacity", 4096)
	v.SetDefault("upload-max-bytes", int64(10<<20))
	v.SetDefault("upload-allowed-types", []string{"image/png", "image/jpeg", "application/pdf", "text/plain"})
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
		ListenAddr:     v.GetString("listen"),
		RPCURL:         v.GetString("rpc"),
		ProgramAddress: v.GetString("program"),
		WebhookSecret:  v.GetString("webhook-secret"),
		AdminToken:     v.GetString("admin-token"),
		PGDSN:          v.GetString("pg-dsn"),

		BackfillLimit:     v.GetInt("backfill-limit"),
		BackfillBatchSize: v.GetInt("backfill-batch-size"),
		RPCCallDelay:      v.GetDuration("rpc-call-delay"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),

		RPCQuota:      v.GetInt("rpc-quota"),
		RPCWindow:     v.GetDuration("rpc-window"),
		WebhookQuota:  v.GetInt("webhook-quota"),
		WebhookWindow: v.GetDuration("webhook-window"),
		UploadQuota:   v.GetInt("upload-quota"),
		UploadWindow:  v.GetDuration("upload-window"),
		LimiterCap:    v.GetInt("limiter-capacity"),

		UploadMaxBytes:     v.GetInt64("upload-max-bytes"),
		UploadAllowedTypes: getStringSlice(v, "upload-allowed-types"),
		GatewayURL:         v.GetString("gateway-url"),

		LogLevel: v.GetString("log-level"),
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
