package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServeConfig holds configuration for the long-running API server.
type ServeConfig struct {
	SubgraphURL     string
	Pools           []string
	Addr            string
	PollInterval    time.Duration
	DrainInterval   time.Duration
	DrainBatch      int
	QueueLimit      int
	SwapsPerPoll    int
	TickPageSize    int
	Cursor          string
	CursorEnabled   bool
	PGDSN           string
	PersistInterval time.Duration
	DepthBuckets    int
	MaxDepthBuckets int
	HooksURL        string
	HooksToken      string
	HooksCacheTTL   time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	LogLevel        string
}

// LoadServe merges config file, environment variables, and flags into
// ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"addr":              ":8080",
		"poll-interval":     12 * time.Second,
		"drain-interval":    time.Second,
		"drain-batch":       8,
		"queue-limit":       256,
		"swaps-per-poll":    100,
		"tick-page-size":    1000,
		"cursor":            "./data/cursor.json",
		"cursor-enabled":    true,
		"persist-interval":  5 * time.Minute,
		"depth-buckets":     25,
		"max-depth-buckets": 200,
		"hooks-cache-ttl":   5 * time.Minute,
		"max-retries":       5,
		"retry-backoff":     500 * time.Millisecond,
		"log-level":         "info",
	})
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		SubgraphURL:     v.GetString("subgraph"),
		Pools:           getStringSlice(v, "pool"),
		Addr:            v.GetString("addr"),
		PollInterval:    v.GetDuration("poll-interval"),
		DrainInterval:   v.GetDuration("drain-interval"),
		DrainBatch:      v.GetInt("drain-batch"),
		QueueLimit:      v.GetInt("queue-limit"),
		SwapsPerPoll:    v.GetInt("swaps-per-poll"),
		TickPageSize:    v.GetInt("tick-page-size"),
		Cursor:          v.GetString("cursor"),
		CursorEnabled:   v.GetBool("cursor-enabled"),
		PGDSN:           v.GetString("pg-dsn"),
		PersistInterval: v.GetDuration("persist-interval"),
		DepthBuckets:    v.GetInt("depth-buckets"),
		MaxDepthBuckets: v.GetInt("max-depth-buckets"),
		HooksURL:        v.GetString("hooks-url"),
		HooksToken:      v.GetString("hooks-token"),
		HooksCacheTTL:   v.GetDuration("hooks-cache-ttl"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// newViper builds the merged view shared by all commands: defaults,
// then config file, then POOLSCOPE_* env vars, then flags.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
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
