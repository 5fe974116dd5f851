package config

import (
	"time"

	"github.com/spf13/pflag"
)

// DepthConfig holds configuration for the single-pool ladder command.
type DepthConfig struct {
	SubgraphURL  string
	Pool         string
	Buckets      int
	Out          string
	TickPageSize int
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadDepth merges config file, environment variables, and flags into
// DepthConfig.
func LoadDepth(cfgFile string, flags *pflag.FlagSet) (DepthConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"buckets":        25,
		"tick-page-size": 1000,
		"max-retries":    5,
		"retry-backoff":  500 * time.Millisecond,
		"log-level":      "info",
	})
	if err != nil {
		return DepthConfig{}, err
	}

	cfg := DepthConfig{
		SubgraphURL:  v.GetString("subgraph"),
		Pool:         v.GetString("pool"),
		Buckets:      v.GetInt("buckets"),
		Out:          v.GetString("out"),
		TickPageSize: v.GetInt("tick-page-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
