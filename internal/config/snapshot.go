package config

import (
	"time"

	"github.com/spf13/pflag"
)

// SnapshotConfig holds configuration for the one-shot snapshot run.
type SnapshotConfig struct {
	SubgraphURL  string
	Pools        []string
	ChainID      uint64
	Top          int
	RPCURL       string
	StateView    string
	PGDSN        string
	Out          string
	Window       int
	TickPageSize int
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadSnapshot merges config file, environment variables, and flags
// into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"top":            20,
		"tick-page-size": 1000,
		"max-retries":    5,
		"retry-backoff":  500 * time.Millisecond,
		"log-level":      "info",
	})
	if err != nil {
		return SnapshotConfig{}, err
	}

	cfg := SnapshotConfig{
		SubgraphURL:  v.GetString("subgraph"),
		Pools:        getStringSlice(v, "pool"),
		ChainID:      v.GetUint64("chain"),
		Top:          v.GetInt("top"),
		RPCURL:       v.GetString("rpc"),
		StateView:    v.GetString("stateview"),
		PGDSN:        v.GetString("pg-dsn"),
		Out:          v.GetString("out"),
		Window:       v.GetInt("window"),
		TickPageSize: v.GetInt("tick-page-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
