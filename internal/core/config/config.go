package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	redisclient "github.com/vietddude/escalator/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Chain      ChainConfig        `yaml:"chain"`
	Escalation EscalationConfig   `yaml:"escalation"`
	Retry      RetryConfig        `yaml:"retry"`
	Redis      redisclient.Config `yaml:"redis"`
	Metrics    MetricsConfig      `yaml:"metrics"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// ChainConfig holds the endpoint and key for the chain being written to.
type ChainConfig struct {
	Name       string        `yaml:"name"` // provider label in metrics
	RPCURL     string        `yaml:"rpc_url"`
	ChainID    uint64        `yaml:"chain_id"`
	PrivateKey string        `yaml:"private_key"`
	RPCTimeout time.Duration `yaml:"rpc_timeout"`
}

// EscalationConfig holds the fee escalation parameters.
type EscalationConfig struct {
	MaxAttempts      *int          `yaml:"max_attempts"` // nil = default, 0 is valid
	WaitWindow       time.Duration `yaml:"wait_window"`
	BumpPercent      uint64        `yaml:"bump_percent"`
	DefaultTipWei    uint64        `yaml:"default_tip_wei"`
	SkipWhilePending bool          `yaml:"skip_while_pending"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
}

// RetryConfig holds the backoff parameters for idempotent reads.
type RetryConfig struct {
	MaxRetries   *int          `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// MetricsConfig holds the metrics/health HTTP listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SlogLevel maps Level onto slog. Empty means info.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid logging.level %q", l.Level)
	}
	return level, nil
}

// JSON reports whether logs are written as JSON instead of colored text.
func (l LoggingConfig) JSON() bool {
	return strings.EqualFold(l.Format, "json")
}
