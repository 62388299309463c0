package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultWaitWindow = 60 * time.Second
	defaultLockTTL    = 5 * time.Minute
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv builds the configuration from RPC_URL, CHAIN_ID and
// PRIVATE_KEY, plus REDIS_URL and METRICS_ADDR when set.
func LoadFromEnv() (*AppConfig, error) {
	cfg := AppConfig{
		Chain: ChainConfig{
			RPCURL:     os.Getenv("RPC_URL"),
			PrivateKey: os.Getenv("PRIVATE_KEY"),
		},
	}
	cfg.Redis.URL = os.Getenv("REDIS_URL")
	cfg.Metrics.Addr = os.Getenv("METRICS_ADDR")

	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAIN_ID %q: %w", v, err)
		}
		cfg.Chain.ChainID = id
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrEnv loads path when it exists and falls back to the environment.
func LoadOrEnv(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return LoadFromEnv()
	}
	return Load(path)
}

func (c *AppConfig) applyDefaults() {
	if c.Chain.Name == "" {
		c.Chain.Name = "default"
	}
	if c.Chain.RPCTimeout == 0 {
		c.Chain.RPCTimeout = 30 * time.Second
	}

	if c.Escalation.MaxAttempts == nil {
		n := 3
		c.Escalation.MaxAttempts = &n
	}
	if c.Escalation.WaitWindow == 0 {
		c.Escalation.WaitWindow = defaultWaitWindow
	}
	if c.Escalation.BumpPercent == 0 {
		c.Escalation.BumpPercent = 10
	}
	if c.Escalation.DefaultTipWei == 0 {
		c.Escalation.DefaultTipWei = 2_000_000_000
	}
	if c.Escalation.LockTTL == 0 {
		c.Escalation.LockTTL = defaultLockTTL
	}

	if c.Retry.MaxRetries == nil {
		n := 5
		c.Retry.MaxRetries = &n
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = time.Second
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2.0
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the fields needed to send transactions.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("chain.rpc_url is required"))
	}
	if c.Chain.PrivateKey == "" {
		errs = append(errs, errors.New("chain.private_key is required"))
	}
	if c.Chain.ChainID == 0 {
		errs = append(errs, errors.New("chain.chain_id must be positive"))
	}
	if c.Escalation.MaxAttempts != nil && *c.Escalation.MaxAttempts < 0 {
		errs = append(errs, errors.New("escalation.max_attempts must not be negative"))
	}
	if c.Retry.MaxRetries != nil && *c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("retry.max_retries must not be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry.multiplier must be at least 1"))
	}

	// The sequence lock must outlive one round.
	wait, ttl := c.Escalation.WaitWindow, c.Escalation.LockTTL
	if wait == 0 {
		wait = defaultWaitWindow
	}
	if ttl == 0 {
		ttl = defaultLockTTL
	}
	if ttl <= wait {
		errs = append(errs, fmt.Errorf("escalation.lock_ttl (%s) must be longer than escalation.wait_window (%s)", ttl, wait))
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid logging.format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
