package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_RPC_URL", "https://rpc.example.org")
	t.Setenv("TEST_PRIVATE_KEY", "0xabc")

	path := writeConfig(t, `
chain:
  rpc_url: ${TEST_RPC_URL}
  chain_id: 11155111
  private_key: ${TEST_PRIVATE_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chain.RPCURL != "https://rpc.example.org" {
		t.Errorf("Expected rpc url https://rpc.example.org, got %s", cfg.Chain.RPCURL)
	}
	if cfg.Chain.PrivateKey != "0xabc" {
		t.Errorf("Expected private key 0xabc, got %s", cfg.Chain.PrivateKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "chain:\n  rpc_url: http://localhost:8545\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if *cfg.Escalation.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", *cfg.Escalation.MaxAttempts)
	}
	if cfg.Escalation.WaitWindow != 60*time.Second {
		t.Errorf("wait window = %v, want 60s", cfg.Escalation.WaitWindow)
	}
	if cfg.Escalation.BumpPercent != 10 || cfg.Escalation.DefaultTipWei != 2_000_000_000 {
		t.Errorf("unexpected escalation defaults %+v", cfg.Escalation)
	}
	if *cfg.Retry.MaxRetries != 5 || cfg.Retry.InitialDelay != time.Second || cfg.Retry.Multiplier != 2 {
		t.Errorf("unexpected retry defaults %+v", cfg.Retry)
	}
	if cfg.Chain.RPCTimeout != 30*time.Second {
		t.Errorf("rpc timeout = %v, want 30s", cfg.Chain.RPCTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
escalation:
  max_attempts: 0
  wait_window: 15s
  bump_percent: 25
  skip_while_pending: true
retry:
  max_retries: 2
  initial_delay: 250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if *cfg.Escalation.MaxAttempts != 0 {
		t.Errorf("explicit zero max attempts was overridden: %d", *cfg.Escalation.MaxAttempts)
	}
	if cfg.Escalation.WaitWindow != 15*time.Second || cfg.Escalation.BumpPercent != 25 {
		t.Errorf("unexpected escalation %+v", cfg.Escalation)
	}
	if !cfg.Escalation.SkipWhilePending {
		t.Errorf("skip_while_pending not parsed")
	}
	if *cfg.Retry.MaxRetries != 2 || cfg.Retry.InitialDelay != 250*time.Millisecond {
		t.Errorf("unexpected retry %+v", cfg.Retry)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("CHAIN_ID", "1337")
	t.Setenv("PRIVATE_KEY", "0xdeadbeef")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Chain.RPCURL != "http://localhost:8545" || cfg.Chain.ChainID != 1337 || cfg.Chain.PrivateKey != "0xdeadbeef" {
		t.Errorf("unexpected chain config %+v", cfg.Chain)
	}

	t.Setenv("CHAIN_ID", "mainnet")
	if _, err := LoadFromEnv(); err == nil {
		t.Errorf("expected error for non-numeric CHAIN_ID")
	}
}

func TestLoadOrEnv_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("RPC_URL", "http://env:8545")
	t.Setenv("CHAIN_ID", "1")
	t.Setenv("PRIVATE_KEY", "0x01")

	cfg, err := LoadOrEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrEnv: %v", err)
	}
	if cfg.Chain.RPCURL != "http://env:8545" {
		t.Errorf("rpc url = %s", cfg.Chain.RPCURL)
	}
}

func TestValidate(t *testing.T) {
	cfg := &AppConfig{Retry: RetryConfig{Multiplier: 2}}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"rpc_url", "private_key", "chain_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_LockMustOutlastWaitWindow(t *testing.T) {
	cfg := &AppConfig{
		Chain:      ChainConfig{RPCURL: "http://localhost:8545", ChainID: 1, PrivateKey: "0x01"},
		Escalation: EscalationConfig{WaitWindow: 2 * time.Minute, LockTTL: time.Minute},
		Retry:      RetryConfig{Multiplier: 2},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "lock_ttl") {
		t.Fatalf("expected lock_ttl error, got %v", err)
	}

	cfg.Escalation.LockTTL = 10 * time.Minute
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	// Unset values fall back to the 60s window and 5m ttl.
	cfg.Escalation = EscalationConfig{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with defaults: %v", err)
	}
}

func TestLoggingConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := LoggingConfig{Level: tt.level}.SlogLevel()
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.level, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: level = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestValidate_Logging(t *testing.T) {
	cfg := &AppConfig{
		Chain:   ChainConfig{RPCURL: "http://localhost:8545", ChainID: 1, PrivateKey: "0x01"},
		Retry:   RetryConfig{Multiplier: 2},
		Logging: LoggingConfig{Level: "loud", Format: "xml"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"logging.level", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	cfg.Logging = LoggingConfig{Level: "warn", Format: "JSON"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
