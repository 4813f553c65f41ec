package config

import (
	"testing"
	"time"

	"github.com/marmos91/tinymmo/pkg/ledger"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_LogLevelNormalization(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"Info", "INFO"},
		{"WARN", "WARN"},
		{"error", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg := &Config{Logging: LoggingConfig{Level: tt.input}}
			ApplyDefaults(cfg)

			if cfg.Logging.Level != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, cfg.Logging.Level)
			}
		})
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	s := cfg.Server
	if s.Port != 6502 {
		t.Errorf("Expected default port 6502, got %d", s.Port)
	}
	if s.TickRate != 20 {
		t.Errorf("Expected default tick_rate 20, got %d", s.TickRate)
	}
	if s.Capacity != 1024 {
		t.Errorf("Expected default capacity 1024, got %d", s.Capacity)
	}
	if s.TimeoutTicks != 200 {
		t.Errorf("Expected default timeout_ticks 200, got %d", s.TimeoutTicks)
	}
	if s.LoopInterval != 10*time.Millisecond {
		t.Errorf("Expected default loop_interval 10ms, got %v", s.LoopInterval)
	}
	if s.MaxCatchUpTicks != 0 {
		t.Errorf("Expected unlimited catch-up by default, got %d", s.MaxCatchUpTicks)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 7000
	cfg.Server.TimeoutTicks = 42
	cfg.Metrics.Port = 9999
	cfg.Ledger.Type = "none"
	cfg.Ledger.QueueSize = 16
	cfg.Ledger.Memory = map[string]any{"max_records": 5}

	ApplyDefaults(cfg)

	if cfg.Server.Port != 7000 {
		t.Errorf("Expected port 7000 preserved, got %d", cfg.Server.Port)
	}
	if cfg.Server.TimeoutTicks != 42 {
		t.Errorf("Expected timeout_ticks 42 preserved, got %d", cfg.Server.TimeoutTicks)
	}
	if cfg.Metrics.Port != 9999 {
		t.Errorf("Expected metrics port 9999 preserved, got %d", cfg.Metrics.Port)
	}
	if cfg.Ledger.Type != "none" {
		t.Errorf("Expected ledger type 'none' preserved, got %q", cfg.Ledger.Type)
	}
	if cfg.Ledger.QueueSize != 16 {
		t.Errorf("Expected queue_size 16 preserved, got %d", cfg.Ledger.QueueSize)
	}
	if cfg.Ledger.Memory["max_records"] != 5 {
		t.Errorf("Expected max_records 5 preserved, got %v", cfg.Ledger.Memory["max_records"])
	}
}

func TestApplyDefaults_Ledger(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Ledger.Type != "memory" {
		t.Errorf("Expected default ledger type 'memory', got %q", cfg.Ledger.Type)
	}
	if cfg.Ledger.QueueSize != ledger.DefaultQueueSize {
		t.Errorf("Expected default queue_size %d, got %d", ledger.DefaultQueueSize, cfg.Ledger.QueueSize)
	}
	if _, ok := cfg.Ledger.Badger["db_path"]; !ok {
		t.Error("Expected default badger db_path")
	}
	if cfg.Ledger.Archive.S3.MaxRetries != 0 {
		t.Errorf("Expected no archive retries without a bucket, got %d", cfg.Ledger.Archive.S3.MaxRetries)
	}
}

func TestApplyDefaults_ArchiveRetries(t *testing.T) {
	cfg := &Config{}
	cfg.Ledger.Archive.S3.Bucket = "ledgers"
	ApplyDefaults(cfg)

	if cfg.Ledger.Archive.S3.MaxRetries != 10 {
		t.Errorf("Expected default max_retries 10, got %d", cfg.Ledger.Archive.S3.MaxRetries)
	}
}

func TestApplyDefaults_RateLimitBurst(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.RateLimit.Burst != 0 {
		t.Errorf("Expected no burst when limiting is off, got %d", cfg.RateLimit.Burst)
	}

	cfg = &Config{RateLimit: RateLimitConfig{PacketsPerSecond: 200}}
	ApplyDefaults(cfg)
	if cfg.RateLimit.Burst != 200 {
		t.Errorf("Expected burst 200, got %d", cfg.RateLimit.Burst)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.API.Enabled {
		t.Error("Expected API disabled by default")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}
