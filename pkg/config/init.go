package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a sample configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration with all defaults to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as commented YAML. The output is parsed
// back before returning so a template mistake surfaces here, not at load time.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var b strings.Builder
	w := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	w("# tinymmo Configuration File")
	w("#")
	w("# Every value can be overridden with a TINYMMO_* environment variable,")
	w("# e.g. TINYMMO_SERVER_TICK_RATE=60 or TINYMMO_LOGGING_LEVEL=DEBUG.")
	w("")

	w("logging:")
	w("  # DEBUG, INFO, WARN or ERROR")
	w("  level: %q", cfg.Logging.Level)
	w("  # text or json")
	w("  format: %q", cfg.Logging.Format)
	w("  # stdout, stderr or a file path")
	w("  output: %q", cfg.Logging.Output)
	w("")

	s := cfg.Server
	w("server:")
	w("  # UDP port clients send input to")
	w("  port: %d", s.Port)
	w("  # Simulation ticks per second")
	w("  tick_rate: %d", s.TickRate)
	w("  # Fixed number of session slots")
	w("  capacity: %d", s.Capacity)
	w("  # Ticks without accepted input before a session is evicted")
	w("  timeout_ticks: %d", s.TimeoutTicks)
	w("  # Sleep between loop iterations")
	w("  loop_interval: %q", s.LoopInterval.String())
	w("  # Cap on ticks run after a stall (0 = unlimited)")
	w("  max_catch_up_ticks: %d", s.MaxCatchUpTicks)
	w("  shutdown_timeout: %q", s.ShutdownTimeout.String())
	w("  stats_log_interval: %q", s.StatsLogInterval.String())
	w("")

	w("rate_limit:")
	w("  # Datagrams per second across all clients (0 = unlimited)")
	w("  packets_per_second: %d", cfg.RateLimit.PacketsPerSecond)
	w("  burst: %d", cfg.RateLimit.Burst)
	w("")

	w("metrics:")
	w("  enabled: %t", cfg.Metrics.Enabled)
	w("  port: %d", cfg.Metrics.Port)
	w("")

	w("api:")
	w("  # Admin HTTP API (status, clients, kick, ledger)")
	w("  enabled: %t", cfg.API.Enabled)
	w("  port: %d", cfg.API.Port)
	w("")

	l := cfg.Ledger
	w("ledger:")
	w("  # none, memory or badger")
	w("  type: %q", l.Type)
	w("  # Records buffered between the loop and the store")
	w("  queue_size: %d", l.QueueSize)
	w("  memory:")
	w("    # 0 = unlimited")
	w("    max_records: %v", l.Memory["max_records"])
	w("  badger:")
	w("    db_path: %q", l.Badger["db_path"])
	w("  archive:")
	w("    # Upload the ledger as JSON lines at shutdown when bucket is set")
	w("    s3:")
	w("      bucket: %q", l.Archive.S3.Bucket)
	w("      region: %q", l.Archive.S3.Region)
	w("      key_prefix: %q", l.Archive.S3.KeyPrefix)
	w("      # Custom endpoint for MinIO or Localstack")
	w("      endpoint: %q", l.Archive.S3.Endpoint)
	w("      max_retries: %d", l.Archive.S3.MaxRetries)

	out := b.String()

	var check map[string]any
	if err := yaml.Unmarshal([]byte(out), &check); err != nil {
		return "", fmt.Errorf("generated config is not valid YAML: %w", err)
	}
	return out, nil
}
