package config

import (
	"github.com/marmos91/tinymmo/pkg/metrics"
	promMetrics "github.com/marmos91/tinymmo/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ServerMetrics is the collector for the tick loop (never nil, uses noop if disabled)
	ServerMetrics metrics.ServerMetrics

	// LedgerMetrics is the collector for the ledger (never nil, uses noop if disabled)
	LedgerMetrics metrics.LedgerMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Server:        nil,
			ServerMetrics: metrics.NewNoopServerMetrics(),
			LedgerMetrics: metrics.NewNoopLedgerMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server:        server,
		ServerMetrics: promMetrics.NewServerMetrics(),
		LedgerMetrics: promMetrics.NewLedgerMetrics(),
	}
}
