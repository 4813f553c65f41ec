package prometheus

import (
	"github.com/marmos91/tinymmo/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	events         *prometheus.CounterVec
	storeErrors    prometheus.Counter
	archives       *prometheus.CounterVec
	archiveRecords prometheus.Counter
}

// NewLedgerMetrics creates a LedgerMetrics registered on the global registry,
// or a no-op one when metrics are disabled.
func NewLedgerMetrics() metrics.LedgerMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopLedgerMetrics()
	}
	return NewLedgerMetricsWith(metrics.GetRegistry())
}

// NewLedgerMetricsWith registers the ledger metrics on reg.
func NewLedgerMetricsWith(reg prometheus.Registerer) metrics.LedgerMetrics {
	return &ledgerMetrics{
		events: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tinymmo_ledger_events_total",
				Help: "Ledger events by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		storeErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tinymmo_ledger_store_errors_total",
				Help: "Failed ledger store writes",
			},
		),
		archives: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tinymmo_ledger_archives_total",
				Help: "Ledger archive uploads by status",
			},
			[]string{"status"},
		),
		archiveRecords: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tinymmo_ledger_archived_records_total",
				Help: "Records uploaded by ledger archives",
			},
		),
	}
}

func (m *ledgerMetrics) RecordEvent(kind string, dropped bool) {
	status := "queued"
	if dropped {
		status = "dropped"
	}
	m.events.WithLabelValues(kind, status).Inc()
}

func (m *ledgerMetrics) RecordStoreError() {
	m.storeErrors.Inc()
}

func (m *ledgerMetrics) RecordArchive(records int, err error) {
	if err != nil {
		m.archives.WithLabelValues("error").Inc()
		return
	}
	m.archives.WithLabelValues("success").Inc()
	m.archiveRecords.Add(float64(records))
}
