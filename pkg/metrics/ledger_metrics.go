package metrics

// LedgerMetrics observes the session ledger recorder.
type LedgerMetrics interface {
	// RecordEvent counts an event handed to the recorder.
	//
	// Parameters:
	//   - kind: "connect" or "disconnect"
	//   - dropped: true when the queue was full and the event was discarded
	RecordEvent(kind string, dropped bool)

	// RecordStoreError counts a failed write to the ledger store.
	RecordStoreError()

	// RecordArchive records an archive upload of n records.
	RecordArchive(records int, err error)
}

// NewNoopLedgerMetrics returns a LedgerMetrics that records nothing.
func NewNoopLedgerMetrics() LedgerMetrics {
	return noopLedgerMetrics{}
}

type noopLedgerMetrics struct{}

func (noopLedgerMetrics) RecordEvent(kind string, dropped bool) {}
func (noopLedgerMetrics) RecordStoreError()                     {}
func (noopLedgerMetrics) RecordArchive(records int, err error)  {}
