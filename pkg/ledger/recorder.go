package ledger

import (
	"context"
	"sync"

	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/pkg/metrics"
)

// DefaultQueueSize is the recorder queue length used when none is given.
const DefaultQueueSize = 1024

// Recorder moves records from the server loop to a Store on its own
// goroutine.
//
// Record never blocks: when the queue is full the record is dropped and a
// warning is logged. Close drains whatever is queued before returning.
type Recorder struct {
	store   Store
	metrics metrics.LedgerMetrics
	events  chan Record
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder writing to store. queueSize <= 0 uses
// DefaultQueueSize; m may be nil.
func NewRecorder(store Store, queueSize int, m metrics.LedgerMetrics) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if m == nil {
		m = metrics.NewNoopLedgerMetrics()
	}

	r := &Recorder{
		store:   store,
		metrics: m,
		events:  make(chan Record, queueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Store returns the underlying store.
func (r *Recorder) Store() Store {
	return r.store
}

// Record queues rec for writing. Returns false if the record was dropped.
func (r *Recorder) Record(rec Record) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false
	}

	select {
	case r.events <- rec:
		r.metrics.RecordEvent(string(rec.Kind), false)
		return true
	default:
		logger.Warn("Ledger queue full, dropping %s event for %s", rec.Kind, rec.Addr)
		r.metrics.RecordEvent(string(rec.Kind), true)
		return false
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for rec := range r.events {
		if err := r.store.Append(context.Background(), &rec); err != nil {
			logger.Warn("Failed to append ledger %s event for %s: %v", rec.Kind, rec.Addr, err)
			r.metrics.RecordStoreError()
		}
	}
}

// Close stops accepting records and waits until the queue is drained or ctx
// expires. It does not close the store.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
