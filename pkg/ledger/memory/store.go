// Package memory implements an in-process ledger.Store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/pkg/ledger"
)

// Config configures the in-memory ledger.
type Config struct {
	// MaxRecords caps how many records are kept. Oldest records are evicted
	// first. 0 means unlimited.
	MaxRecords int `mapstructure:"max_records" validate:"gte=0"`
}

// Store keeps records in a slice ordered by sequence.
type Store struct {
	mu         sync.RWMutex
	records    []ledger.Record
	nextSeq    uint64
	maxRecords int
}

// New creates an empty store.
func New(cfg Config) *Store {
	return &Store{
		nextSeq:    1,
		maxRecords: cfg.MaxRecords,
	}
}

func (s *Store) Append(ctx context.Context, rec *ledger.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Seq = s.nextSeq
	s.nextSeq++
	s.records = append(s.records, *rec)

	if s.maxRecords > 0 && len(s.records) > s.maxRecords {
		evict := len(s.records) - s.maxRecords
		// Copy down so the backing array does not grow forever.
		n := copy(s.records, s.records[evict:])
		clear(s.records[n:])
		s.records = s.records[:n]
	}
	return nil
}

func (s *Store) Get(ctx context.Context, seq uint64) (ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.records), func(i int) bool {
		return s.records[i].Seq >= seq
	})
	if i == len(s.records) || s.records[i].Seq != seq {
		return ledger.Record{}, ledger.ErrNotFound
	}
	return s.records[i], nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]ledger.Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *Store) BySession(ctx context.Context, id uuid.UUID) ([]ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Record
	for _, rec := range s.records {
		if rec.SessionID == id {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Scan iterates over a snapshot, so fn may call back into the store.
func (s *Store) Scan(ctx context.Context, fn func(ledger.Record) error) error {
	s.mu.RLock()
	snapshot := make([]ledger.Record, len(s.records))
	copy(snapshot, s.records)
	s.mu.RUnlock()

	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
