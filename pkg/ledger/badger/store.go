// Package badger implements a persistent ledger.Store on BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/pkg/ledger"
)

// Config configures the BadgerDB ledger.
type Config struct {
	// DBPath is the directory where BadgerDB stores its files.
	DBPath string `mapstructure:"db_path" validate:"required"`

	// InMemory runs BadgerDB without touching disk. Used by tests.
	InMemory bool `mapstructure:"in_memory"`
}

// Store persists ledger records in BadgerDB.
//
// Records are JSON values under sequence keys (see keys.go). Appends are
// serialized by mu so sequence numbers are gapless; reads go straight to
// Badger's MVCC snapshots.
type Store struct {
	db *badger.DB

	mu      sync.Mutex
	lastSeq uint64
}

// New opens (or creates) the ledger database.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.DBPath)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None) // Records are small

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	store := &Store{db: db}
	if err := store.loadLastSeq(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read last ledger sequence: %w", err)
	}
	return store, nil
}

// loadLastSeq finds the highest stored sequence with a reverse scan.
func (s *Store) loadLastSeq() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRecord)
		it.Seek(append([]byte(prefixRecord), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff))
		if it.ValidForPrefix(prefix) {
			s.lastSeq = seqFromRecordKey(it.Item().Key())
		}
		return nil
	})
}

func (s *Store) Append(ctx context.Context, rec *ledger.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.lastSeq + 1
	rec.Seq = seq

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode ledger record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyRecord(seq), data); err != nil {
			return err
		}
		return txn.Set(keySession(rec.SessionID, seq), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to append ledger record: %w", err)
	}

	s.lastSeq = seq
	return nil
}

func (s *Store) Get(ctx context.Context, seq uint64) (ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Record{}, err
	}

	var rec ledger.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, seq)
		return err
	})
	return rec, err
}

func getRecord(txn *badger.Txn, seq uint64) (ledger.Record, error) {
	var rec ledger.Record

	item, err := txn.Get(keyRecord(seq))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, ledger.ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("failed to get ledger record %d: %w", seq, err)
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, fmt.Errorf("failed to decode ledger record %d: %w", seq, err)
	}
	return rec, nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	last := s.lastSeq
	s.mu.Unlock()

	var out []ledger.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRecord)
		for it.Seek(keyRecord(last)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec ledger.Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent ledger records: %w", err)
	}
	return out, nil
}

func (s *Store) BySession(ctx context.Context, id uuid.UUID) ([]ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []ledger.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := keySessionPrefix(id)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rec, err := getRecord(txn, seqFromSessionKey(it.Item().Key()))
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger records for session %s: %w", id, err)
	}
	return out, nil
}

func (s *Store) Scan(ctx context.Context, fn func(ledger.Record) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixRecord)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec ledger.Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("failed to decode ledger record: %w", err)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
