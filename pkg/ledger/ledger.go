// Package ledger keeps an append-only history of session connects and
// disconnects.
//
// The server loop never touches a Store directly: it hands immutable Record
// values to a Recorder, whose goroutine appends them to the Store. Stores are
// safe for concurrent use so the admin API can read while the recorder writes.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/pkg/session"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("ledger record not found")

// Kind is the type of a ledger event.
type Kind string

const (
	KindConnect    Kind = "connect"
	KindDisconnect Kind = "disconnect"
)

// Record is one ledger entry.
type Record struct {
	// Seq is assigned by the store on append. Starts at 1 and increases by
	// one per record.
	Seq uint64 `json:"seq"`

	Kind      Kind      `json:"kind"`
	SessionID uuid.UUID `json:"session_id"`
	Addr      string    `json:"addr"`
	Slot      int       `json:"slot"`
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`

	// Reason and Stats are only set on disconnect records.
	Reason string `json:"reason,omitempty"`
	Stats  *Stats `json:"stats,omitempty"`
}

// Stats summarizes a finished session.
type Stats struct {
	ConnectedTick uint64 `json:"connected_tick"`
	DurationTicks uint64 `json:"duration_ticks"`
	Accepted      uint64 `json:"accepted"`
	Stale         uint64 `json:"stale"`
	Sent          uint64 `json:"sent"`
	SendErrors    uint64 `json:"send_errors"`
}

// Connect builds the record for a session that was just created.
func Connect(s *session.Session, tick uint64, now time.Time) Record {
	return Record{
		Kind:      KindConnect,
		SessionID: s.ID,
		Addr:      s.String(),
		Slot:      s.Slot(),
		Tick:      tick,
		Time:      now,
	}
}

// Disconnect builds the record for a session about to be released.
func Disconnect(s *session.Session, tick uint64, now time.Time) Record {
	return Record{
		Kind:      KindDisconnect,
		SessionID: s.ID,
		Addr:      s.String(),
		Slot:      s.Slot(),
		Tick:      tick,
		Time:      now,
		Reason:    string(s.Reason),
		Stats: &Stats{
			ConnectedTick: s.Stats.ConnectedTick,
			DurationTicks: tick - s.Stats.ConnectedTick,
			Accepted:      s.Stats.Accepted,
			Stale:         s.Stats.Stale,
			Sent:          s.Stats.Sent,
			SendErrors:    s.Stats.SendErrors,
		},
	}
}

// Store persists ledger records. Implementations must be safe for concurrent
// use.
type Store interface {
	// Append assigns rec.Seq and stores the record.
	Append(ctx context.Context, rec *Record) error

	// Get returns the record with the given sequence, or ErrNotFound.
	Get(ctx context.Context, seq uint64) (Record, error)

	// Recent returns up to limit records, newest first. limit <= 0 returns
	// every record.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// BySession returns every record of one session, oldest first.
	BySession(ctx context.Context, id uuid.UUID) ([]Record, error)

	// Scan calls fn for every record, oldest first. Iteration stops at the
	// first error, which Scan returns.
	Scan(ctx context.Context, fn func(Record) error) error

	// Close releases the store's resources.
	Close() error
}
