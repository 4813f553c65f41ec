// Package testing provides a contract test suite for ledger.Store
// implementations.
package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the ledger.Store contract, so it can be reused across
// implementations (memory, badger).
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &ledgertesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) ledger.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test. The suite closes
	// it when the test ends.
	NewStore func(t *testing.T) ledger.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("AppendAssignsSequence", suite.testAppendAssignsSequence)
	t.Run("Get", suite.testGet)
	t.Run("Recent", suite.testRecent)
	t.Run("BySession", suite.testBySession)
	t.Run("Scan", suite.testScan)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *StoreTestSuite) newStore(t *testing.T) ledger.Store {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// fixture returns a record with the fields a store must round-trip.
func fixture(kind ledger.Kind, id uuid.UUID, tick uint64) ledger.Record {
	rec := ledger.Record{
		Kind:      kind,
		SessionID: id,
		Addr:      "10.0.0.1:5000",
		Slot:      3,
		Tick:      tick,
		Time:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if kind == ledger.KindDisconnect {
		rec.Reason = "timeout"
		rec.Stats = &ledger.Stats{ConnectedTick: 1, DurationTicks: tick - 1, Accepted: 7, Sent: 9}
	}
	return rec
}

func (suite *StoreTestSuite) append(t *testing.T, store ledger.Store, recs ...ledger.Record) []ledger.Record {
	t.Helper()
	out := make([]ledger.Record, 0, len(recs))
	for _, rec := range recs {
		require.NoError(t, store.Append(context.Background(), &rec))
		out = append(out, rec)
	}
	return out
}

func (suite *StoreTestSuite) testAppendAssignsSequence(t *testing.T) {
	store := suite.newStore(t)
	id := uuid.New()

	recs := suite.append(t, store,
		fixture(ledger.KindConnect, id, 1),
		fixture(ledger.KindDisconnect, id, 50),
		fixture(ledger.KindConnect, uuid.New(), 60),
	)

	assert.Equal(t, uint64(1), recs[0].Seq)
	assert.Equal(t, uint64(2), recs[1].Seq)
	assert.Equal(t, uint64(3), recs[2].Seq)
}

func (suite *StoreTestSuite) testGet(t *testing.T) {
	store := suite.newStore(t)
	id := uuid.New()
	recs := suite.append(t, store,
		fixture(ledger.KindConnect, id, 1),
		fixture(ledger.KindDisconnect, id, 50),
	)

	got, err := store.Get(context.Background(), recs[1].Seq)
	require.NoError(t, err)
	assert.Equal(t, recs[1].Kind, got.Kind)
	assert.Equal(t, id, got.SessionID)
	assert.Equal(t, "timeout", got.Reason)
	require.NotNil(t, got.Stats)
	assert.Equal(t, uint64(49), got.Stats.DurationTicks)
	assert.True(t, recs[1].Time.Equal(got.Time))

	_, err = store.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func (suite *StoreTestSuite) testRecent(t *testing.T) {
	store := suite.newStore(t)

	empty, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := uint64(1); i <= 5; i++ {
		suite.append(t, store, fixture(ledger.KindConnect, uuid.New(), i))
	}

	recent, err := store.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(5), recent[0].Seq)
	assert.Equal(t, uint64(4), recent[1].Seq)

	all, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func (suite *StoreTestSuite) testBySession(t *testing.T) {
	store := suite.newStore(t)
	a, b := uuid.New(), uuid.New()

	suite.append(t, store,
		fixture(ledger.KindConnect, a, 1),
		fixture(ledger.KindConnect, b, 2),
		fixture(ledger.KindDisconnect, a, 30),
	)

	recs, err := store.BySession(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ledger.KindConnect, recs[0].Kind)
	assert.Equal(t, ledger.KindDisconnect, recs[1].Kind)

	none, err := store.BySession(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func (suite *StoreTestSuite) testScan(t *testing.T) {
	store := suite.newStore(t)
	for i := uint64(1); i <= 4; i++ {
		suite.append(t, store, fixture(ledger.KindConnect, uuid.New(), i))
	}

	var seqs []uint64
	require.NoError(t, store.Scan(context.Background(), func(rec ledger.Record) error {
		seqs = append(seqs, rec.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3, 4}, seqs)

	stop := errors.New("stop")
	visited := 0
	err := store.Scan(context.Background(), func(rec ledger.Record) error {
		visited++
		if visited == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, visited)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := suite.newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := fixture(ledger.KindConnect, uuid.New(), 1)
	assert.ErrorIs(t, store.Append(ctx, &rec), context.Canceled)
}
