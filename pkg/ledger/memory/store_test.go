package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/pkg/ledger"
	ledgertesting "github.com/marmos91/tinymmo/pkg/ledger/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	suite := &ledgertesting.StoreTestSuite{
		NewStore: func(t *testing.T) ledger.Store {
			return New(Config{})
		},
	}
	suite.Run(t)
}

func TestMaxRecordsEvictsOldest(t *testing.T) {
	store := New(Config{MaxRecords: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := ledger.Record{Kind: ledger.KindConnect, SessionID: uuid.New()}
		require.NoError(t, store.Append(ctx, &rec))
	}

	assert.Equal(t, 3, store.Len())

	_, err := store.Get(ctx, 2)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	got, err := store.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Seq)

	recent, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, uint64(5), recent[0].Seq)
}
