package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-quest/internal/model"
)

func TestCheckpointManager_CreateListDelete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		txn := newTestTransaction(1, model.TransactionIncome, fmt.Sprintf("%d", 100+i), time.Now(), nil)
		require.NoError(t, store.CreateTransaction(ctx, txn))
	}

	cm, err := store.Checkpoints()
	require.NoError(t, err)

	info, err := cm.Create(ctx, "before-import", "manual")
	require.NoError(t, err)
	assert.Equal(t, "before-import", info.ID)
	assert.Equal(t, 3, info.RowCounts["transactions"])
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.Positive(t, info.FileSize)
	assert.False(t, info.IsAuto)

	_, err = cm.Create(ctx, "before-import", "again")
	assert.ErrorIs(t, err, ErrCheckpointExists)

	list, err := cm.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "manual", list[0].Description)

	got, err := cm.Info(ctx, "before-import")
	require.NoError(t, err)
	assert.Equal(t, info.FileSize, got.FileSize)

	require.NoError(t, cm.Delete(ctx, "before-import"))
	err = cm.Delete(ctx, "before-import")
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
	_, err = cm.Info(ctx, "before-import")
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestCheckpointManager_RejectsBadIDs(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cm, err := store.Checkpoints()
	require.NoError(t, err)

	for _, id := range []string{"../escape", "a/b", "it's", "x;y"} {
		_, err := cm.Create(ctx, id, "")
		assert.ErrorIs(t, err, ErrInvalidCheckpointID, id)
		assert.ErrorIs(t, cm.Restore(ctx, id), ErrInvalidCheckpointID, id)
	}
}

func TestCheckpointManager_Restore(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	kept := newTestTransaction(1, model.TransactionIncome, "100", time.Now(), nil)
	require.NoError(t, store.CreateTransaction(ctx, kept))

	cm, err := store.Checkpoints()
	require.NoError(t, err)
	_, err = cm.Create(ctx, "snapshot", "")
	require.NoError(t, err)

	lost := newTestTransaction(1, model.TransactionIncome, "200", time.Now(), nil)
	require.NoError(t, store.CreateTransaction(ctx, lost))

	require.NoError(t, cm.Restore(ctx, "snapshot"))

	reopened, err := NewSQLiteStorage(store.dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	_, err = reopened.GetTransaction(ctx, kept.ID)
	require.NoError(t, err)
	_, err = reopened.GetTransaction(ctx, lost.ID)
	assert.Error(t, err)
}

func TestCheckpointManager_AutoCheckpointPrunes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cm, err := store.Checkpoints()
	require.NoError(t, err)

	for i := 0; i < maxAutoCheckpoints+2; i++ {
		// Distinct prefixes keep IDs unique within the same second.
		_, err := cm.AutoCheckpoint(ctx, fmt.Sprintf("import%d", i))
		require.NoError(t, err)
	}

	list, err := cm.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, maxAutoCheckpoints)
	for _, cp := range list {
		assert.True(t, cp.IsAuto)
	}
}
