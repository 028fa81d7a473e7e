package boltstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustline/internal/recovery"
)

func makeRecoveryRecord(token string, expiresAt time.Time) recovery.Record {
	return recovery.Record{
		Token:       token,
		Kind:        recovery.KindProject,
		OriginalID:  "proj-1",
		OwnerUserID: "owner-1",
		Snapshot:    []byte(`{"id":"proj-1"}`),
		DeletedAt:   expiresAt.Add(-24 * time.Hour),
		ExpiresAt:   expiresAt,
	}
}

func TestRecoveryStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RecoveryStore()

	rec := makeRecoveryRecord("tok-1", time.Now().Add(time.Hour))
	require.NoError(t, store.Create(ctx, rec))

	got, err := store.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "proj-1", got.OriginalID)
	assert.Equal(t, "owner-1", got.OwnerUserID)
	assert.JSONEq(t, `{"id":"proj-1"}`, string(got.Snapshot))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, recovery.ErrNotFound)
}

func TestRecoveryStoreConsume(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RecoveryStore()
	now := time.Now()

	t.Run("consume removes the record", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, makeRecoveryRecord("tok-live", now.Add(time.Hour))))

		rec, err := store.Consume(ctx, "tok-live", now)
		require.NoError(t, err)
		assert.Equal(t, "proj-1", rec.OriginalID)

		// Single use: the second consume finds nothing
		_, err = store.Consume(ctx, "tok-live", now)
		assert.ErrorIs(t, err, recovery.ErrNotFound)
	})

	t.Run("expired record is not consumable", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, makeRecoveryRecord("tok-old", now.Add(-time.Minute))))

		_, err := store.Consume(ctx, "tok-old", now)
		assert.ErrorIs(t, err, recovery.ErrExpired)

		// Left in place for the sweep
		_, err = store.Get(ctx, "tok-old")
		assert.NoError(t, err)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := store.Consume(ctx, "missing", now)
		assert.ErrorIs(t, err, recovery.ErrNotFound)
	})
}

func TestRecoveryStoreSweepExpired(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RecoveryStore()
	now := time.Now()

	require.NoError(t, store.Create(ctx, makeRecoveryRecord("tok-old-1", now.Add(-2*time.Hour))))
	require.NoError(t, store.Create(ctx, makeRecoveryRecord("tok-old-2", now.Add(-time.Minute))))
	require.NoError(t, store.Create(ctx, makeRecoveryRecord("tok-live", now.Add(time.Hour))))

	removed, err := store.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Get(ctx, "tok-old-1")
	assert.ErrorIs(t, err, recovery.ErrNotFound)
	_, err = store.Get(ctx, "tok-live")
	assert.NoError(t, err)

	// Idempotent: nothing left to sweep
	removed, err = store.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecoveryStoreSweepBoundary(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).RecoveryStore()
	now := time.Now().Truncate(time.Millisecond)

	// Expiring exactly now is expired (restorable requires now < expiresAt)
	require.NoError(t, store.Create(ctx, makeRecoveryRecord("tok-edge", now)))

	removed, err := store.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
