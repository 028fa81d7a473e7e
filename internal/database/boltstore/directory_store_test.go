package boltstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustline/internal/moderation"
)

func TestDirectoryStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t).DirectoryStore()

	user := moderation.User{
		ID:       "user-1",
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     moderation.RoleReporter,
		IsActive: true,
	}
	require.NoError(t, store.SaveUser(ctx, user))

	t.Run("find by id", func(t *testing.T) {
		got, err := store.FindByID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", got.Name)
		assert.True(t, got.IsActive)

		_, err = store.FindByID(ctx, "ghost")
		assert.ErrorIs(t, err, moderation.ErrNotFound)
	})

	t.Run("find by email", func(t *testing.T) {
		got, err := store.FindByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.ID)

		_, err = store.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, moderation.ErrNotFound)
	})

	t.Run("set blocked", func(t *testing.T) {
		require.NoError(t, store.SetBlocked(ctx, "user-1", true))
		got, err := store.FindByID(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, got.IsBlocked)

		require.NoError(t, store.SetBlocked(ctx, "user-1", false))
		got, err = store.FindByID(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, got.IsBlocked)
	})

	t.Run("set active", func(t *testing.T) {
		require.NoError(t, store.SetActive(ctx, "user-1", false))
		got, err := store.FindByID(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("set role", func(t *testing.T) {
		require.NoError(t, store.SetRole(ctx, "user-1", moderation.RoleAdmin))
		got, err := store.FindByID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, moderation.RoleAdmin, got.Role)
	})

	t.Run("update missing user", func(t *testing.T) {
		assert.ErrorIs(t, store.SetBlocked(ctx, "ghost", true), moderation.ErrNotFound)
		assert.ErrorIs(t, store.SetRole(ctx, "ghost", moderation.RoleAdmin), moderation.ErrNotFound)
	})
}
