package rbac

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestDecisionCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewDecisionCache(client, time.Minute)

	userID := uuid.New()
	_, ok := cache.Get(ctx, userID, "view_users")
	require.False(t, ok)

	cache.Set(ctx, userID, "view_users", true)
	cache.Set(ctx, userID, "manage_users", false)

	granted, ok := cache.Get(ctx, userID, "view_users")
	require.True(t, ok)
	require.True(t, granted)

	granted, ok = cache.Get(ctx, userID, "manage_users")
	require.True(t, ok)
	require.False(t, granted)
}

func TestDecisionCacheInvalidateUserSweepsOnlyThatUser(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewDecisionCache(client, time.Minute)

	alice := uuid.New()
	bob := uuid.New()
	cache.Set(ctx, alice, "view_users", true)
	cache.Set(ctx, alice, "export_data", true)
	cache.Set(ctx, bob, "view_users", true)

	require.NoError(t, cache.InvalidateUser(ctx, alice))

	_, ok := cache.Get(ctx, alice, "view_users")
	require.False(t, ok)
	_, ok = cache.Get(ctx, alice, "export_data")
	require.False(t, ok)

	granted, ok := cache.Get(ctx, bob, "view_users")
	require.True(t, ok)
	require.True(t, granted)
}

func TestDecisionCacheNilSafe(t *testing.T) {
	ctx := context.Background()
	var cache *DecisionCache

	_, ok := cache.Get(ctx, uuid.New(), "view_users")
	require.False(t, ok)
	cache.Set(ctx, uuid.New(), "view_users", true)
	require.NoError(t, cache.InvalidateUser(ctx, uuid.New()))
}
