package cache

import (
	"context"
	"testing"
	"time"

	"TrackTalk/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testCache(t *testing.T) (*ShareCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewShareCache(client, time.Minute), mr
}

func sampleShare() *model.Share {
	expiry := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return &model.Share{
		ID:            7,
		PlaylistID:    3,
		Token:         "f3b1c9d0-0000-4000-8000-000000000000",
		CreatedBy:     10,
		AllowComments: true,
		RequireAuth:   false,
		ExpiresAt:     &expiry,
		IsActive:      true,
	}
}

func TestShareCacheRoundTrip(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()
	share := sampleShare()

	if err := cache.Set(ctx, share); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := cache.Get(ctx, share.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned a miss after Set()")
	}
	if got.ID != share.ID || got.Token != share.Token || !got.AllowComments {
		t.Errorf("cached share = %+v, want the stored record", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(*share.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, share.ExpiresAt)
	}
}

func TestShareCacheMiss(t *testing.T) {
	cache, _ := testCache(t)

	got, err := cache.Get(context.Background(), "unknown-token")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil on a miss", got)
	}
}

func TestShareCacheInvalidate(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()
	share := sampleShare()

	if err := cache.Set(ctx, share); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Invalidate(ctx, share.Token); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	got, err := cache.Get(ctx, share.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("share still cached after Invalidate()")
	}

	// Invalidating an absent entry is a no-op, not an error.
	if err := cache.Invalidate(ctx, "unknown-token"); err != nil {
		t.Errorf("Invalidate(absent) error = %v", err)
	}
}

func TestShareCacheTTL(t *testing.T) {
	cache, mr := testCache(t)
	ctx := context.Background()
	share := sampleShare()

	if err := cache.Set(ctx, share); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, share.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("share still cached after the TTL elapsed")
	}
}
