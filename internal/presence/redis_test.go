package presence

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, RedisConfig{URL: url})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisStore(rdb, "pushrelay:test:"+uuid.NewString())
	t.Cleanup(func() { _ = store.Clear(context.Background()) })
	return store
}

func TestRedisStoreOnlineOffline(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.MarkOnline(ctx, "alice"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}
	if err := store.MarkOnline(ctx, "alice"); err != nil {
		t.Fatalf("MarkOnline again: %v", err)
	}
	if err := store.MarkOnline(ctx, "bob"); err != nil {
		t.Fatalf("MarkOnline bob: %v", err)
	}

	online, err := store.Online(ctx)
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if len(online) != 2 {
		t.Fatalf("Online = %v, want two members", online)
	}

	if err := store.MarkOffline(ctx, "alice"); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	online, err = store.Online(ctx)
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if len(online) != 1 || online[0] != "bob" {
		t.Errorf("Online = %v, want [bob]", online)
	}
}

func TestNewRedisClientBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{URL: "not-a-url"})
	if err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestNewRedisStoreDefaultKey(t *testing.T) {
	s := NewRedisStore(nil, "")
	if s.key != DefaultKey {
		t.Errorf("key = %q, want %q", s.key, DefaultKey)
	}
}
