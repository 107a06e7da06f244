package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "td", "clerk", ttl)
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession() *Session {
	now := time.Now()
	return &Session{
		AccessToken: "T1",
		UserID:      "u-1",
		Role:        "superadmin",
		Name:        "Registrar",
		PJNumber:    "PJ-42",
		StoredAt:    now.Unix(),
		ExpiresAt:   now.Add(15 * time.Minute).Unix(),
	}
}

func TestRedisStoreSaveLoadClear(t *testing.T) {
	store, _, done := newRedisStoreTest(t, time.Hour)
	defer done()
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	sess := testSession()
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *got != *sess {
		t.Fatalf("loaded session mismatch: got %+v want %+v", got, sess)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestRedisStoreAppliesTTL(t *testing.T) {
	store, mr, done := newRedisStoreTest(t, time.Minute)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testSession()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL(store.key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected key ttl %s", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session to expire with key ttl, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, done := newRedisStoreTest(t, 0)
	defer done()
	mr.Close()

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := store.Save(context.Background(), testSession()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable on save, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := testSession()
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	sess.AccessToken = "mutated"

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != "T1" {
		t.Fatalf("store aliased caller's session: %q", got.AccessToken)
	}
	got.AccessToken = "mutated-again"
	again, _ := store.Load(ctx)
	if again.AccessToken != "T1" {
		t.Fatalf("store aliased returned session: %q", again.AccessToken)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionExpiresWithin(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := &Session{ExpiresAt: now.Add(10 * time.Minute).Unix()}
	if s.ExpiresWithin(now, time.Minute) {
		t.Fatal("token ten minutes out must not expire within a minute")
	}
	if !s.ExpiresWithin(now, 10*time.Minute) {
		t.Fatal("token must expire within its own lifetime")
	}
	if !(&Session{ExpiresAt: now.Add(-time.Second).Unix()}).ExpiresWithin(now, 0) {
		t.Fatal("expected expired session")
	}
	if (&Session{}).ExpiresWithin(now, time.Hour) {
		t.Fatal("session without expiry must not expire")
	}
	var nilSession *Session
	if nilSession.ExpiresWithin(now, time.Hour) {
		t.Fatal("nil session must not expire")
	}
}
