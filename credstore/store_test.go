package credstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authmachine/state"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "am", "app", 0)
	return store, mr, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testCredentials() state.Credentials {
	now := time.Now().UTC().Truncate(time.Second)
	return state.UserPoolOnly(state.SignedInData{
		UserID:     "sub-1",
		Username:   "alice",
		SignedInAt: now,
		Method:     state.MethodSRP,
		Tokens: state.UserPoolTokens{
			IDToken:      "id-token",
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			ExpiresAt:    now.Add(time.Hour),
		},
	})
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _, _, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if _, err := store.Retrieve(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	want := testCredentials()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Retrieve(ctx)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.Kind != want.Kind || got.SignedIn.Username != "alice" || !got.SignedIn.Tokens.ExpiresAt.Equal(want.SignedIn.Tokens.ExpiresAt) {
		t.Fatalf("retrieved %+v, want %+v", got, want)
	}
}

func TestRedisStoreDeleteIdempotent(t *testing.T) {
	store, mr, _, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testCredentials()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("am:app:credentials") {
		t.Fatal("expected record under namespaced key")
	}
	if err := store.Delete(ctx); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.Retrieve(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedisStoreNamespacesAreIsolated(t *testing.T) {
	store, _, rdb, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()
	other := NewRedisStore(rdb, "am", "other", 0)

	if err := store.Save(ctx, testCredentials()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := other.Retrieve(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other namespace to be empty, got %v", err)
	}
}

func TestRedisStoreTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisStore(rdb, "am", "", time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, testCredentials()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("am:default:credentials"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := store.Retrieve(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record to expire, got %v", err)
	}
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	store, _, rdb, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := rdb.Set(ctx, store.key(), []byte{9, '{', '}'}, 0).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := store.Retrieve(ctx)
	if !errors.Is(err, ErrCorrupt) || !strings.Contains(err.Error(), "unsupported schema version") {
		t.Fatalf("expected corrupt schema error, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	store := NewRedisStore(rdb, "am", "app", 0)
	mr.Close()

	ctx := context.Background()
	if err := store.Save(ctx, testCredentials()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable on save, got %v", err)
	}
	if _, err := store.Retrieve(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable on retrieve, got %v", err)
	}
	if _, err := store.Ping(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable on ping, got %v", err)
	}
}

func TestDecodeRejectsIncompleteShapes(t *testing.T) {
	bad := []state.Credentials{
		{Kind: state.CredentialsUserPoolOnly},
		{Kind: state.CredentialsIdentityPoolOnly, IdentityID: "id"},
		{Kind: state.CredentialsIdentityPoolWithFederation, IdentityID: "id", AWS: &state.AWSCredentials{}},
		{Kind: state.CredentialsKind(42)},
	}
	for _, c := range bad {
		data, err := Encode(c)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("Decode(%s) error = %v, want ErrCorrupt", c.Kind, err)
		}
	}
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("disk full")

	store.Fail(OpSave, boom)
	if err := store.Save(ctx, testCredentials()); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := store.Retrieve(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed save must not persist, got %v", err)
	}
	if err := store.Save(ctx, testCredentials()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := store.Retrieve(ctx)
	if err != nil || !got.HasUserPool() {
		t.Fatalf("retrieve = %+v, %v", got, err)
	}
	if err := store.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
