package authmachine

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/providertest"
	"github.com/MrEthical07/authmachine/state"
)

func TestBuilderRequiresUserPoolClient(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	_, err := New().
		WithConfig(testConfig(dir, false)).
		WithCredentialStore(credstore.NewMemoryStore()).
		Build()
	if !errors.Is(err, ErrMissingUserPoolClient) {
		t.Fatalf("expected ErrMissingUserPoolClient, got %v", err)
	}
}

func TestBuilderRequiresIdentityPoolClient(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	_, err := New().
		WithConfig(testConfig(dir, true)).
		WithUserPoolClient(dir).
		WithCredentialStore(credstore.NewMemoryStore()).
		Build()
	if !errors.Is(err, ErrMissingIdentityPoolClient) {
		t.Fatalf("expected ErrMissingIdentityPoolClient, got %v", err)
	}
}

func TestBuilderRequiresCredentialStore(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	_, err := New().
		WithConfig(testConfig(dir, false)).
		WithUserPoolClient(dir).
		Build()
	if !errors.Is(err, ErrMissingCredentialStore) {
		t.Fatalf("expected ErrMissingCredentialStore, got %v", err)
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	_, err := New().
		WithCredentialStore(credstore.NewMemoryStore()).
		Build()
	if err == nil {
		t.Fatalf("expected invalid config error without pools")
	}
}

func TestBuilderBuildsOnce(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	b := New().
		WithConfig(testConfig(dir, false)).
		WithUserPoolClient(dir).
		WithCredentialStore(credstore.NewMemoryStore()).
		WithLogger(slog.New(slog.DiscardHandler))

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestBuilderConfiguresWithoutIdentityPoolClientWhenUnused(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	engine, err := New().
		WithConfig(testConfig(dir, false)).
		WithUserPoolClient(dir).
		WithCredentialStore(credstore.NewMemoryStore()).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.FetchAuthSession(testContext(t), FetchAuthSessionOptions{}); err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if _, ok := engine.Current().(state.AuthConfigured); !ok {
		t.Fatalf("expected configured state, got %T", engine.Current())
	}
}

func TestBuilderWithRedisPersistsSession(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")

	cfg := testConfig(dir, true)
	cfg.CredentialStore.TTL = time.Hour
	engine, err := New().
		WithConfig(cfg).
		WithUserPoolClient(dir).
		WithIdentityPoolClient(dir).
		WithRedis(rdb).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ctx := testContext(t)
	signInAlice(t, ctx, engine)

	if !mr.Exists("am:default:credentials") {
		t.Fatalf("expected persisted credentials in redis, keys=%v", mr.Keys())
	}
	if ttl := mr.TTL("am:default:credentials"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", ttl)
	}
	engine.Close()

	restored, err := New().
		WithConfig(cfg).
		WithUserPoolClient(dir).
		WithIdentityPoolClient(dir).
		WithRedis(rdb).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer restored.Close()

	user, err := restored.GetCurrentUser(ctx)
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected alice, got %q", user.Username)
	}
}

func TestBuilderStorePrecedesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	store := credstore.NewMemoryStore()
	engine := newTestEngine(t, testConfig(dir, false), dir, store, func(b *Builder) {
		b.WithRedis(rdb)
	})

	signInAlice(t, testContext(t), engine)
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected redis untouched, keys=%v", mr.Keys())
	}
}
