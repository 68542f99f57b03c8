package authmachine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/providertest"
)

const testIdentityPoolID = "us-east-1:00000000-0000-0000-0000-000000000000"

func testConfig(dir *providertest.Directory, withIdentityPool bool) Config {
	pool := dir.Pool()
	cfg := DefaultConfig()
	cfg.UserPool = UserPoolConfig{
		PoolID:      pool.PoolID,
		AppClientID: pool.AppClientID,
		Region:      pool.Region,
	}
	if withIdentityPool {
		cfg.IdentityPool = IdentityPoolConfig{PoolID: testIdentityPoolID, Region: pool.Region}
	}
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, dir *providertest.Directory, store credstore.Store, opts ...func(*Builder)) *Engine {
	t.Helper()

	b := New().
		WithConfig(cfg).
		WithUserPoolClient(dir).
		WithIdentityPoolClient(dir).
		WithCredentialStore(store).
		WithLogger(slog.New(slog.DiscardHandler))
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func signInAlice(t *testing.T, ctx context.Context, engine *Engine) SignInResult {
	t.Helper()
	res, err := engine.SignIn(ctx, SignInInput{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !res.IsSignedIn() {
		t.Fatalf("expected DONE, got %s", res.NextStep)
	}
	return res
}

// testClock is a settable clock shared by the engine and the directory.
type testClock struct {
	nanos atomic.Int64
}

func newTestClock() *testClock {
	c := &testClock{}
	c.nanos.Store(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *testClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

func (c *testClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}
