package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/authmachine"
	"github.com/MrEthical07/authmachine/providertest"
)

const loadIdentityPoolID = "us-east-1:00000000-0000-0000-0000-00000000load"

type recorder struct {
	mu      sync.Mutex
	samples map[string][]time.Duration
	fails   map[string]int64
}

func newRecorder() *recorder {
	return &recorder{
		samples: make(map[string][]time.Duration),
		fails:   make(map[string]int64),
	}
}

func (r *recorder) time(phase string, fn func() error) error {
	t0 := time.Now()
	err := fn()
	d := time.Since(t0)

	r.mu.Lock()
	r.samples[phase] = append(r.samples[phase], d)
	if err != nil {
		r.fails[phase]++
	}
	r.mu.Unlock()
	return err
}

func main() {
	var (
		users       = flag.Int("users", 200, "number of users, one engine each")
		concurrency = flag.Int("concurrency", 32, "number of users driven at once")
		fetches     = flag.Int("fetches", 20, "cached session fetches per user")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "am", "credential key prefix")
		latency     = flag.Duration("provider-latency", 0, "delay added to every provider call")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *fetches < 0 {
		fmt.Fprintln(os.Stderr, "users and concurrency must be > 0, fetches >= 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	dir := providertest.New(providertest.Options{Delay: *latency})
	fmt.Printf("seeding %d users...\n", *users)
	for i := 0; i < *users; i++ {
		dir.AddUser(usernameFor(i), passwordFor(i))
	}

	rec := newRecorder()
	start := time.Now()

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)
	for i := 0; i < *users; i++ {
		g.Go(func() error {
			return runUser(ctx, client, dir, *prefix, i, *fetches, rec)
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
	total := time.Since(start)

	fmt.Println("---- results ----")
	for _, phase := range []string{"build", "sign_in", "fetch", "refresh", "sign_out"} {
		printStats(phase, computeStats(total, rec.samples[phase], rec.fails[phase]))
	}
}

// runUser drives one engine through a full session. Operation failures are
// recorded; only a failed build aborts the run.
func runUser(ctx context.Context, client redis.UniversalClient, dir *providertest.Directory, prefix string, i, fetches int, rec *recorder) error {
	pool := dir.Pool()
	cfg := authmachine.DefaultConfig()
	cfg.UserPool = authmachine.UserPoolConfig{PoolID: pool.PoolID, AppClientID: pool.AppClientID, Region: pool.Region}
	cfg.IdentityPool = authmachine.IdentityPoolConfig{PoolID: loadIdentityPoolID, Region: pool.Region}
	cfg.CredentialStore.RedisPrefix = prefix
	cfg.CredentialStore.Namespace = fmt.Sprintf("user-%d", i)
	cfg.Logging.Level = "error"

	var engine *authmachine.Engine
	err := rec.time("build", func() error {
		var err error
		engine, err = authmachine.New().
			WithConfig(cfg).
			WithUserPoolClient(dir).
			WithIdentityPoolClient(dir).
			WithRedis(client).
			Build()
		return err
	})
	if err != nil {
		return fmt.Errorf("build engine %d: %w", i, err)
	}
	defer engine.Close()

	err = rec.time("sign_in", func() error {
		_, err := engine.SignIn(ctx, authmachine.SignInInput{Username: usernameFor(i), Password: passwordFor(i)})
		return err
	})
	if err != nil {
		return nil
	}

	for j := 0; j < fetches; j++ {
		_ = rec.time("fetch", func() error {
			_, err := engine.FetchAuthSession(ctx, authmachine.FetchAuthSessionOptions{})
			return err
		})
	}
	_ = rec.time("refresh", func() error {
		_, err := engine.FetchAuthSession(ctx, authmachine.FetchAuthSessionOptions{ForceRefresh: true})
		return err
	})
	_ = rec.time("sign_out", func() error {
		_, err := engine.SignOut(ctx, authmachine.SignOutOptions{})
		return err
	})
	return nil
}

func usernameFor(i int) string { return fmt.Sprintf("load-user-%d", i) }

func passwordFor(i int) string { return fmt.Sprintf("load-password-%06d", i) }

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
