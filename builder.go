package authmachine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/internal/audit"
	"github.com/MrEthical07/authmachine/internal/flows"
	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config

	userPool     provider.UserPoolClient
	identityPool provider.IdentityPoolClient
	store        credstore.Store
	redis        redis.UniversalClient

	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithUserPoolClient sets the user pool client. It is required when a user
// pool is configured.
func (b *Builder) WithUserPoolClient(c provider.UserPoolClient) *Builder {
	b.userPool = c
	return b
}

// WithIdentityPoolClient sets the identity pool client. It is required when
// an identity pool is configured.
func (b *Builder) WithIdentityPoolClient(c provider.IdentityPoolClient) *Builder {
	b.identityPool = c
	return b
}

// WithCredentialStore sets the store holding the persisted session. It takes
// precedence over WithRedis.
func (b *Builder) WithCredentialStore(s credstore.Store) *Builder {
	b.store = s
	return b
}

// WithRedis persists the session in Redis under the configured prefix and
// namespace.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger replaces the logger built from the Logging section.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the receiver of lifecycle events and enables delivery.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for expiry checks and session timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and collaborators and starts the engine.
// Configuration continues in the background: the persisted session is
// loaded before the first operation proceeds.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	authCfg := cfg.authConfiguration()
	if authCfg.HasUserPool() && b.userPool == nil {
		return nil, ErrMissingUserPoolClient
	}
	if authCfg.HasIdentityPool() && b.identityPool == nil {
		return nil, ErrMissingIdentityPoolClient
	}

	store := b.store
	if store == nil && b.redis != nil {
		store = credstore.NewRedisStore(b.redis, cfg.CredentialStore.RedisPrefix, cfg.CredentialStore.Namespace, cfg.CredentialStore.TTL)
	}
	if store == nil {
		return nil, ErrMissingCredentialStore
	}

	logger := b.logger
	if logger == nil {
		logger = NewLogger(cfg.Logging)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	b.built = true

	metrics := NewMetrics(cfg.Metrics)
	e := &Engine{
		config:   cfg,
		logger:   logger,
		userPool: b.userPool,
		metrics:  metrics,
		now:      now,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			MaxWait:    cfg.Audit.MaxWait,
		}, b.auditSink),
	}

	env := &flows.Environment{
		Config:       authCfg,
		UserPool:     b.userPool,
		IdentityPool: b.identityPool,
		Store:        &meteredStore{Store: store, metrics: metrics},
		Logger:       logger,
		Now:          now,
		ExpiryBuffer: cfg.Session.ExpiryBuffer,
	}

	e.machine = statemachine.New[state.AuthState, *flows.Environment](
		state.AuthNotConfigured{},
		flows.NewResolver(),
		env,
		statemachine.Options[state.AuthState]{
			Logger:          logger,
			QueueSize:       cfg.Dispatcher.QueueSize,
			ListenerBacklog: cfg.Dispatcher.ListenerBacklog,
			Observer:        e.observe,
		},
	)

	if err := e.machine.Send(context.Background(), state.NewAuthEvent(state.ConfigureAuth{Config: authCfg})); err != nil {
		e.Close()
		return nil, fmt.Errorf("configure: %w", err)
	}

	return e, nil
}
