package authmachine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authmachine/state"
)

// Config is the engine configuration. At least one of UserPool and
// IdentityPool must carry a pool ID.
type Config struct {
	UserPool        UserPoolConfig        `yaml:"user_pool" envPrefix:"USER_POOL_"`
	IdentityPool    IdentityPoolConfig    `yaml:"identity_pool" envPrefix:"IDENTITY_POOL_"`
	Session         SessionConfig         `yaml:"session" envPrefix:"SESSION_"`
	Dispatcher      DispatcherConfig      `yaml:"dispatcher" envPrefix:"DISPATCHER_"`
	CredentialStore CredentialStoreConfig `yaml:"credential_store" envPrefix:"CREDENTIAL_STORE_"`
	Audit           AuditConfig           `yaml:"audit" envPrefix:"AUDIT_"`
	Metrics         MetricsConfig         `yaml:"metrics" envPrefix:"METRICS_"`
	Logging         LoggingConfig         `yaml:"logging" envPrefix:"LOG_"`
}

/*
====================================
POOL CONFIG
====================================
*/

// UserPoolConfig identifies the user pool app client. An empty PoolID
// disables the user pool.
type UserPoolConfig struct {
	PoolID          string `yaml:"pool_id" env:"POOL_ID"`
	AppClientID     string `yaml:"app_client_id" env:"APP_CLIENT_ID"`
	AppClientSecret string `yaml:"app_client_secret" env:"APP_CLIENT_SECRET"`
	Region          string `yaml:"region" env:"REGION"`
	// Endpoint overrides the service host, e.g. "localhost:9229" for a local
	// emulator. It carries no scheme or path; https is always used.
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// IdentityPoolConfig identifies the identity pool. An empty PoolID disables
// federation and AWS credentials.
type IdentityPoolConfig struct {
	PoolID string `yaml:"pool_id" env:"POOL_ID"`
	Region string `yaml:"region" env:"REGION"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls credential refresh.
type SessionConfig struct {
	// ExpiryBuffer refreshes tokens and AWS credentials this long before they
	// expire.
	ExpiryBuffer time.Duration `yaml:"expiry_buffer" env:"EXPIRY_BUFFER"`
}

// DispatcherConfig sizes the state machine queues.
type DispatcherConfig struct {
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
	// ListenerBacklog drops a listener that falls this many states behind. A
	// negative value disables the limit.
	ListenerBacklog int `yaml:"listener_backlog" env:"LISTENER_BACKLOG"`
}

// CredentialStoreConfig names the Redis key used when the engine builds its
// own store from a Redis client.
type CredentialStoreConfig struct {
	RedisPrefix string `yaml:"redis_prefix" env:"REDIS_PREFIX"`
	// Namespace separates several engines sharing one Redis, typically one
	// per device or per end user.
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// TTL expires the stored record. Zero keeps it until sign-out.
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls hub event delivery.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
	// DropIfFull drops events at once when the sink falls behind. Otherwise
	// the dispatch loop waits up to MaxWait per event before dropping it.
	DropIfFull bool          `yaml:"drop_if_full" env:"DROP_IF_FULL"`
	MaxWait    time.Duration `yaml:"max_wait" env:"MAX_WAIT"`
}

type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"ENABLED"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms" env:"ENABLE_LATENCY_HISTOGRAMS"`
}

// LoggingConfig selects the handler built by [NewLogger].
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // "json" (default) or "text"
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			ExpiryBuffer: 2 * time.Minute,
		},
		Dispatcher: DispatcherConfig{
			QueueSize:       64,
			ListenerBacklog: 1024,
		},
		CredentialStore: CredentialStoreConfig{
			RedisPrefix: "am",
			Namespace:   "default",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
			MaxWait:    25 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultConfig returns the configuration used by [New] before any option
// is applied. No pool is set.
func DefaultConfig() Config {
	return defaultConfig()
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Pools
	if c.UserPool.PoolID == "" && c.IdentityPool.PoolID == "" {
		return errors.New("at least one of UserPool PoolID and IdentityPool PoolID must be set")
	}
	if c.UserPool.PoolID != "" {
		if c.UserPool.AppClientID == "" {
			return errors.New("UserPool AppClientID is required when PoolID is set")
		}
		if c.UserPool.Region == "" {
			return errors.New("UserPool Region is required when PoolID is set")
		}
		if c.UserPool.Endpoint != "" {
			if _, err := state.ResolveEndpoint(c.UserPool.Endpoint); err != nil {
				return fmt.Errorf("UserPool Endpoint: %w", err)
			}
		}
	}
	if c.IdentityPool.PoolID != "" && c.IdentityPool.Region == "" {
		return errors.New("IdentityPool Region is required when PoolID is set")
	}

	// Session
	if c.Session.ExpiryBuffer < 0 {
		return errors.New("Session ExpiryBuffer must be >= 0")
	}

	// Dispatcher
	if c.Dispatcher.QueueSize <= 0 {
		return errors.New("Dispatcher QueueSize must be > 0")
	}

	// Credential store
	if strings.ContainsAny(c.CredentialStore.RedisPrefix, " \t\n") {
		return errors.New("CredentialStore RedisPrefix must not contain whitespace")
	}
	if c.CredentialStore.TTL < 0 {
		return errors.New("CredentialStore TTL must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull && (c.Audit.MaxWait <= 0 || c.Audit.MaxWait > time.Second) {
		return errors.New("Audit MaxWait must be in (0, 1s] when DropIfFull is false")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Logging
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return errors.New("Logging Format must be json or text")
	}

	return nil
}

// authConfiguration converts the pool sections into the value carried by
// the configure event.
func (c Config) authConfiguration() state.AuthConfiguration {
	var out state.AuthConfiguration
	if c.UserPool.PoolID != "" {
		out.UserPool = &state.UserPoolConfiguration{
			PoolID:          c.UserPool.PoolID,
			AppClientID:     c.UserPool.AppClientID,
			AppClientSecret: c.UserPool.AppClientSecret,
			Region:          c.UserPool.Region,
			Endpoint:        c.UserPool.Endpoint,
		}
	}
	if c.IdentityPool.PoolID != "" {
		out.IdentityPool = &state.IdentityPoolConfiguration{
			PoolID: c.IdentityPool.PoolID,
			Region: c.IdentityPool.Region,
		}
	}
	return out
}
