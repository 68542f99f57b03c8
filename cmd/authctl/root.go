package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authmachine"
	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/provider/cognito"
	"github.com/MrEthical07/authmachine/providertest"
	"github.com/MrEthical07/authmachine/state"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	envPrefix  string
	redisAddr  string
	namespace  string
	timeout    time.Duration

	local      bool
	localUsers []string
}

// app is the per-invocation runtime built lazily by commands that need an
// engine.
type app struct {
	opts   *globalOptions
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	engine  *authmachine.Engine
	cleanup []func()
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	a := &app{opts: opts}

	cmd := &cobra.Command{
		Use:   "authctl",
		Short: "Sign in, inspect and sign out of a Cognito-style user pool",
		Long: `authctl runs the authmachine state machine for a single user.

Configuration comes from a YAML file (--config) or from environment
variables named <prefix><SECTION>_<FIELD>, e.g. AUTHMACHINE_USER_POOL_POOL_ID.
With --redis-addr the session survives between invocations.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.in = bufio.NewReader(cmd.InOrStdin())
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	flags.StringVar(&opts.envPrefix, "env-prefix", "AUTHMACHINE_", "environment variable prefix when --config is not set")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "persist the session in this Redis instead of memory")
	flags.StringVar(&opts.namespace, "namespace", "", "credential namespace, overrides the configured one")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout for each operation")
	flags.BoolVar(&opts.local, "local", false, "use an in-memory directory instead of Cognito")
	flags.StringSliceVar(&opts.localUsers, "local-user", nil, "seed the in-memory directory with user:password")

	cmd.AddCommand(
		newSignInCmd(a),
		newSignUpCmd(a),
		newConfirmSignUpCmd(a),
		newResendCodeCmd(a),
		newSessionCmd(a),
		newWhoAmICmd(a),
		newSignOutCmd(a),
		newDeleteUserCmd(a),
		newFederateCmd(a),
		newClearFederationCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

func (a *app) loadConfig() (authmachine.Config, error) {
	var (
		cfg authmachine.Config
		err error
	)
	if a.opts.local {
		cfg = localConfig()
	} else if a.opts.configFile != "" {
		cfg, err = authmachine.LoadConfigFile(a.opts.configFile)
	} else {
		cfg, err = authmachine.LoadConfigFromEnv(a.opts.envPrefix)
	}
	if err != nil {
		return authmachine.Config{}, err
	}
	if a.opts.namespace != "" {
		cfg.CredentialStore.Namespace = a.opts.namespace
	}
	return cfg, nil
}

func localConfig() authmachine.Config {
	pool := providertest.DefaultPool()
	cfg := authmachine.DefaultConfig()
	cfg.UserPool = authmachine.UserPoolConfig{PoolID: pool.PoolID, AppClientID: pool.AppClientID, Region: pool.Region}
	cfg.IdentityPool = authmachine.IdentityPoolConfig{PoolID: pool.Region + ":local-identity-pool", Region: pool.Region}
	cfg.Logging.Level = "warn"
	return cfg
}

// engineFor builds the engine on first use.
func (a *app) engineFor(ctx context.Context) (*authmachine.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	b := authmachine.New().WithConfig(cfg)
	if err := a.wireProviders(ctx, cfg, b); err != nil {
		return nil, err
	}

	if a.opts.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: a.opts.redisAddr})
		a.cleanup = append(a.cleanup, func() { _ = rdb.Close() })
		b.WithRedis(rdb)
	} else {
		b.WithCredentialStore(credstore.NewMemoryStore())
	}

	engine, err := b.Build()
	if err != nil {
		return nil, err
	}
	a.engine = engine
	a.cleanup = append(a.cleanup, engine.Close)
	return engine, nil
}

func (a *app) wireProviders(ctx context.Context, cfg authmachine.Config, b *authmachine.Builder) error {
	if a.opts.local {
		dir := providertest.New(providertest.Options{AutoConfirm: true, AllowGuests: true})
		for _, spec := range a.opts.localUsers {
			username, password, ok := strings.Cut(spec, ":")
			if !ok || username == "" {
				return fmt.Errorf("invalid --local-user %q, want user:password", spec)
			}
			dir.AddUser(username, password)
		}
		b.WithUserPoolClient(dir).WithIdentityPoolClient(dir)
		return nil
	}

	if cfg.UserPool.PoolID != "" {
		up, err := cognito.NewUserPool(ctx, state.UserPoolConfiguration{
			PoolID:          cfg.UserPool.PoolID,
			AppClientID:     cfg.UserPool.AppClientID,
			AppClientSecret: cfg.UserPool.AppClientSecret,
			Region:          cfg.UserPool.Region,
			Endpoint:        cfg.UserPool.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("user pool client: %w", err)
		}
		b.WithUserPoolClient(up)
	}
	if cfg.IdentityPool.PoolID != "" {
		ip, err := cognito.NewIdentityPool(ctx, state.IdentityPoolConfiguration{
			PoolID: cfg.IdentityPool.PoolID,
			Region: cfg.IdentityPool.Region,
		})
		if err != nil {
			return fmt.Errorf("identity pool client: %w", err)
		}
		b.WithIdentityPoolClient(ip)
	}
	return nil
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
	a.engine = nil
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.opts.timeout)
}

// prompt reads one line from stdin after printing label to stderr.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.errOut, label)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
