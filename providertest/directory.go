// Package providertest is an in-memory identity provider implementing
// provider.UserPoolClient and provider.IdentityPoolClient.
//
// It issues real signed tokens (package jwt), stores Argon2id password
// verifiers (package password), supports MFA, custom and new-password
// challenges, and lets tests script failures per operation.
package providertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authmachine/jwt"
	"github.com/MrEthical07/authmachine/password"
	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
)

// Op names a provider call for failure scripting and the call log.
type Op string

const (
	OpInitiateSRPAuth           Op = "InitiateSRPAuth"
	OpRespondToPasswordVerifier Op = "RespondToPasswordVerifier"
	OpInitiateUserPasswordAuth  Op = "InitiateUserPasswordAuth"
	OpInitiateCustomAuth        Op = "InitiateCustomAuth"
	OpRespondToAuthChallenge    Op = "RespondToAuthChallenge"
	OpRefreshTokens             Op = "RefreshTokens"
	OpSignUp                    Op = "SignUp"
	OpConfirmSignUp             Op = "ConfirmSignUp"
	OpResendSignUpCode          Op = "ResendSignUpCode"
	OpGlobalSignOut             Op = "GlobalSignOut"
	OpRevokeToken               Op = "RevokeToken"
	OpDeleteUser                Op = "DeleteUser"
	OpGetID                     Op = "GetID"
	OpGetCredentialsForIdentity Op = "GetCredentialsForIdentity"
)

// Options configures a Directory. The zero value is usable.
type Options struct {
	Pool     state.UserPoolConfiguration
	Now      func() time.Time
	TokenTTL time.Duration
	AWSTTL   time.Duration
	Policy   password.Policy
	// AutoConfirm confirms new sign-ups without a code.
	AutoConfirm bool
	// AllowGuests enables identity-pool access without logins.
	AllowGuests bool
	// Delay is added to every call. Useful for exercising cancellation.
	Delay time.Duration
}

type user struct {
	sub          string
	username     string
	email        string
	verifier     string
	confirmed    bool
	code         string
	mfaCode      string
	customAnswer string
	newPassword  bool
}

type pending struct {
	username  string
	challenge state.ChallengeName
	method    state.SignInMethod
}

// Directory is an in-memory user pool and identity pool.
type Directory struct {
	opts   Options
	tokens *jwt.Manager
	hasher *password.Hasher

	mu         sync.Mutex
	users      map[string]*user
	sessions   map[string]pending
	refresh    map[string]string
	access     map[string]string
	identities map[string]string
	known      map[string]bool
	failures   map[Op][]error
	calls      []Op
	codeSeq    int
}

var (
	_ provider.UserPoolClient     = (*Directory)(nil)
	_ provider.IdentityPoolClient = (*Directory)(nil)
)

// DefaultPool is the pool a directory serves when Options.Pool is empty.
func DefaultPool() state.UserPoolConfiguration {
	return state.UserPoolConfiguration{PoolID: "us-east-1_local", AppClientID: "local-client", Region: "us-east-1"}
}

// New builds an empty directory.
func New(opts Options) *Directory {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.AWSTTL <= 0 {
		opts.AWSTTL = time.Hour
	}
	if opts.Pool.PoolID == "" {
		opts.Pool = DefaultPool()
	}
	if opts.Policy == (password.Policy{}) {
		opts.Policy = password.Policy{MinLength: 8}
	}

	tokens, err := jwt.NewManager(jwt.Config{
		TokenTTL:      opts.TokenTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(uuid.NewString() + uuid.NewString()),
		Issuer:        "https://" + opts.Pool.ProviderName(),
		Audience:      opts.Pool.AppClientID,
		Now:           opts.Now,
	})
	if err != nil {
		panic(fmt.Sprintf("providertest: token manager: %v", err))
	}
	hasher, err := password.NewHasher(password.FastConfig())
	if err != nil {
		panic(fmt.Sprintf("providertest: hasher: %v", err))
	}

	return &Directory{
		opts:       opts,
		tokens:     tokens,
		hasher:     hasher,
		users:      make(map[string]*user),
		sessions:   make(map[string]pending),
		refresh:    make(map[string]string),
		access:     make(map[string]string),
		identities: make(map[string]string),
		known:      make(map[string]bool),
		failures:   make(map[Op][]error),
	}
}

// Pool returns the user pool configuration the directory issues tokens for.
func (d *Directory) Pool() state.UserPoolConfiguration {
	return d.opts.Pool
}

// UserOption customises a user created with AddUser.
type UserOption func(*user)

// WithEmail sets the email claim.
func WithEmail(email string) UserOption {
	return func(u *user) { u.email = email }
}

// WithMFA requires an SMS_MFA answer equal to code after the password step.
func WithMFA(code string) UserOption {
	return func(u *user) { u.mfaCode = code }
}

// WithCustomChallenge enables custom auth with the given answer.
func WithCustomChallenge(answer string) UserOption {
	return func(u *user) { u.customAnswer = answer }
}

// WithNewPasswordRequired forces a NEW_PASSWORD_REQUIRED challenge.
func WithNewPasswordRequired() UserOption {
	return func(u *user) { u.newPassword = true }
}

// Unconfirmed leaves the user waiting for sign-up confirmation.
func Unconfirmed() UserOption {
	return func(u *user) { u.confirmed = false }
}

// AddUser creates a confirmed user and returns its subject id.
func (d *Directory) AddUser(username, pw string, opts ...UserOption) string {
	verifier, err := d.hasher.Hash(pw)
	if err != nil {
		panic(fmt.Sprintf("providertest: hash: %v", err))
	}
	u := &user{sub: uuid.NewString(), username: username, verifier: verifier, confirmed: true}
	for _, opt := range opts {
		opt(u)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !u.confirmed {
		u.code = d.nextCodeLocked()
	}
	d.users[username] = u
	return u.sub
}

// HasUser reports whether username exists.
func (d *Directory) HasUser(username string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.users[username]
	return ok
}

// ConfirmationCode returns the pending sign-up code for username.
func (d *Directory) ConfirmationCode(username string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[username]; ok {
		return u.code
	}
	return ""
}

// Fail makes the next call to op return err. Calls queue in order.
func (d *Directory) Fail(op Op, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = append(d.failures[op], err)
}

// Calls returns the operations invoked so far, in order.
func (d *Directory) Calls() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Op(nil), d.calls...)
}

// CallCount returns how many times op was invoked.
func (d *Directory) CallCount(op Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == op {
			n++
		}
	}
	return n
}

// begin records op, honours the delay, and pops a scripted failure.
func (d *Directory) begin(ctx context.Context, op Op) error {
	d.mu.Lock()
	d.calls = append(d.calls, op)
	var scripted error
	if q := d.failures[op]; len(q) > 0 {
		scripted = q[0]
		d.failures[op] = q[1:]
	}
	d.mu.Unlock()

	if d.opts.Delay > 0 {
		t := time.NewTimer(d.opts.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return &state.AuthError{Kind: state.KindUnknown, Message: string(op) + " interrupted", Err: ctx.Err()}
		}
	}
	if err := ctx.Err(); err != nil {
		return &state.AuthError{Kind: state.KindUnknown, Message: string(op) + " interrupted", Err: err}
	}
	return scripted
}

func (d *Directory) nextCodeLocked() string {
	d.codeSeq++
	return fmt.Sprintf("%06d", 100000+d.codeSeq)
}

func (d *Directory) newSessionLocked(p pending) string {
	id := uuid.NewString()
	d.sessions[id] = p
	return id
}

func incorrectCredentials() error {
	return state.NewNotAuthorizedError("NotAuthorizedException", "Incorrect username or password.", nil)
}

func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	return local[:1] + "***@" + domain
}
