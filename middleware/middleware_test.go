package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authmachine"
	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/jwt"
	"github.com/MrEthical07/authmachine/providertest"
	"github.com/MrEthical07/authmachine/state"
)

func whoAmIHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "no claims", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, claims.Username)
	})
}

func newSignedInEngine(t *testing.T, dir *providertest.Directory) *authmachine.Engine {
	t.Helper()
	pool := dir.Pool()
	cfg := authmachine.DefaultConfig()
	cfg.UserPool = authmachine.UserPoolConfig{PoolID: pool.PoolID, AppClientID: pool.AppClientID, Region: pool.Region}

	engine, err := authmachine.New().
		WithConfig(cfg).
		WithUserPoolClient(dir).
		WithCredentialStore(credstore.NewMemoryStore()).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = engine.SignIn(ctx, authmachine.SignInInput{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	return engine
}

func TestGuardRejectsMissingAndInvalidTokens(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	srv := httptest.NewServer(Guard(dir)(whoAmIHandler()))
	t.Cleanup(srv.Close)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not-a-jwt"} {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header %q", header)
	}
}

func TestGuardNilVerifier(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	Guard(nil)(whoAmIHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransportAuthorizesWithEngineSession(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	engine := newSignedInEngine(t, dir)

	srv := httptest.NewServer(Guard(dir)(whoAmIHandler()))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: &Transport{Source: engine}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", string(body))
}

func TestTransportRejectedAfterSignOut(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	engine := newSignedInEngine(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := engine.SignOut(ctx, authmachine.SignOutOptions{})
	require.NoError(t, err)

	client := &http.Client{Transport: &Transport{Source: engine}}
	_, err = client.Get("http://127.0.0.1:1/unused")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTokens)
}

type scriptedSource struct {
	mu     sync.Mutex
	tokens []string
	forced int
	err    error
}

func (s *scriptedSource) FetchAuthSession(_ context.Context, opts authmachine.FetchAuthSessionOptions) (authmachine.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return authmachine.AuthSession{}, s.err
	}
	if opts.ForceRefresh {
		s.forced++
	}
	tok := s.tokens[min(s.forced, len(s.tokens)-1)]
	return authmachine.AuthSession{
		IsSignedIn: true,
		Tokens:     &state.UserPoolTokens{AccessToken: tok, IDToken: "id-" + tok},
	}, nil
}

func TestTransportRetriesOnceWithRefreshedToken(t *testing.T) {
	var (
		mu     sync.Mutex
		seen   []string
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		bodies = append(bodies, string(b))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	src := &scriptedSource{tokens: []string{"stale", "fresh"}}
	client := &http.Client{Transport: &Transport{Source: src}}

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"Bearer stale", "Bearer fresh"}, seen)
	assert.Equal(t, []string{"payload", "payload"}, bodies)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestTransportDoesNotRetryWhenTokenUnchanged(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: &Transport{Source: &scriptedSource{tokens: []string{"same"}}}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportIDTokenAndSourceError(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: &Transport{Source: &scriptedSource{tokens: []string{"tok"}}, UseIDToken: true}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "Bearer id-tok", got.Load())

	boom := errors.New("boom")
	client = &http.Client{Transport: &Transport{Source: &scriptedSource{err: boom}}}
	_, err = client.Get(srv.URL)
	assert.ErrorIs(t, err, boom)
}

func TestJWTVerifier(t *testing.T) {
	m, err := jwt.NewManager(jwt.Config{
		TokenTTL:      time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_local",
		Audience:      "local-client",
	})
	require.NoError(t, err)

	token, _, err := m.CreateAccessToken("sub-1", "carol")
	require.NoError(t, err)

	claims, err := JWTVerifier(m).VerifyAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "carol", claims.Username)

	idToken, _, err := m.CreateIDToken("sub-1", "carol", "carol@example.com")
	require.NoError(t, err)
	_, err = JWTVerifier(m).VerifyAccessToken(context.Background(), idToken)
	assert.Error(t, err)
}
