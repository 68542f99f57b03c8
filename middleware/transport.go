package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/authmachine"
)

// ErrNoTokens is returned when the session carries no user pool tokens,
// e.g. for a guest or a federated identity.
var ErrNoTokens = errors.New("session has no user pool tokens")

// SessionSource is satisfied by *authmachine.Engine.
type SessionSource interface {
	FetchAuthSession(ctx context.Context, opts authmachine.FetchAuthSessionOptions) (authmachine.AuthSession, error)
}

// Transport is an http.RoundTripper authorizing requests with the current
// session. Requests with a body are retried only when GetBody is set.
type Transport struct {
	Source SessionSource
	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper
	// UseIDToken sends the ID token instead of the access token.
	UseIDToken bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.token(req.Context(), false)
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(authorized(req, req.Body, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	body, ok := replayBody(req)
	if !ok {
		return resp, nil
	}
	fresh, err := t.token(req.Context(), true)
	if err != nil || fresh == token {
		if body != nil {
			_ = body.Close()
		}
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return t.base().RoundTrip(authorized(req, body, fresh))
}

func (t *Transport) token(ctx context.Context, force bool) (string, error) {
	s, err := t.Source.FetchAuthSession(ctx, authmachine.FetchAuthSessionOptions{ForceRefresh: force})
	if err != nil {
		return "", err
	}
	if s.Tokens == nil {
		return "", ErrNoTokens
	}
	if t.UseIDToken {
		return s.Tokens.IDToken, nil
	}
	return s.Tokens.AccessToken, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// authorized clones req with the bearer token set. RoundTrippers must not
// modify the caller's request.
func authorized(req *http.Request, body io.ReadCloser, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Body = body
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

func replayBody(req *http.Request) (io.ReadCloser, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Body, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	return body, true
}
