package authmachine

import (
	"context"
	"strings"

	"github.com/MrEthical07/authmachine/state"
)

// FetchAuthSession returns the current credentials, refreshing them when
// they expire within the configured buffer or when ForceRefresh is set.
// Signed-out callers receive guest credentials when an identity pool is
// configured.
//
// Concurrent calls with the same options share one fetch.
func (e *Engine) FetchAuthSession(ctx context.Context, opts FetchAuthSessionOptions) (AuthSession, error) {
	key := "fetch"
	if opts.ForceRefresh {
		key = "force"
	}
	ch := e.fetches.DoChan(key, func() (any, error) {
		return e.fetchAuthSession(context.WithoutCancel(ctx), opts.ForceRefresh)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return AuthSession{}, r.Err
		}
		return r.Val.(AuthSession), nil
	case <-ctx.Done():
		return AuthSession{}, ctx.Err()
	}
}

func (e *Engine) fetchAuthSession(ctx context.Context, force bool) (AuthSession, error) {
	c, err := e.settle(ctx, false)
	if err != nil {
		return AuthSession{}, err
	}

	var req state.AuthorizationEventType
	switch z := c.Authorization.(type) {
	case state.SessionEstablished:
		if !force && !z.Credentials.ExpiresWithin(e.now(), e.config.Session.ExpiryBuffer) {
			return sessionFrom(z.Credentials), nil
		}
		req = state.RefreshSession{Credentials: z.Credentials, Force: force}
	case state.AuthorizationError:
		if !z.Credentials.IsEmpty() {
			req = state.RefreshSession{Credentials: z.Credentials, Force: force}
		}
	}
	if req == nil {
		data, signedIn := signedInSession(c.Authentication)
		switch {
		case signedIn:
			req = state.FetchUserPoolSession{Data: data}
		case e.config.IdentityPool.PoolID != "" && canStartFlow(c.Authentication):
			req = state.FetchUnauthSession{}
		default:
			if z, ok := c.Authorization.(state.AuthorizationError); ok {
				return AuthSession{}, flowError(z.Err)
			}
			return AuthSession{}, nil
		}
	}

	if err := e.send(ctx, state.NewAuthorizationEvent(req)); err != nil {
		return AuthSession{}, err
	}
	c, err = e.awaitOutcome(ctx, awaitSession)
	if err != nil {
		return AuthSession{}, err
	}
	return sessionFrom(c.Authorization.(state.SessionEstablished).Credentials), nil
}

// FederateToIdentityPool exchanges a third-party identity token for AWS
// credentials. It replaces an earlier federation and is not available while
// a user pool user is signed in.
func (e *Engine) FederateToIdentityPool(ctx context.Context, token state.FederatedToken, opts FederateOptions) (FederationResult, error) {
	if e.config.IdentityPool.PoolID == "" {
		return FederationResult{}, state.NewConfigurationError("no identity pool is configured")
	}
	if strings.TrimSpace(token.Token) == "" {
		return FederationResult{}, state.NewValidationError("token", "token is required")
	}
	if strings.TrimSpace(token.Provider) == "" {
		return FederationResult{}, state.NewValidationError("provider", "provider is required")
	}

	c, err := e.settle(ctx, true)
	if err != nil {
		return FederationResult{}, err
	}
	if _, ok := signedInSession(c.Authentication); ok {
		return FederationResult{}, invalidState(ErrAlreadySignedIn)
	}
	if _, ok := c.Authentication.(state.FederatedToIdentityPool); !ok && !canStartFlow(c.Authentication) {
		return FederationResult{}, notFrom("federate", c.Authentication)
	}

	if err := e.send(ctx, state.NewAuthenticationEvent(state.FederateToIdentityPool{
		Token:      token,
		IdentityID: opts.IdentityID,
	})); err != nil {
		return FederationResult{}, err
	}
	c, err = e.awaitOutcome(ctx, func(c state.AuthConfigured) (outcome, error) {
		switch a := c.Authentication.(type) {
		case state.FederatingToIdentityPool:
			return pending, nil
		case state.FederatedToIdentityPool:
			if _, ok := c.Authorization.(state.SessionEstablished); ok {
				return done, nil
			}
			if authorizationBusy(c.Authorization) {
				return pending, nil
			}
		case state.AuthenticationError:
			return failed, flowError(a.Err)
		}
		return failed, ErrOperationCancelled
	})
	if err != nil {
		return FederationResult{}, err
	}

	creds := c.Authorization.(state.SessionEstablished).Credentials
	res := FederationResult{IdentityID: creds.IdentityID}
	if creds.AWS != nil {
		res.AWS = *creds.AWS
	}
	return res, nil
}

// ClearFederationToIdentityPool ends a federated session and removes its
// stored credentials.
func (e *Engine) ClearFederationToIdentityPool(ctx context.Context) error {
	c, err := e.settle(ctx, true)
	if err != nil {
		return err
	}
	switch c.Authentication.(type) {
	case state.FederatedToIdentityPool, state.AuthenticationError:
	default:
		return notFrom("clear federation", c.Authentication)
	}

	if err := e.send(ctx, state.NewAuthenticationEvent(state.ClearFederationToIdentityPool{})); err != nil {
		return err
	}
	_, err = e.awaitOutcome(ctx, func(c state.AuthConfigured) (outcome, error) {
		switch a := c.Authentication.(type) {
		case state.SignedOut:
			return done, nil
		case state.ClearingFederation:
			return pending, nil
		case state.AuthenticationError:
			return failed, flowError(a.Err)
		}
		return failed, ErrOperationCancelled
	})
	return err
}
