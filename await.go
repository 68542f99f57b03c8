package authmachine

import (
	"context"

	"github.com/MrEthical07/authmachine/state"
)

type outcome uint8

const (
	pending outcome = iota
	done
	failed
)

// classifier decides whether a configured state ends the awaited flow. The
// error is returned for failed outcomes.
type classifier func(state.AuthConfigured) (outcome, error)

// awaitOutcome waits until classify reports done or failed. States before
// configuration completes are skipped. A subscription dropped for falling
// behind is renewed from the current state.
func (e *Engine) awaitOutcome(ctx context.Context, classify classifier) (state.AuthConfigured, error) {
	if e.closed.Load() {
		return state.AuthConfigured{}, ErrEngineNotReady
	}
	sub := e.machine.Listen(ctx)
	defer func() { sub.Cancel() }()

	for {
		select {
		case s, ok := <-sub.C():
			if !ok {
				switch {
				case ctx.Err() != nil:
					return state.AuthConfigured{}, ctx.Err()
				case e.closed.Load() || !sub.Dropped():
					return state.AuthConfigured{}, ErrEngineNotReady
				}
				sub = e.machine.Listen(ctx)
				continue
			}
			c, ok := s.(state.AuthConfigured)
			if !ok {
				continue
			}
			switch o, err := classify(c); o {
			case done:
				return c, nil
			case failed:
				return c, err
			}
		case <-ctx.Done():
			return state.AuthConfigured{}, ctx.Err()
		}
	}
}

// awaitConfigured waits until the persisted session has been loaded.
func (e *Engine) awaitConfigured(ctx context.Context) (state.AuthConfigured, error) {
	return e.awaitOutcome(ctx, func(state.AuthConfigured) (outcome, error) { return done, nil })
}

// settle waits until no uncancellable flow is running. With unwind, an
// in-progress sign-in or sign-up is cancelled and the wait continues until
// it has unwound.
func (e *Engine) settle(ctx context.Context, unwind bool) (state.AuthConfigured, error) {
	for {
		c, err := e.awaitOutcome(ctx, func(c state.AuthConfigured) (outcome, error) {
			if authenticationBusy(c.Authentication) || authorizationBusy(c.Authorization) {
				return pending, nil
			}
			return done, nil
		})
		if err != nil || !unwind {
			return c, err
		}

		var cancel state.AuthenticationEventType
		switch c.Authentication.(type) {
		case state.SigningIn:
			cancel = state.CancelSignIn{}
		case state.SigningUp:
			cancel = state.CancelSignUp{}
		default:
			return c, nil
		}
		if err := e.send(ctx, state.NewAuthenticationEvent(cancel)); err != nil {
			return c, err
		}
	}
}

// authenticationBusy reports flows that run to completion on their own.
// Sign-in and sign-up wait for the caller and are cancelled instead.
func authenticationBusy(s state.AuthenticationState) bool {
	switch s := s.(type) {
	case state.AuthenticationNotConfigured, state.FederatingToIdentityPool, state.ClearingFederation:
		return true
	case state.SigningOut:
		_, failed := s.State.(state.SignOutError)
		return !failed
	case state.DeletingUser:
		_, failed := s.State.(state.DeleteUserError)
		return !failed
	}
	return false
}

func authorizationBusy(s state.AuthorizationState) bool {
	switch s.(type) {
	case state.AuthorizationNotConfigured, state.FetchingAuthSession, state.StoringCredentials:
		return true
	}
	return false
}

// signedInSession returns the live user session. A failed deletion keeps the
// user signed in.
func signedInSession(s state.AuthenticationState) (state.SignedInData, bool) {
	switch s := s.(type) {
	case state.SignedIn:
		return s.Data, true
	case state.DeletingUser:
		if _, failed := s.State.(state.DeleteUserError); failed {
			return s.Data, true
		}
	}
	return state.SignedInData{}, false
}

// canStartFlow reports whether a sign-in, sign-up or federation may start
// from s.
func canStartFlow(s state.AuthenticationState) bool {
	switch s.(type) {
	case state.SignedOut, state.AuthenticationError:
		return true
	}
	return false
}

func notFrom(op string, s state.AuthenticationState) error {
	return &state.AuthError{
		Kind:    state.KindInvalidState,
		Message: "cannot " + op + " while " + state.VariantName(s),
	}
}

// awaitSession waits for the authorization flow started by the caller to
// settle. A reset to AuthorizationConfigured means a competing sign-out won.
func awaitSession(c state.AuthConfigured) (outcome, error) {
	switch z := c.Authorization.(type) {
	case state.SessionEstablished:
		return done, nil
	case state.AuthorizationError:
		return failed, flowError(z.Err)
	case state.AuthorizationConfigured:
		return failed, ErrOperationCancelled
	}
	return pending, nil
}
