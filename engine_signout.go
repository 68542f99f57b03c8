package authmachine

import (
	"context"

	"github.com/MrEthical07/authmachine/state"
)

// SignOut ends the current session. Guest credentials are cleared as well.
//
// Failures of the remote steps do not fail the sign-out; they are reported in
// the result. An error is returned only when the local credentials could not
// be cleared, in which case the session is kept.
func (e *Engine) SignOut(ctx context.Context, opts SignOutOptions) (SignOutResult, error) {
	c, err := e.settle(ctx, true)
	if err != nil {
		return SignOutResult{}, err
	}
	switch c.Authentication.(type) {
	case state.FederatedToIdentityPool:
		return SignOutResult{}, &state.AuthError{
			Kind:    state.KindInvalidState,
			Message: "use ClearFederationToIdentityPool to end a federated session",
		}
	case state.SignedOut, state.AuthenticationError:
		if _, empty := c.Authorization.(state.AuthorizationConfigured); empty {
			return SignOutResult{}, nil
		}
	}

	if err := e.send(ctx, state.NewAuthenticationEvent(state.SignOutRequested{
		Options: state.SignOutOptions{GlobalSignOut: opts.GlobalSignOut},
	})); err != nil {
		return SignOutResult{}, err
	}

	c, err = e.awaitOutcome(ctx, func(c state.AuthConfigured) (outcome, error) {
		switch a := c.Authentication.(type) {
		case state.SignedOut:
			return done, nil
		case state.SigningOut:
			if s, ok := a.State.(state.SignOutError); ok {
				return failed, flowError(s.Err)
			}
			return pending, nil
		}
		return failed, ErrOperationCancelled
	})
	if err != nil {
		if _, ok := c.Authentication.(state.SigningOut); ok {
			if cerr := e.send(context.WithoutCancel(ctx), state.NewAuthenticationEvent(state.CancelSignOut{})); cerr != nil {
				e.logger.Warn("sign-out rollback failed", "error", cerr.Error())
			}
		}
		return SignOutResult{}, err
	}

	data := c.Authentication.(state.SignedOut).Data
	return SignOutResult{
		Username:         data.LastKnownUsername,
		GlobalSignOutErr: flowError(data.GlobalSignOutErr),
		RevokeTokenErr:   flowError(data.RevokeTokenErr),
	}, nil
}

// DeleteUser deletes the signed-in user from the pool and signs out locally.
// A failed deletion keeps the user signed in, so the call can be retried.
func (e *Engine) DeleteUser(ctx context.Context) error {
	if err := e.requireUserPool(); err != nil {
		return err
	}
	c, err := e.settle(ctx, false)
	if err != nil {
		return err
	}
	if _, ok := signedInSession(c.Authentication); !ok {
		return invalidState(ErrNotSignedIn)
	}

	if err := e.send(ctx, state.NewDeleteUserEvent(state.DeleteUser{})); err != nil {
		return err
	}
	_, err = e.awaitOutcome(ctx, func(c state.AuthConfigured) (outcome, error) {
		switch a := c.Authentication.(type) {
		case state.SignedOut:
			return done, nil
		case state.DeletingUser:
			if s, ok := a.State.(state.DeleteUserError); ok {
				return failed, flowError(s.Err)
			}
			return pending, nil
		}
		return failed, ErrOperationCancelled
	})
	return err
}
