package authmachine

import (
	"context"

	"github.com/MrEthical07/authmachine/state"
)

// SignIn authenticates a user with the selected flow. It returns once the
// user is signed in and the session has been fetched, or once the provider
// asks for a challenge answer (see [Engine.ConfirmSignIn]).
//
// A sign-in or sign-up left in progress by an earlier call is cancelled
// first. SignIn fails with ErrAlreadySignedIn while a user is signed in.
func (e *Engine) SignIn(ctx context.Context, in SignInInput) (SignInResult, error) {
	c, err := e.settle(ctx, true)
	if err != nil {
		return SignInResult{}, err
	}
	if _, ok := signedInSession(c.Authentication); ok {
		return SignInResult{}, invalidState(ErrAlreadySignedIn)
	}
	if _, ok := c.Authentication.(state.FederatedToIdentityPool); ok {
		return SignInResult{}, &state.AuthError{
			Kind:    state.KindInvalidState,
			Message: "clear the federated session before signing in",
		}
	}
	if !canStartFlow(c.Authentication) {
		return SignInResult{}, notFrom("sign in", c.Authentication)
	}

	data := state.SignInEventData{
		Username:       in.Username,
		Password:       in.Password,
		ClientMetadata: clientMetadata(ctx, in.ClientMetadata),
	}
	var start state.SignInEventType
	switch in.Flow {
	case AuthFlowUserPassword:
		start = state.InitiateMigrateAuth{Data: data}
	case AuthFlowCustom:
		start = state.InitiateCustomSignIn{Data: data}
	default:
		start = state.InitiateSignInWithSRP{Data: data}
	}

	if err := e.send(ctx, state.NewSignInEvent(start)); err != nil {
		return SignInResult{}, err
	}
	return e.awaitSignIn(ctx)
}

// ConfirmSignIn answers the challenge returned by SignIn. A wrong answer to
// a retryable challenge returns the error and keeps the challenge, so
// ConfirmSignIn can be called again.
func (e *Engine) ConfirmSignIn(ctx context.Context, in ConfirmSignInInput) (SignInResult, error) {
	c, err := e.settle(ctx, false)
	if err != nil {
		return SignInResult{}, err
	}
	if !awaitingAnswer(c.Authentication) {
		if _, ok := c.Authentication.(state.SigningIn); ok {
			return SignInResult{}, invalidState(ErrSignInInProgress)
		}
		return SignInResult{}, &state.AuthError{
			Kind:    state.KindInvalidState,
			Message: "no sign-in challenge is waiting for an answer",
		}
	}

	if err := e.send(ctx, state.NewChallengeEvent(state.VerifyChallengeAnswer{
		Answer:         in.Answer,
		Attributes:     in.Attributes,
		ClientMetadata: clientMetadata(ctx, in.ClientMetadata),
	})); err != nil {
		return SignInResult{}, err
	}
	return e.awaitSignIn(ctx)
}

func (e *Engine) awaitSignIn(ctx context.Context) (SignInResult, error) {
	c, err := e.awaitOutcome(ctx, func(c state.AuthConfigured) (outcome, error) {
		switch a := c.Authentication.(type) {
		case state.SignedIn:
			if authorizationBusy(c.Authorization) {
				return pending, nil
			}
			return done, nil
		case state.SigningIn:
			switch s := a.State.(type) {
			case state.SignInError:
				return failed, flowError(s.Err)
			case state.ResolvingChallenge:
				switch ch := s.Challenge.(type) {
				case state.ChallengeWaitingForAnswer:
					return done, nil
				case state.ChallengeError:
					return failed, flowError(ch.Err)
				}
			}
			return pending, nil
		}
		return failed, ErrOperationCancelled
	})
	if err != nil {
		return SignInResult{}, err
	}

	switch a := c.Authentication.(type) {
	case state.SignedIn:
		if z, ok := c.Authorization.(state.AuthorizationError); ok {
			e.logger.Warn("session fetch after sign-in failed",
				"username", a.Data.Username,
				"error", flowError(z.Err).Error(),
			)
		}
		return SignInResult{NextStep: SignInStepDone, User: userFrom(a.Data)}, nil
	case state.SigningIn:
		rc := a.State.(state.ResolvingChallenge)
		return challengeResult(rc.Challenge.(state.ChallengeWaitingForAnswer).Challenge), nil
	}
	return SignInResult{}, ErrOperationCancelled
}

func awaitingAnswer(s state.AuthenticationState) bool {
	in, ok := s.(state.SigningIn)
	if !ok {
		return false
	}
	rc, ok := in.State.(state.ResolvingChallenge)
	if !ok {
		return false
	}
	switch rc.Challenge.(type) {
	case state.ChallengeWaitingForAnswer, state.ChallengeError:
		return true
	}
	return false
}

// GetCurrentUser returns the signed-in user without contacting the provider.
func (e *Engine) GetCurrentUser(ctx context.Context) (AuthUser, error) {
	c, err := e.awaitConfigured(ctx)
	if err != nil {
		return AuthUser{}, err
	}
	data, ok := signedInSession(c.Authentication)
	if !ok {
		return AuthUser{}, invalidState(ErrNotSignedIn)
	}
	return *userFrom(data), nil
}
