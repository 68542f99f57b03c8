package authmachine

import (
	"context"
	"strings"

	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
)

// SignUp registers a new user. When the pool requires confirmation the
// result asks for [Engine.ConfirmSignUp] with the delivered code.
func (e *Engine) SignUp(ctx context.Context, in SignUpInput) (SignUpResult, error) {
	if err := e.requireUserPool(); err != nil {
		return SignUpResult{}, err
	}
	c, err := e.settle(ctx, true)
	if err != nil {
		return SignUpResult{}, err
	}
	if _, ok := signedInSession(c.Authentication); ok {
		return SignUpResult{}, invalidState(ErrAlreadySignedIn)
	}
	if !canStartFlow(c.Authentication) {
		return SignUpResult{}, notFrom("sign up", c.Authentication)
	}

	if err := e.send(ctx, state.NewSignUpEvent(state.InitiateSignUp{Data: state.SignUpEventData{
		Username:       in.Username,
		Password:       in.Password,
		Attributes:     in.Attributes,
		ValidationData: in.ValidationData,
		ClientMetadata: clientMetadata(ctx, in.ClientMetadata),
	}})); err != nil {
		return SignUpResult{}, err
	}
	return e.awaitSignUp(ctx)
}

// ConfirmSignUp confirms a registration with the delivered code. It works
// for the sign-up in progress as well as for one started by an earlier
// process, in which case Username is required.
func (e *Engine) ConfirmSignUp(ctx context.Context, in ConfirmSignUpInput) (SignUpResult, error) {
	if err := e.requireUserPool(); err != nil {
		return SignUpResult{}, err
	}
	c, err := e.settle(ctx, false)
	if err != nil {
		return SignUpResult{}, err
	}

	if !awaitingConfirmation(c.Authentication, in.Username) {
		if c, err = e.settle(ctx, true); err != nil {
			return SignUpResult{}, err
		}
		if _, ok := signedInSession(c.Authentication); ok {
			return SignUpResult{}, invalidState(ErrAlreadySignedIn)
		}
		if !canStartFlow(c.Authentication) {
			return SignUpResult{}, notFrom("confirm sign up", c.Authentication)
		}
	}

	if err := e.send(ctx, state.NewSignUpEvent(state.ConfirmSignUp{Data: state.ConfirmSignUpEventData{
		Username:       in.Username,
		Code:           in.Code,
		ClientMetadata: clientMetadata(ctx, in.ClientMetadata),
	}})); err != nil {
		return SignUpResult{}, err
	}
	return e.awaitSignUp(ctx)
}

// ResendSignUpCode delivers a new confirmation code. It calls the provider
// directly and does not change the engine state.
func (e *Engine) ResendSignUpCode(ctx context.Context, username string, clientMD map[string]string) (state.CodeDeliveryDetails, error) {
	if err := e.requireUserPool(); err != nil {
		return state.CodeDeliveryDetails{}, err
	}
	if _, err := e.awaitConfigured(ctx); err != nil {
		return state.CodeDeliveryDetails{}, err
	}
	if strings.TrimSpace(username) == "" {
		return state.CodeDeliveryDetails{}, state.NewValidationError("username", "username is required")
	}
	details, err := e.userPool.ResendSignUpCode(ctx, provider.ResendSignUpCodeInput{
		Username:       username,
		ClientMetadata: clientMetadata(ctx, clientMD),
	})
	if err != nil {
		e.logger.Warn("resend sign-up code failed",
			"username", username,
			"error", err.Error(),
		)
		return state.CodeDeliveryDetails{}, state.AsAuthError(err)
	}
	return details, nil
}

func (e *Engine) awaitSignUp(ctx context.Context) (SignUpResult, error) {
	c, err := e.awaitOutcome(ctx, func(c state.AuthConfigured) (outcome, error) {
		up, ok := c.Authentication.(state.SigningUp)
		if !ok {
			return failed, ErrOperationCancelled
		}
		switch s := up.State.(type) {
		case state.AwaitingUserConfirmation, state.SignedUp:
			return done, nil
		case state.SignUpError:
			return failed, flowError(s.Err)
		}
		return pending, nil
	})
	if err != nil {
		return SignUpResult{}, err
	}

	switch s := c.Authentication.(state.SigningUp).State.(type) {
	case state.AwaitingUserConfirmation:
		return SignUpResult{
			NextStep:     SignUpStepConfirmSignUp,
			Username:     s.Username,
			UserID:       s.Result.UserID,
			CodeDelivery: s.Result.CodeDelivery,
		}, nil
	case state.SignedUp:
		return SignUpResult{
			NextStep:     SignUpStepDone,
			Username:     s.Username,
			UserID:       s.Result.UserID,
			CodeDelivery: s.Result.CodeDelivery,
		}, nil
	}
	return SignUpResult{}, ErrOperationCancelled
}

// awaitingConfirmation reports whether the engine's own sign-up for username
// is waiting for its code. An empty username matches any.
func awaitingConfirmation(s state.AuthenticationState, username string) bool {
	up, ok := s.(state.SigningUp)
	if !ok {
		return false
	}
	w, ok := up.State.(state.AwaitingUserConfirmation)
	return ok && (username == "" || username == w.Username)
}

func (e *Engine) requireUserPool() error {
	if e.userPool == nil {
		return state.NewConfigurationError("no user pool is configured")
	}
	return nil
}
