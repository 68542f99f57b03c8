package flows

import (
	"context"
	"maps"

	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// SignUpResolver registers a user and confirms the delivered code. A
// confirmation may start without a preceding sign-up in this process.
type SignUpResolver struct{}

func (SignUpResolver) Resolve(old state.SignUpState, event statemachine.Event) resolution[state.SignUpState] {
	e, ok := event.(state.SignUpEvent)
	if !ok {
		return unchanged(old)
	}

	switch s := old.(type) {
	case state.SignUpNotStarted:
		switch t := e.Type.(type) {
		case state.InitiateSignUp:
			if err := validateSignUp(t.Data); err != nil {
				return next[state.SignUpState](state.SignUpError{Err: err})
			}
			return next[state.SignUpState](state.InitiatingSignUp{Username: t.Data.Username}, signUpAction(t.Data))
		case state.ConfirmSignUp:
			return confirm(t.Data)
		}

	case state.InitiatingSignUp:
		switch t := e.Type.(type) {
		case state.InitiateSignUpComplete:
			if t.Result.Confirmed {
				return next[state.SignUpState](state.SignedUp{Username: t.Username, Result: t.Result})
			}
			return next[state.SignUpState](state.AwaitingUserConfirmation{Username: t.Username, Result: t.Result})
		case state.ThrowSignUpError:
			return next[state.SignUpState](state.SignUpError{Err: t.Err})
		}

	case state.AwaitingUserConfirmation:
		switch t := e.Type.(type) {
		case state.ConfirmSignUp:
			if t.Data.Username == "" {
				t.Data.Username = s.Username
			}
			return confirm(t.Data)
		case state.ThrowSignUpError:
			return next[state.SignUpState](state.SignUpError{Err: t.Err})
		}

	case state.ConfirmingSignUp:
		switch t := e.Type.(type) {
		case state.SignUpConfirmed:
			return next[state.SignUpState](state.SignedUp{Username: t.Username, Result: t.Result})
		case state.ThrowSignUpError:
			return next[state.SignUpState](state.SignUpError{Err: t.Err})
		}
	}

	// SignedUp and SignUpError are terminal.
	return unchanged(old)
}

func confirm(data state.ConfirmSignUpEventData) resolution[state.SignUpState] {
	if err := validateConfirmSignUp(data); err != nil {
		return next[state.SignUpState](state.SignUpError{Err: err})
	}
	return next[state.SignUpState](state.ConfirmingSignUp{Username: data.Username}, confirmSignUpAction(data))
}

func signUpAction(data state.SignUpEventData) Action {
	return action("SignUp", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		res, err := env.UserPool.SignUp(ctx, provider.SignUpInput{
			Username:       data.Username,
			Password:       data.Password,
			Attributes:     maps.Clone(data.Attributes),
			ValidationData: maps.Clone(data.ValidationData),
			ClientMetadata: maps.Clone(data.ClientMetadata),
		})
		if err != nil {
			warn(env, "SignUp", data.Username, err)
			emit(ctx, d, env, state.NewSignUpEvent(state.ThrowSignUpError{Err: authError(err)}))
			return
		}
		emit(ctx, d, env, state.NewSignUpEvent(state.InitiateSignUpComplete{Username: data.Username, Result: res}))
	})
}

func confirmSignUpAction(data state.ConfirmSignUpEventData) Action {
	return action("ConfirmSignUp", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		res, err := env.UserPool.ConfirmSignUp(ctx, provider.ConfirmSignUpInput{
			Username:       data.Username,
			Code:           data.Code,
			ClientMetadata: maps.Clone(data.ClientMetadata),
		})
		if err != nil {
			warn(env, "ConfirmSignUp", data.Username, err)
			emit(ctx, d, env, state.NewSignUpEvent(state.ThrowSignUpError{Err: authError(err)}))
			return
		}
		res.Confirmed = true
		emit(ctx, d, env, state.NewSignUpEvent(state.SignUpConfirmed{Username: data.Username, Result: res}))
	})
}
