package flows

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// SignOutResolver ends a session. Remote failures are collected as partial
// errors; only a failure to clear the local credentials fails the flow.
type SignOutResolver struct{}

func (SignOutResolver) Resolve(old state.SignOutState, event statemachine.Event) resolution[state.SignOutState] {
	e, ok := event.(state.SignOutEvent)
	if !ok {
		return unchanged(old)
	}

	switch old.(type) {
	case state.SignOutNotStarted:
		switch t := e.Type.(type) {
		case state.SignOutGlobally:
			return next[state.SignOutState](state.SigningOutGlobally{}, globalSignOutAction(t.Data))
		case state.RevokeToken:
			return next[state.SignOutState](state.RevokingToken{}, revokeTokenAction(t.Data, t.GlobalErr))
		case state.SignOutLocally:
			return next[state.SignOutState](state.SigningOutLocally{Username: t.Username}, clearStoreAction{signOut: t})
		case state.SignOutGuest:
			return next[state.SignOutState](state.SigningOutLocally{}, clearStoreAction{})
		}

	case state.SigningOutGlobally:
		switch t := e.Type.(type) {
		case state.RevokeToken:
			return next[state.SignOutState](state.RevokingToken{}, revokeTokenAction(t.Data, t.GlobalErr))
		case state.GlobalSignOutFailed:
			return next[state.SignOutState](state.BuildingRevokeTokenError{}, skipRevokeAction(t))
		case state.SignedOutFailure:
			return next[state.SignOutState](state.SignOutError{Err: t.Err})
		}

	case state.RevokingToken, state.BuildingRevokeTokenError:
		switch t := e.Type.(type) {
		case state.SignOutLocally:
			return next[state.SignOutState](state.SigningOutLocally{Username: t.Username}, clearStoreAction{signOut: t})
		case state.SignedOutFailure:
			return next[state.SignOutState](state.SignOutError{Err: t.Err})
		}

	case state.SigningOutLocally:
		switch t := e.Type.(type) {
		case state.SignedOutSuccess:
			return next[state.SignOutState](state.SignOutSignedOut{Data: t.Data})
		case state.SignedOutFailure:
			return next[state.SignOutState](state.SignOutError{Err: t.Err})
		}
	}

	// SignOutSignedOut and SignOutError are terminal.
	return unchanged(old)
}

func globalSignOutAction(data state.SignedInData) Action {
	return action("GlobalSignOut", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		if err := env.UserPool.GlobalSignOut(ctx, data.Tokens.AccessToken); err != nil {
			warn(env, "GlobalSignOut", data.Username, err)
			emit(ctx, d, env, state.NewSignOutEvent(state.GlobalSignOutFailed{Data: data, Err: authError(err)}))
			return
		}
		emit(ctx, d, env, state.NewSignOutEvent(state.RevokeToken{Data: data}))
	})
}

func revokeTokenAction(data state.SignedInData, globalErr *state.AuthError) Action {
	return action("RevokeToken", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		var revokeErr *state.AuthError
		if data.Tokens.RefreshToken != "" {
			if err := env.UserPool.RevokeToken(ctx, data.Tokens.RefreshToken); err != nil {
				warn(env, "RevokeToken", data.Username, err)
				revokeErr = authError(err)
			}
		}
		emit(ctx, d, env, state.NewSignOutEvent(state.SignOutLocally{
			Username:  data.Username,
			GlobalErr: globalErr,
			RevokeErr: revokeErr,
		}))
	})
}

// skipRevokeAction records that the refresh token was left valid because the
// global sign-out did not go through.
func skipRevokeAction(failed state.GlobalSignOutFailed) Action {
	return action("BuildRevokeTokenError", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		emit(ctx, d, env, state.NewSignOutEvent(state.SignOutLocally{
			Username:  failed.Data.Username,
			GlobalErr: failed.Err,
			RevokeErr: state.NewServiceError("RevokeTokenSkipped", "refresh token was not revoked because global sign-out failed", false, nil),
		}))
	})
}

// clearStoreAction deletes the stored credentials, either as the last step of
// a sign-out or to drop a federated session. It is a plain value so that the
// root resolver can hold it back while a credential save is running.
type clearStoreAction struct {
	signOut    state.SignOutLocally
	federation bool
}

func (a clearStoreAction) Identifier() string {
	if a.federation {
		return "ClearFederation"
	}
	return "ClearCredentialStore"
}

func (a clearStoreAction) Execute(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
	if a.federation {
		clearFederation(ctx, d, env)
		return
	}
	in := a.signOut
	if err := env.Store.Delete(ctx); err != nil {
		env.logger().Warn("credential store delete failed",
			slog.String("action", "ClearCredentialStore"),
			slog.String("username", in.Username),
			slog.String("error", err.Error()),
		)
		emit(ctx, d, env, state.NewSignOutEvent(state.SignedOutFailure{
			Err: &state.AuthError{Kind: state.KindUnknown, Message: "clearing stored credentials failed", Err: err},
		}))
		return
	}
	emit(ctx, d, env, state.NewSignOutEvent(state.SignedOutSuccess{Data: state.SignedOutData{
		LastKnownUsername: in.Username,
		GlobalSignOutErr:  in.GlobalErr,
		RevokeTokenErr:    in.RevokeErr,
	}}))
}
