package flows

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// AuthenticationResolver tracks who the user is and delegates each flow to
// its child resolver.
type AuthenticationResolver struct {
	SignIn     SignInResolver
	SignUp     SignUpResolver
	SignOut    SignOutResolver
	DeleteUser DeleteUserResolver
}

func (r AuthenticationResolver) Resolve(old state.AuthenticationState, event statemachine.Event) resolution[state.AuthenticationState] {
	if e, ok := event.(state.AuthenticationEvent); ok {
		if t, ok := e.Type.(state.ThrowAuthenticationError); ok {
			if _, configured := old.(state.AuthenticationNotConfigured); !configured {
				return next[state.AuthenticationState](state.AuthenticationError{Err: t.Err})
			}
		}
	}

	switch s := old.(type) {
	case state.AuthenticationNotConfigured:
		if e, ok := event.(state.AuthenticationEvent); ok {
			if t, ok := e.Type.(state.InitializeAuthentication); ok {
				return next(initialAuthentication(t.Config, t.Stored))
			}
		}

	case state.SignedOut:
		return r.fromSignedOut(s, event)

	case state.AuthenticationError:
		return r.fromSignedOut(s, event)

	case state.SigningIn:
		if isAuthenticationEvent[state.CancelSignIn](event) {
			return next[state.AuthenticationState](state.SignedOut{})
		}
		sub := r.SignIn.Resolve(s.State, event)
		if n, ok := sub.NewState.(state.SignInSignedIn); ok {
			return next[state.AuthenticationState](state.SignedIn{Data: n.Data}, sub.Actions...)
		}
		return next[state.AuthenticationState](state.SigningIn{State: sub.NewState}, sub.Actions...)

	case state.SigningUp:
		if isAuthenticationEvent[state.CancelSignUp](event) {
			return next[state.AuthenticationState](state.SignedOut{})
		}
		sub := r.SignUp.Resolve(s.State, event)
		return next[state.AuthenticationState](state.SigningUp{State: sub.NewState}, sub.Actions...)

	case state.SignedIn:
		return r.fromSignedIn(s.Data, old, event)

	case state.SigningOut:
		if isAuthenticationEvent[state.CancelSignOut](event) {
			if _, failed := s.State.(state.SignOutError); failed {
				if s.Data.Username == "" {
					return next[state.AuthenticationState](state.SignedOut{})
				}
				return next[state.AuthenticationState](state.SignedIn{Data: s.Data})
			}
			return unchanged(old)
		}
		sub := r.SignOut.Resolve(s.State, event)
		if n, ok := sub.NewState.(state.SignOutSignedOut); ok {
			return next[state.AuthenticationState](state.SignedOut{Data: n.Data}, sub.Actions...)
		}
		return next[state.AuthenticationState](state.SigningOut{Data: s.Data, State: sub.NewState}, sub.Actions...)

	case state.DeletingUser:
		if _, failed := s.State.(state.DeleteUserError); failed {
			if _, ok := event.(state.DeleteUserEvent); !ok {
				return r.fromSignedIn(s.Data, old, event)
			}
		}
		sub := r.DeleteUser.Resolve(s.Data, s.State, event)
		if _, ok := sub.NewState.(state.UserDeleted); ok {
			return next[state.AuthenticationState](state.SignedOut{Data: state.SignedOutData{LastKnownUsername: s.Data.Username}}, sub.Actions...)
		}
		return next[state.AuthenticationState](state.DeletingUser{Data: s.Data, State: sub.NewState}, sub.Actions...)

	case state.FederatedToIdentityPool:
		return r.fromFederated(old, event)

	case state.ClearingFederation:
		if isAuthenticationEvent[state.FederationCleared](event) {
			return next[state.AuthenticationState](state.SignedOut{})
		}
	}

	// FederatingToIdentityPool is resolved by the root, which watches the
	// authorization outcome.
	return unchanged(old)
}

// fromSignedOut handles the states in which no user is signed in.
func (r AuthenticationResolver) fromSignedOut(old state.AuthenticationState, event statemachine.Event) resolution[state.AuthenticationState] {
	switch e := event.(type) {
	case state.SignInEvent:
		switch e.Type.(type) {
		case state.InitiateSignInWithSRP, state.InitiateMigrateAuth, state.InitiateCustomSignIn:
			sub := r.SignIn.Resolve(state.SignInNotStarted{}, event)
			return next[state.AuthenticationState](state.SigningIn{State: sub.NewState}, sub.Actions...)
		}

	case state.SignUpEvent:
		switch e.Type.(type) {
		case state.InitiateSignUp, state.ConfirmSignUp:
			sub := r.SignUp.Resolve(state.SignUpNotStarted{}, event)
			return next[state.AuthenticationState](state.SigningUp{State: sub.NewState}, sub.Actions...)
		}

	case state.AuthenticationEvent:
		switch t := e.Type.(type) {
		case state.SignOutRequested:
			sub := r.SignOut.Resolve(state.SignOutNotStarted{}, state.SignOutEvent{ID: followUp(event, "SignOutGuest"), Type: state.SignOutGuest{}})
			return next[state.AuthenticationState](state.SigningOut{State: sub.NewState}, sub.Actions...)
		case state.FederateToIdentityPool:
			return next[state.AuthenticationState](state.FederatingToIdentityPool{Token: t.Token, IdentityID: t.IdentityID})
		case state.ClearFederationToIdentityPool:
			if _, failed := old.(state.AuthenticationError); failed {
				return next[state.AuthenticationState](state.ClearingFederation{}, clearStoreAction{federation: true})
			}
		}
	}
	return unchanged(old)
}

// fromSignedIn handles protected operations on a live session.
func (r AuthenticationResolver) fromSignedIn(data state.SignedInData, old state.AuthenticationState, event statemachine.Event) resolution[state.AuthenticationState] {
	switch e := event.(type) {
	case state.AuthenticationEvent:
		if t, ok := e.Type.(state.SignOutRequested); ok {
			start := state.SignOutEventType(state.RevokeToken{Data: data})
			if t.Options.GlobalSignOut {
				start = state.SignOutGlobally{Data: data}
			}
			sub := r.SignOut.Resolve(state.SignOutNotStarted{}, state.SignOutEvent{ID: followUp(event, state.VariantName(start)), Type: start})
			return next[state.AuthenticationState](state.SigningOut{Data: data, State: sub.NewState}, sub.Actions...)
		}
	case state.DeleteUserEvent:
		if _, ok := e.Type.(state.DeleteUser); ok {
			sub := r.DeleteUser.Resolve(data, state.DeleteUserNotStarted{}, event)
			return next[state.AuthenticationState](state.DeletingUser{Data: data, State: sub.NewState}, sub.Actions...)
		}
	}
	return unchanged(old)
}

func (r AuthenticationResolver) fromFederated(old state.AuthenticationState, event statemachine.Event) resolution[state.AuthenticationState] {
	e, ok := event.(state.AuthenticationEvent)
	if !ok {
		return unchanged(old)
	}
	switch t := e.Type.(type) {
	case state.FederateToIdentityPool:
		return next[state.AuthenticationState](state.FederatingToIdentityPool{Token: t.Token, IdentityID: t.IdentityID})
	case state.ClearFederationToIdentityPool:
		return next[state.AuthenticationState](state.ClearingFederation{}, clearStoreAction{federation: true})
	}
	return unchanged(old)
}

// initialAuthentication reconstructs the authentication state from the
// persisted credentials.
func initialAuthentication(cfg state.AuthConfiguration, stored state.Credentials) state.AuthenticationState {
	switch {
	case cfg.HasUserPool() && stored.HasUserPool():
		return state.SignedIn{Data: *stored.SignedIn}
	case cfg.HasIdentityPool() && stored.Kind == state.CredentialsIdentityPoolWithFederation:
		return state.FederatedToIdentityPool{}
	default:
		return state.SignedOut{}
	}
}

func isAuthenticationEvent[T state.AuthenticationEventType](event statemachine.Event) bool {
	e, ok := event.(state.AuthenticationEvent)
	if !ok {
		return false
	}
	_, ok = e.Type.(T)
	return ok
}

func clearFederation(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
	if err := env.Store.Delete(ctx); err != nil {
		env.logger().Warn("credential store delete failed",
			slog.String("action", "ClearFederation"),
			slog.String("error", err.Error()),
		)
		emit(ctx, d, env, state.NewAuthenticationEvent(state.ThrowAuthenticationError{
			Err: &state.AuthError{Kind: state.KindUnknown, Message: "clearing federated credentials failed", Err: err},
		}))
		return
	}
	emit(ctx, d, env, state.NewAuthenticationEvent(state.FederationCleared{}))
}
