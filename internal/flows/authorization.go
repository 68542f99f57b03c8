package flows

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// AuthorizationResolver tracks the credentials issued for the current
// identity. Fetched credentials are persisted before they are published as
// established.
type AuthorizationResolver struct {
	FetchSession FetchAuthSessionResolver
}

func (r AuthorizationResolver) Resolve(old state.AuthorizationState, event statemachine.Event) resolution[state.AuthorizationState] {
	if _, ok := old.(state.AuthorizationNotConfigured); ok {
		if t, ok := authorizationEvent[state.InitializeAuthorization](event); ok {
			if t.Stored.IsEmpty() {
				return next[state.AuthorizationState](state.AuthorizationConfigured{})
			}
			return next[state.AuthorizationState](state.SessionEstablished{Credentials: t.Stored})
		}
		return unchanged(old)
	}

	if e, ok := event.(state.AuthorizationEvent); ok {
		switch t := e.Type.(type) {
		case state.ResetAuthorization:
			return next[state.AuthorizationState](state.AuthorizationConfigured{})
		case state.ThrowAuthorizationError:
			return next[state.AuthorizationState](state.AuthorizationError{Err: t.Err, Credentials: t.Credentials})
		}
	}

	switch s := old.(type) {
	case state.AuthorizationConfigured, state.SessionEstablished, state.AuthorizationError:
		return r.startFetch(old, event)

	case state.FetchingAuthSession:
		sub := r.FetchSession.Resolve(s.State, event)
		switch n := sub.NewState.(type) {
		case state.FetchAuthSessionFetched:
			return next[state.AuthorizationState](state.StoringCredentials{Credentials: n.Credentials},
				append(sub.Actions, storeCredentialsAction(n.Credentials))...)
		case state.FetchAuthSessionError:
			return next[state.AuthorizationState](state.AuthorizationError{Err: n.Err, Credentials: s.Existing}, sub.Actions...)
		}
		return next[state.AuthorizationState](state.FetchingAuthSession{Existing: s.Existing, State: sub.NewState}, sub.Actions...)

	case state.StoringCredentials:
		if t, ok := authorizationEvent[state.CredentialsStored](event); ok {
			return next[state.AuthorizationState](state.SessionEstablished{Credentials: t.Credentials})
		}
	}
	return unchanged(old)
}

// startFetch handles the requests accepted while no fetch is running.
func (r AuthorizationResolver) startFetch(old state.AuthorizationState, event statemachine.Event) resolution[state.AuthorizationState] {
	e, ok := event.(state.AuthorizationEvent)
	if !ok {
		return unchanged(old)
	}
	existing := credentialsOf(old)

	var start state.FetchAuthSessionEventType
	switch t := e.Type.(type) {
	case state.FetchUserPoolSession:
		data := t.Data
		start = state.FetchIdentity{SignedIn: &data}
	case state.FetchUnauthSession:
		var id string
		if existing.Kind == state.CredentialsIdentityPoolOnly {
			id = existing.IdentityID
		}
		start = state.FetchIdentity{IdentityID: id}
	case state.StartFederation:
		token := t.Token
		start = state.FetchIdentity{Federated: &token, IdentityID: t.IdentityID}
	case state.RefreshSession:
		switch c := t.Credentials; {
		case c.HasUserPool():
			start = state.FetchUserPoolTokens{Credentials: c, Force: t.Force}
		case c.Kind == state.CredentialsIdentityPoolWithFederation && c.Federated != nil:
			token := *c.Federated
			start = state.FetchIdentity{Federated: &token, IdentityID: c.IdentityID}
		case c.Kind == state.CredentialsIdentityPoolOnly:
			start = state.FetchIdentity{IdentityID: c.IdentityID}
		default:
			return next[state.AuthorizationState](state.AuthorizationError{
				Err:         state.NewInvalidStateError("no session to refresh"),
				Credentials: existing,
			})
		}
	default:
		return unchanged(old)
	}

	sub := r.FetchSession.Resolve(state.FetchAuthSessionNotStarted{}, state.FetchAuthSessionEvent{ID: followUp(event, state.VariantName(start)), Type: start})
	return next[state.AuthorizationState](state.FetchingAuthSession{Existing: existing, State: sub.NewState}, sub.Actions...)
}

func credentialsOf(s state.AuthorizationState) state.Credentials {
	switch s := s.(type) {
	case state.SessionEstablished:
		return s.Credentials
	case state.StoringCredentials:
		return s.Credentials
	case state.FetchingAuthSession:
		return s.Existing
	case state.AuthorizationError:
		return s.Credentials
	}
	return state.NoCredentials()
}

func authorizationEvent[T state.AuthorizationEventType](event statemachine.Event) (T, bool) {
	var zero T
	e, ok := event.(state.AuthorizationEvent)
	if !ok {
		return zero, false
	}
	t, ok := e.Type.(T)
	return t, ok
}

func storeCredentialsAction(creds state.Credentials) Action {
	return action("PersistCredentials", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		if err := env.Store.Save(ctx, creds); err != nil {
			env.logger().Warn("credential store save failed",
				slog.String("action", "PersistCredentials"),
				slog.String("error", err.Error()),
			)
			emit(ctx, d, env, state.NewAuthorizationEvent(state.ThrowAuthorizationError{
				Err:         &state.AuthError{Kind: state.KindUnknown, Message: "persisting credentials failed", Err: err},
				Credentials: creds,
			}))
			return
		}
		emit(ctx, d, env, state.NewAuthorizationEvent(state.CredentialsStored{Credentials: creds}))
	})
}
