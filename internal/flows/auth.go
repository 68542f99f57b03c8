package flows

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// AuthResolver is the root resolver. It runs the configuration phases, routes
// flow events to the authentication or authorization child, and couples the
// two children where one flow's outcome starts another.
type AuthResolver struct {
	Authentication AuthenticationResolver
	Authorization  AuthorizationResolver
}

// NewResolver returns the fully composed root resolver.
func NewResolver() AuthResolver {
	return AuthResolver{
		Authentication: AuthenticationResolver{
			SignIn:     SignInResolver{},
			SignUp:     SignUpResolver{},
			SignOut:    SignOutResolver{},
			DeleteUser: DeleteUserResolver{SignOut: SignOutResolver{}},
		},
		Authorization: AuthorizationResolver{
			FetchSession: FetchAuthSessionResolver{},
		},
	}
}

func (r AuthResolver) Resolve(old state.AuthState, event statemachine.Event) resolution[state.AuthState] {
	switch s := old.(type) {
	case state.AuthNotConfigured:
		t, ok := authEvent[state.ConfigureAuth](event)
		if !ok {
			break
		}
		if !t.Config.HasUserPool() && !t.Config.HasIdentityPool() {
			err := state.NewConfigurationError("neither a user pool nor an identity pool is configured")
			return next[state.AuthState](state.AuthConfigured{
				Authentication: state.AuthenticationError{Err: err},
				Authorization:  state.AuthorizationError{Err: err, Credentials: state.NoCredentials()},
			})
		}
		return next[state.AuthState](state.ConfiguringAuthentication{
			Authentication: state.AuthenticationNotConfigured{},
		}, loadPersistedSessionAction(t.Config))

	case state.ConfiguringAuthentication:
		t, ok := authEvent[state.ConfigureAuthentication](event)
		if !ok {
			break
		}
		sub := r.Authentication.Resolve(s.Authentication, state.AuthenticationEvent{
			ID:   followUp(event, "InitializeAuthentication"),
			Type: state.InitializeAuthentication{Config: t.Config, Stored: t.Stored},
		})
		actions := append(sub.Actions, sendEvent("ConfigureAuthorization", state.AuthEvent{
			ID:   followUp(event, "ConfigureAuthorization"),
			Type: state.ConfigureAuthorization{Config: t.Config, Stored: t.Stored},
		}))
		return next[state.AuthState](state.ConfiguringAuthorization{
			Authentication: sub.NewState,
			Authorization:  state.AuthorizationNotConfigured{},
		}, actions...)

	case state.ConfiguringAuthorization:
		t, ok := authEvent[state.ConfigureAuthorization](event)
		if !ok {
			break
		}
		sub := r.Authorization.Resolve(s.Authorization, state.AuthorizationEvent{
			ID:   followUp(event, "InitializeAuthorization"),
			Type: state.InitializeAuthorization{Stored: t.Stored},
		})
		return next[state.AuthState](state.AuthConfigured{
			Authentication: s.Authentication,
			Authorization:  sub.NewState,
		}, sub.Actions...)

	case state.AuthConfigured:
		return r.configured(s, event)
	}
	return unchanged(old)
}

func (r AuthResolver) configured(old state.AuthConfigured, event statemachine.Event) resolution[state.AuthState] {
	authn, authz := old.Authentication, old.Authorization
	var actions []Action

	switch {
	case IsAuthenticationFlowEvent(event):
		sub := r.Authentication.Resolve(authn, event)
		authn, actions = sub.NewState, sub.Actions
	case IsAuthorizationFlowEvent(event):
		sub := r.Authorization.Resolve(authz, event)
		authz, actions = sub.NewState, sub.Actions
	default:
		return unchanged[state.AuthState](old)
	}

	authn, authz, actions = r.couple(old, event, authn, authz, actions)
	held, actions := holdStoreClear(old.HeldClear, authz, actions)
	return next[state.AuthState](state.AuthConfigured{
		Authentication: authn,
		Authorization:  authz,
		HeldClear:      held,
	}, actions...)
}

// holdStoreClear keeps credential store deletes behind a running fetch or
// save. A delete that raced a save would leave the saved session on disk
// after memory has signed out. The held delete is released on the first
// resolution that leaves authorization idle.
func holdStoreClear(held state.HeldClear, authz state.AuthorizationState, actions []Action) (state.HeldClear, []Action) {
	if authorizationBusy(authz) {
		kept := actions[:0:0]
		for _, a := range actions {
			c, ok := a.(clearStoreAction)
			if !ok {
				kept = append(kept, a)
				continue
			}
			held = state.HeldClear{Held: true, SignOut: c.signOut, Federation: c.federation}
		}
		return held, kept
	}
	if held.Held {
		actions = append(actions, clearStoreAction{signOut: held.SignOut, federation: held.Federation})
	}
	return state.HeldClear{}, actions
}

func authorizationBusy(s state.AuthorizationState) bool {
	switch s.(type) {
	case state.FetchingAuthSession, state.StoringCredentials:
		return true
	}
	return false
}

// couple applies the cross-flow rules to a freshly resolved pair of child
// states. Authorization requests are resolved inline so that both children
// change in the same published state.
func (r AuthResolver) couple(old state.AuthConfigured, event statemachine.Event, authn state.AuthenticationState, authz state.AuthorizationState, actions []Action) (state.AuthenticationState, state.AuthorizationState, []Action) {
	authorize := func(t state.AuthorizationEventType) {
		sub := r.Authorization.Resolve(authz, state.AuthorizationEvent{ID: followUp(event, state.VariantName(t)), Type: t})
		authz = sub.NewState
		actions = append(actions, sub.Actions...)
	}

	switch n := authn.(type) {
	case state.SignedIn:
		if _, was := old.Authentication.(state.SigningIn); was {
			authorize(state.FetchUserPoolSession{Data: n.Data})
		}
	case state.SignedOut:
		switch old.Authentication.(type) {
		case state.SigningOut, state.DeletingUser, state.ClearingFederation:
			authorize(state.ResetAuthorization{})
		}
	case state.FederatingToIdentityPool:
		if _, was := old.Authentication.(state.FederatingToIdentityPool); !was {
			authorize(state.StartFederation{Token: n.Token, IdentityID: n.IdentityID})
		}
	}

	if authzChanged(old.Authorization, authz) {
		switch z := authz.(type) {
		case state.SessionEstablished:
			switch a := authn.(type) {
			case state.FederatingToIdentityPool:
				if z.Credentials.Kind == state.CredentialsIdentityPoolWithFederation {
					authn = state.FederatedToIdentityPool{}
				}
			case state.SignedIn:
				if z.Credentials.HasUserPool() && z.Credentials.SignedIn.Username == a.Data.Username {
					authn = state.SignedIn{Data: *z.Credentials.SignedIn}
				}
			}
		case state.AuthorizationError:
			if _, federating := authn.(state.FederatingToIdentityPool); federating {
				authn = state.AuthenticationError{Err: z.Err}
			}
		}
	}
	return authn, authz, actions
}

func authzChanged(prev, cur state.AuthorizationState) bool {
	switch o := prev.(type) {
	case state.SessionEstablished:
		n, ok := cur.(state.SessionEstablished)
		return !ok || !sameCredentials(o.Credentials, n.Credentials)
	case state.AuthorizationError:
		n, ok := cur.(state.AuthorizationError)
		return !ok || o.Err != n.Err
	}
	switch cur.(type) {
	case state.SessionEstablished, state.AuthorizationError:
		return true
	}
	return false
}

func sameCredentials(a, b state.Credentials) bool {
	return a.Kind == b.Kind && a.IdentityID == b.IdentityID &&
		a.SignedIn == b.SignedIn && a.AWS == b.AWS && a.Federated == b.Federated
}

// IsAuthenticationFlowEvent reports whether event belongs to the
// authentication tree.
func IsAuthenticationFlowEvent(event statemachine.Event) bool {
	switch event.(type) {
	case state.AuthenticationEvent, state.SignInEvent, state.SRPSignInEvent, state.ChallengeEvent,
		state.SignUpEvent, state.SignOutEvent, state.DeleteUserEvent:
		return true
	}
	return false
}

// IsAuthorizationFlowEvent reports whether event belongs to the authorization
// tree.
func IsAuthorizationFlowEvent(event statemachine.Event) bool {
	switch event.(type) {
	case state.AuthorizationEvent, state.FetchAuthSessionEvent, state.FetchUserPoolTokensEvent, state.FetchIdentityEvent:
		return true
	}
	return false
}

func authEvent[T state.AuthEventType](event statemachine.Event) (T, bool) {
	var zero T
	e, ok := event.(state.AuthEvent)
	if !ok {
		return zero, false
	}
	t, ok := e.Type.(T)
	return t, ok
}

// loadPersistedSessionAction reads the stored credentials and hands them to
// the configuration phase. An unreadable record is treated as no session.
func loadPersistedSessionAction(cfg state.AuthConfiguration) Action {
	return action("LoadPersistedSession", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		stored, err := env.Store.Retrieve(ctx)
		switch {
		case err == nil:
		case errors.Is(err, credstore.ErrNotFound):
			stored = state.NoCredentials()
		default:
			env.logger().Warn("credential store retrieve failed",
				slog.String("action", "LoadPersistedSession"),
				slog.String("error", err.Error()),
			)
			if errors.Is(err, credstore.ErrCorrupt) {
				if derr := env.Store.Delete(ctx); derr != nil {
					env.logger().Warn("credential store delete failed",
						slog.String("action", "LoadPersistedSession"),
						slog.String("error", derr.Error()),
					)
				}
			}
			stored = state.NoCredentials()
		}

		emit(ctx, d, env, state.NewAuthEvent(state.ConfigureAuthentication{
			Config: cfg,
			Stored: usableCredentials(cfg, stored),
		}))
	})
}

// usableCredentials drops the parts of a stored record that the current
// configuration cannot serve.
func usableCredentials(cfg state.AuthConfiguration, c state.Credentials) state.Credentials {
	if !cfg.HasUserPool() && c.HasUserPool() {
		return state.NoCredentials()
	}
	if !cfg.HasIdentityPool() {
		switch {
		case c.HasUserPool():
			return state.UserPoolOnly(*c.SignedIn)
		case c.Kind != state.CredentialsNone:
			return state.NoCredentials()
		}
	}
	return c
}
