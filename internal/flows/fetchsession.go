package flows

import (
	"context"
	"maps"

	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// FetchAuthSessionResolver composes the user pool token refresh and the
// identity pool credential fetch. A finished token refresh chains into the
// identity step through a FetchIdentity event.
type FetchAuthSessionResolver struct {
	Tokens   UserPoolTokensResolver
	Identity IdentityResolver
}

func (r FetchAuthSessionResolver) Resolve(old state.FetchAuthSessionState, event statemachine.Event) resolution[state.FetchAuthSessionState] {
	if e, ok := event.(state.FetchAuthSessionEvent); ok {
		if t, ok := e.Type.(state.ThrowFetchAuthSessionError); ok && !fetchSessionDone(old) {
			return next[state.FetchAuthSessionState](state.FetchAuthSessionError{Err: t.Err})
		}
	}

	switch s := old.(type) {
	case state.FetchAuthSessionNotStarted:
		e, ok := event.(state.FetchAuthSessionEvent)
		if !ok {
			break
		}
		switch t := e.Type.(type) {
		case state.FetchUserPoolTokens:
			if !t.Credentials.HasUserPool() {
				return next[state.FetchAuthSessionState](state.FetchAuthSessionError{
					Err: state.NewInvalidStateError("no user pool session to refresh"),
				})
			}
			sub := r.Tokens.Resolve(state.UserPoolTokensConfiguring{}, state.FetchUserPoolTokensEvent{
				ID:   followUp(event, "RefreshTokens"),
				Type: state.RefreshTokens{Data: *t.Credentials.SignedIn, Force: t.Force},
			})
			return next[state.FetchAuthSessionState](state.FetchingUserPoolTokens{Tokens: sub.NewState, IdentityID: t.Credentials.IdentityID}, sub.Actions...)
		case state.FetchIdentity:
			return r.startIdentity(t)
		case state.FetchedAuthSession:
			return next[state.FetchAuthSessionState](state.FetchAuthSessionFetched{Credentials: t.Credentials})
		}

	case state.FetchingUserPoolTokens:
		if e, ok := event.(state.FetchAuthSessionEvent); ok {
			if t, ok := e.Type.(state.FetchIdentity); ok {
				if _, fetched := s.Tokens.(state.UserPoolTokensFetched); fetched {
					return r.startIdentity(t)
				}
			}
			if t, ok := e.Type.(state.FetchedAuthSession); ok {
				return next[state.FetchAuthSessionState](state.FetchAuthSessionFetched{Credentials: t.Credentials})
			}
			break
		}
		sub := r.Tokens.Resolve(s.Tokens, event)
		switch n := sub.NewState.(type) {
		case state.UserPoolTokensFetched:
			if _, was := s.Tokens.(state.UserPoolTokensFetched); !was {
				data := n.Data
				sub.Actions = append(sub.Actions, sendEvent("FetchIdentity", state.FetchAuthSessionEvent{
					ID:   followUp(event, "FetchIdentity"),
					Type: state.FetchIdentity{SignedIn: &data, IdentityID: s.IdentityID},
				}))
			}
		case state.UserPoolTokensError:
			return next[state.FetchAuthSessionState](state.FetchAuthSessionError{Err: n.Err}, sub.Actions...)
		}
		return next[state.FetchAuthSessionState](state.FetchingUserPoolTokens{Tokens: sub.NewState, IdentityID: s.IdentityID}, sub.Actions...)

	case state.FetchingIdentity:
		if e, ok := event.(state.FetchAuthSessionEvent); ok {
			if t, ok := e.Type.(state.FetchedAuthSession); ok {
				return next[state.FetchAuthSessionState](state.FetchAuthSessionFetched{Credentials: t.Credentials})
			}
			break
		}
		sub := r.Identity.Resolve(s.Identity, event)
		switch n := sub.NewState.(type) {
		case state.IdentityFetched:
			return next[state.FetchAuthSessionState](state.FetchAuthSessionFetched{
				Credentials: combine(s.SignedIn, s.Federated, n.IdentityID, n.AWS),
			}, sub.Actions...)
		case state.IdentityError:
			return next[state.FetchAuthSessionState](state.FetchAuthSessionError{Err: n.Err}, sub.Actions...)
		}
		return next[state.FetchAuthSessionState](state.FetchingIdentity{Identity: sub.NewState, SignedIn: s.SignedIn, Federated: s.Federated}, sub.Actions...)
	}

	// FetchAuthSessionFetched and FetchAuthSessionError are terminal.
	return unchanged(old)
}

func (r FetchAuthSessionResolver) startIdentity(t state.FetchIdentity) resolution[state.FetchAuthSessionState] {
	return next[state.FetchAuthSessionState](state.FetchingIdentity{
		Identity:  state.IdentityConfiguring{},
		SignedIn:  t.SignedIn,
		Federated: t.Federated,
	}, configureIdentityAction(t))
}

func fetchSessionDone(s state.FetchAuthSessionState) bool {
	switch s.(type) {
	case state.FetchAuthSessionFetched, state.FetchAuthSessionError:
		return true
	}
	return false
}

func combine(signedIn *state.SignedInData, federated *state.FederatedToken, identityID string, aws state.AWSCredentials) state.Credentials {
	switch {
	case signedIn != nil:
		return state.UserPoolAndIdentityPool(*signedIn, identityID, aws)
	case federated != nil:
		return state.IdentityPoolWithFederation(*federated, identityID, aws)
	default:
		return state.IdentityPoolOnly(identityID, aws)
	}
}

// configureIdentityAction decides how the identity step proceeds. Without an
// identity pool the user pool session alone is the result.
func configureIdentityAction(t state.FetchIdentity) Action {
	return action("ConfigureIdentity", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		if !env.Config.HasIdentityPool() {
			if t.SignedIn == nil {
				emit(ctx, d, env, state.NewFetchAuthSessionEvent(state.ThrowFetchAuthSessionError{
					Err: state.NewConfigurationError("identity pool is not configured"),
				}))
				return
			}
			emit(ctx, d, env, state.NewFetchAuthSessionEvent(state.FetchedAuthSession{Credentials: state.UserPoolOnly(*t.SignedIn)}))
			return
		}

		logins := loginsFor(env, t.SignedIn, t.Federated)
		if t.IdentityID != "" {
			emit(ctx, d, env, state.NewFetchIdentityEvent(state.FetchAWSCredentials{IdentityID: t.IdentityID, Logins: logins}))
			return
		}
		emit(ctx, d, env, state.NewFetchIdentityEvent(state.FetchIdentityID{Logins: logins}))
	})
}

func loginsFor(env *Environment, signedIn *state.SignedInData, federated *state.FederatedToken) map[string]string {
	switch {
	case signedIn != nil && env.Config.UserPool != nil:
		return map[string]string{env.Config.UserPool.ProviderName(): signedIn.Tokens.IDToken}
	case federated != nil:
		return map[string]string{federated.Provider: federated.Token}
	}
	return nil
}

// UserPoolTokensResolver refreshes user pool tokens.
type UserPoolTokensResolver struct{}

func (UserPoolTokensResolver) Resolve(old state.FetchUserPoolTokensState, event statemachine.Event) resolution[state.FetchUserPoolTokensState] {
	e, ok := event.(state.FetchUserPoolTokensEvent)
	if !ok {
		return unchanged(old)
	}
	switch old.(type) {
	case state.UserPoolTokensConfiguring:
		switch t := e.Type.(type) {
		case state.RefreshTokens:
			return next[state.FetchUserPoolTokensState](state.UserPoolTokensRefreshing{}, refreshUserPoolTokensAction(t.Data, t.Force))
		case state.ThrowTokensError:
			return next[state.FetchUserPoolTokensState](state.UserPoolTokensError{Err: t.Err})
		}
	case state.UserPoolTokensRefreshing:
		switch t := e.Type.(type) {
		case state.TokensFetched:
			return next[state.FetchUserPoolTokensState](state.UserPoolTokensFetched{Data: t.Data})
		case state.ThrowTokensError:
			return next[state.FetchUserPoolTokensState](state.UserPoolTokensError{Err: t.Err})
		}
	}
	return unchanged(old)
}

func refreshUserPoolTokensAction(data state.SignedInData, force bool) Action {
	return action("RefreshUserPoolTokens", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		if !force && !data.Tokens.ExpiresWithin(env.now(), env.ExpiryBuffer) {
			emit(ctx, d, env, state.NewFetchUserPoolTokensEvent(state.TokensFetched{Data: data}))
			return
		}

		tokens, err := env.UserPool.RefreshTokens(ctx, provider.RefreshTokensInput{
			Username:     data.Username,
			RefreshToken: data.Tokens.RefreshToken,
		})
		if err != nil {
			warn(env, "RefreshUserPoolTokens", data.Username, err)
			emit(ctx, d, env, state.NewFetchUserPoolTokensEvent(state.ThrowTokensError{Err: authError(err)}))
			return
		}
		if tokens.RefreshToken == "" {
			tokens.RefreshToken = data.Tokens.RefreshToken
		}

		refreshed, aerr := signedInData(tokens, data.Method, data.Username, data.SignedInAt)
		if aerr != nil {
			emit(ctx, d, env, state.NewFetchUserPoolTokensEvent(state.ThrowTokensError{Err: aerr}))
			return
		}
		emit(ctx, d, env, state.NewFetchUserPoolTokensEvent(state.TokensFetched{Data: refreshed}))
	})
}

// IdentityResolver obtains an identity id and its AWS credentials.
type IdentityResolver struct{}

func (IdentityResolver) Resolve(old state.FetchIdentityState, event statemachine.Event) resolution[state.FetchIdentityState] {
	e, ok := event.(state.FetchIdentityEvent)
	if !ok {
		return unchanged(old)
	}
	if t, ok := e.Type.(state.ThrowIdentityError); ok {
		switch old.(type) {
		case state.IdentityFetched, state.IdentityError:
		default:
			return next[state.FetchIdentityState](state.IdentityError{Err: t.Err})
		}
	}

	switch old.(type) {
	case state.IdentityConfiguring:
		switch t := e.Type.(type) {
		case state.FetchIdentityID:
			return next[state.FetchIdentityState](state.FetchingIdentityID{}, getIDAction(t.Logins))
		case state.FetchAWSCredentials:
			return next[state.FetchIdentityState](state.FetchingAWSCredentials{IdentityID: t.IdentityID}, getCredentialsAction(t.IdentityID, t.Logins))
		}
	case state.FetchingIdentityID:
		if t, ok := e.Type.(state.IdentityIDFetched); ok {
			return next[state.FetchIdentityState](state.FetchingAWSCredentials{IdentityID: t.IdentityID}, getCredentialsAction(t.IdentityID, t.Logins))
		}
	case state.FetchingAWSCredentials:
		if t, ok := e.Type.(state.AWSCredentialsFetched); ok {
			return next[state.FetchIdentityState](state.IdentityFetched{IdentityID: t.IdentityID, AWS: t.AWS})
		}
	}
	return unchanged(old)
}

func getIDAction(logins map[string]string) Action {
	return action("GetID", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		id, err := env.IdentityPool.GetID(ctx, maps.Clone(logins))
		if err != nil {
			warn(env, "GetID", "", err)
			emit(ctx, d, env, state.NewFetchIdentityEvent(state.ThrowIdentityError{Err: authError(err)}))
			return
		}
		emit(ctx, d, env, state.NewFetchIdentityEvent(state.IdentityIDFetched{IdentityID: id, Logins: logins}))
	})
}

func getCredentialsAction(identityID string, logins map[string]string) Action {
	return action("GetCredentialsForIdentity", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		aws, err := env.IdentityPool.GetCredentialsForIdentity(ctx, identityID, maps.Clone(logins))
		if err != nil {
			warn(env, "GetCredentialsForIdentity", "", err)
			emit(ctx, d, env, state.NewFetchIdentityEvent(state.ThrowIdentityError{Err: authError(err)}))
			return
		}
		emit(ctx, d, env, state.NewFetchIdentityEvent(state.AWSCredentialsFetched{IdentityID: identityID, AWS: aws}))
	})
}
