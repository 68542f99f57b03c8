package flows

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/jwt"
	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// Environment is the set of collaborators available to actions.
type Environment struct {
	Config       state.AuthConfiguration
	UserPool     provider.UserPoolClient
	IdentityPool provider.IdentityPoolClient
	Store        credstore.Store
	Logger       *slog.Logger
	Now          func() time.Time
	// ExpiryBuffer refreshes credentials this long before they expire.
	ExpiryBuffer time.Duration
}

func (e *Environment) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Environment) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// Action is an action run with an [Environment].
type Action = statemachine.Action[*Environment]

type resolution[S any] = statemachine.Resolution[S, *Environment]

func unchanged[S any](s S) resolution[S] {
	return statemachine.From[S, *Environment](s)
}

func next[S any](s S, actions ...Action) resolution[S] {
	return resolution[S]{NewState: s, Actions: actions}
}

func action(name string, fn func(ctx context.Context, d statemachine.Dispatcher, env *Environment)) Action {
	return statemachine.ActionFunc[*Environment]{Name: name, Fn: fn}
}

// emit sends a follow-up event. A closed machine drops it silently.
func emit(ctx context.Context, d statemachine.Dispatcher, env *Environment, event statemachine.Event) {
	if err := d.Send(ctx, event); err != nil {
		env.logger().Debug("follow-up event dropped",
			slog.String("event", event.EventName()),
			slog.String("event_id", event.EventID()),
			slog.String("error", err.Error()),
		)
	}
}

// sendEvent is an action that emits a fixed event. Parent resolvers use it to
// chain flows.
func sendEvent(name string, event statemachine.Event) Action {
	return sendEventAction{name: name, event: event}
}

type sendEventAction struct {
	name  string
	event statemachine.Event
}

func (a sendEventAction) Identifier() string { return a.name }

func (a sendEventAction) Execute(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
	emit(ctx, d, env, a.event)
}

// followUp returns the ID for an event built while resolving trigger.
func followUp(trigger statemachine.Event, step string) string {
	return state.FollowUpEventID(trigger.EventID(), step)
}

// signedInData derives the session record from freshly issued tokens. The
// subject and username come from the ID token; fallbackUsername is used when
// the token carries none.
func signedInData(tokens state.UserPoolTokens, method state.SignInMethod, fallbackUsername string, now time.Time) (state.SignedInData, *state.AuthError) {
	claims, err := jwt.ParseUnverified(tokens.IDToken)
	if err != nil {
		return state.SignedInData{}, &state.AuthError{Kind: state.KindService, Code: "InvalidIdToken", Message: "identity token could not be parsed", Err: err}
	}
	username := claims.Username
	if username == "" {
		username = fallbackUsername
	}
	return state.SignedInData{
		UserID:     claims.Subject,
		Username:   username,
		SignedInAt: now,
		Method:     method,
		Tokens:     tokens,
	}, nil
}

func authError(err error) *state.AuthError {
	return state.AsAuthError(err)
}
