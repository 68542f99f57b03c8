package authmachine

import (
	"log/slog"

	"github.com/MrEthical07/authmachine/internal/audit"
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// Hub event types delivered to the [AuditSink].
const (
	AuditEventSignedIn          = "signed_in"
	AuditEventSignedOut         = "signed_out"
	AuditEventSessionExpired    = "session_expired"
	AuditEventUserDeleted       = "user_deleted"
	AuditEventSignedUp          = "signed_up"
	AuditEventFederated         = "federated"
	AuditEventFederationCleared = "federation_cleared"
)

// metricNone marks hub events without a counter. Metrics ignores it.
const metricNone = metricIDCount

type hubEvent struct {
	eventType  string
	metric     MetricID
	success    bool
	err        *state.AuthError
	userID     string
	username   string
	identityID string
	metadata   map[string]string
}

// observe runs on the dispatch goroutine after every resolution. It must not
// block: the audit dispatcher is asynchronous.
func (e *Engine) observe(tr statemachine.Transition[state.AuthState]) {
	e.metricInc(MetricEventsResolved)
	e.metrics.Add(MetricActionsScheduled, uint64(len(tr.Actions)))
	e.metrics.Observe(MetricResolveLatency, tr.Duration)
	if !tr.Changed {
		return
	}
	e.metricInc(MetricStateTransitions)

	old, ok := tr.Old.(state.AuthConfigured)
	if !ok {
		return
	}
	cur, ok := tr.New.(state.AuthConfigured)
	if !ok {
		return
	}
	e.publishAll(tr.Event, hubEvents(old, cur))
}

func (e *Engine) publish(trigger statemachine.Event, h hubEvent) {
	e.metricInc(h.metric)

	var code string
	if h.err != nil {
		code = h.err.Code
		if code == "" {
			code = h.err.Kind.String()
		}
	}

	attrs := []any{
		slog.String("event", h.eventType),
		slog.String("event_id", trigger.EventID()),
		slog.Bool("success", h.success),
	}
	if h.username != "" {
		attrs = append(attrs, slog.String("username", h.username))
	}
	if code != "" {
		attrs = append(attrs, slog.String("error", code))
	}
	e.logger.Info("auth event", attrs...)

	e.audit.Emit(audit.Event{
		Timestamp:  e.now().UTC(),
		EventType:  h.eventType,
		EventID:    trigger.EventID(),
		UserID:     h.userID,
		Username:   h.username,
		IdentityID: h.identityID,
		Success:    h.success,
		Error:      code,
		Metadata:   h.metadata,
	})
}

// hubEvents derives the lifecycle events of one published transition.
func hubEvents(old, cur state.AuthConfigured) []hubEvent {
	var out []hubEvent

	switch a := cur.Authentication.(type) {
	case state.SignedIn:
		if _, was := old.Authentication.(state.SigningIn); was {
			out = append(out, hubEvent{
				eventType: AuditEventSignedIn,
				metric:    MetricSignInSuccess,
				success:   true,
				userID:    a.Data.UserID,
				username:  a.Data.Username,
				metadata:  map[string]string{"method": a.Data.Method.String()},
			})
		}

	case state.SigningIn:
		if err := signInErr(a); err != nil && err != signInErrOf(old.Authentication) {
			out = append(out, hubEvent{eventType: AuditEventSignedIn, metric: MetricSignInFailure, err: err})
		}

	case state.SigningUp:
		switch s := a.State.(type) {
		case state.SignedUp:
			if !signUpIn[state.SignedUp](old.Authentication) {
				out = append(out, hubEvent{
					eventType: AuditEventSignedUp,
					metric:    MetricSignUpSuccess,
					success:   true,
					userID:    s.Result.UserID,
					username:  s.Username,
				})
			}
		case state.SignUpError:
			if !signUpIn[state.SignUpError](old.Authentication) {
				out = append(out, hubEvent{eventType: AuditEventSignedUp, metric: MetricSignUpFailure, err: s.Err})
			}
		}

	case state.SignedOut:
		switch o := old.Authentication.(type) {
		case state.SigningOut:
			h := hubEvent{
				eventType: AuditEventSignedOut,
				metric:    MetricSignOut,
				success:   true,
				userID:    o.Data.UserID,
				username:  a.Data.LastKnownUsername,
			}
			if a.Data.Partial() {
				h.metadata = map[string]string{"partial": "true"}
			}
			out = append(out, h)
		case state.DeletingUser:
			out = append(out, hubEvent{
				eventType: AuditEventUserDeleted,
				metric:    MetricUserDeleted,
				success:   true,
				userID:    o.Data.UserID,
				username:  o.Data.Username,
			})
		case state.ClearingFederation:
			out = append(out, hubEvent{
				eventType:  AuditEventFederationCleared,
				metric:     metricNone,
				success:    true,
				identityID: identityOf(old.Authorization),
			})
		}

	case state.DeletingUser:
		if s, ok := a.State.(state.DeleteUserError); ok {
			if o, was := old.Authentication.(state.DeletingUser); !was || !deleteFailed(o) {
				out = append(out, hubEvent{
					eventType: AuditEventUserDeleted,
					metric:    metricNone,
					err:       s.Err,
					userID:    a.Data.UserID,
					username:  a.Data.Username,
				})
			}
		}

	case state.FederatedToIdentityPool:
		if _, was := old.Authentication.(state.FederatingToIdentityPool); was {
			out = append(out, hubEvent{
				eventType:  AuditEventFederated,
				metric:     MetricFederationSuccess,
				success:    true,
				identityID: identityOf(cur.Authorization),
			})
		}

	case state.AuthenticationError:
		if _, was := old.Authentication.(state.FederatingToIdentityPool); was {
			out = append(out, hubEvent{eventType: AuditEventFederated, metric: MetricFederationFailure, err: a.Err})
		}
	}

	switch z := cur.Authorization.(type) {
	case state.SessionEstablished:
		if _, was := old.Authorization.(state.StoringCredentials); was {
			out = append(out, hubEvent{metric: MetricSessionRefreshSuccess})
		}
	case state.AuthorizationError:
		switch old.Authorization.(type) {
		case state.FetchingAuthSession, state.StoringCredentials:
			out = append(out, hubEvent{metric: MetricSessionRefreshFailure})
			if z.Err != nil && z.Err.Kind == state.KindSessionExpired {
				h := hubEvent{
					eventType:  AuditEventSessionExpired,
					metric:     metricNone,
					err:        z.Err,
					identityID: z.Credentials.IdentityID,
				}
				if z.Credentials.HasUserPool() {
					h.userID = z.Credentials.SignedIn.UserID
					h.username = z.Credentials.SignedIn.Username
				}
				out = append(out, h)
			}
		}
	}
	return out
}

func (e *Engine) publishAll(trigger statemachine.Event, hs []hubEvent) {
	for _, h := range hs {
		if h.eventType == "" {
			e.metricInc(h.metric)
			continue
		}
		e.publish(trigger, h)
	}
}

func signInErr(s state.SigningIn) *state.AuthError {
	switch s := s.State.(type) {
	case state.SignInError:
		return s.Err
	case state.ResolvingChallenge:
		if ch, ok := s.Challenge.(state.ChallengeError); ok {
			return ch.Err
		}
	}
	return nil
}

func signInErrOf(s state.AuthenticationState) *state.AuthError {
	if in, ok := s.(state.SigningIn); ok {
		return signInErr(in)
	}
	return nil
}

func signUpIn[T state.SignUpState](s state.AuthenticationState) bool {
	up, ok := s.(state.SigningUp)
	if !ok {
		return false
	}
	_, ok = up.State.(T)
	return ok
}

func deleteFailed(s state.DeletingUser) bool {
	_, ok := s.State.(state.DeleteUserError)
	return ok
}

func identityOf(s state.AuthorizationState) string {
	switch s := s.(type) {
	case state.SessionEstablished:
		return s.Credentials.IdentityID
	case state.StoringCredentials:
		return s.Credentials.IdentityID
	case state.AuthorizationError:
		return s.Credentials.IdentityID
	}
	return ""
}
