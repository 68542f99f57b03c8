package authmachine

import (
	"errors"

	"github.com/MrEthical07/authmachine/state"
)

var (
	// ErrEngineNotReady is returned when an operation is called on a closed or
	// unbuilt engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrMissingUserPoolClient is returned by Build when a user pool is configured without a client.
	ErrMissingUserPoolClient = errors.New("user pool client required")
	// ErrMissingIdentityPoolClient is returned by Build when an identity pool is configured without a client.
	ErrMissingIdentityPoolClient = errors.New("identity pool client required")
	// ErrMissingCredentialStore is returned by Build when no credential store or Redis client is set.
	ErrMissingCredentialStore = errors.New("credential store required")
	// ErrBuilderUsed is returned by a second call to Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrSignInInProgress is returned when a running sign-in cannot accept the request.
	ErrSignInInProgress = errors.New("sign-in in progress")
	// ErrAlreadySignedIn is returned by SignIn while a user is signed in.
	ErrAlreadySignedIn = errors.New("a user is already signed in")
	// ErrNotSignedIn is returned by operations that need a signed-in user.
	ErrNotSignedIn = errors.New("no user is signed in")
	// ErrOperationCancelled is returned when a competing call cancelled the flow being awaited.
	ErrOperationCancelled = errors.New("operation cancelled")
)

// Error kind sentinels. errors.Is matches any *state.AuthError of the kind.
var (
	ErrConfiguration  = state.ErrConfiguration
	ErrValidation     = state.ErrValidation
	ErrService        = state.ErrService
	ErrNotAuthorized  = state.ErrNotAuthorized
	ErrSessionExpired = state.ErrSessionExpired
	ErrInvalidState   = state.ErrInvalidState
	ErrUnknown        = state.ErrUnknown
)

// AuthError is the classified error returned by engine operations.
type AuthError = state.AuthError

// invalidState wraps sentinel in an invalid-state AuthError so that both
// errors.Is(err, sentinel) and errors.Is(err, ErrInvalidState) hold.
func invalidState(sentinel error) error {
	return &state.AuthError{Kind: state.KindInvalidState, Err: sentinel}
}

// flowError returns e as a plain error, keeping a nil *AuthError nil.
func flowError(e *state.AuthError) error {
	if e == nil {
		return nil
	}
	return e
}
