package state

// AuthState is the root of the state tree.
type AuthState interface {
	isAuthState()
}

// AuthNotConfigured is the initial root state.
type AuthNotConfigured struct{}

// ConfiguringAuthentication waits for the persisted session to be loaded.
type ConfiguringAuthentication struct {
	Authentication AuthenticationState
}

// ConfiguringAuthorization waits for the authorization machine to be set up.
type ConfiguringAuthorization struct {
	Authentication AuthenticationState
	Authorization  AuthorizationState
}

// AuthConfigured holds the two live sub-machines.
type AuthConfigured struct {
	Authentication AuthenticationState
	Authorization  AuthorizationState

	// HeldClear is a local credential clear that waits for the authorization
	// machine to finish fetching or saving credentials.
	HeldClear HeldClear
}

// HeldClear records a credential store delete requested while a save could
// still be in flight. The zero value holds nothing.
type HeldClear struct {
	Held bool

	// SignOut is the local sign-out step to run. It is unused when
	// Federation is set.
	SignOut SignOutLocally

	// Federation marks a clear-federation delete.
	Federation bool
}

func (AuthNotConfigured) isAuthState()         {}
func (ConfiguringAuthentication) isAuthState() {}
func (ConfiguringAuthorization) isAuthState()  {}
func (AuthConfigured) isAuthState()            {}

// AuthEvent drives the configuration phases of the root machine.
type AuthEvent struct {
	ID   string
	Type AuthEventType
}

func NewAuthEvent(t AuthEventType) AuthEvent {
	return AuthEvent{ID: NewEventID(), Type: t}
}

func (e AuthEvent) EventID() string   { return e.ID }
func (e AuthEvent) EventName() string { return "AuthEvent." + VariantName(e.Type) }

// AuthEventType is the payload union of [AuthEvent].
type AuthEventType interface {
	isAuthEventType()
}

// ConfigureAuth starts configuration.
type ConfigureAuth struct {
	Config AuthConfiguration
}

// ConfigureAuthentication carries the loaded persisted credentials.
type ConfigureAuthentication struct {
	Config AuthConfiguration
	Stored Credentials
}

// ConfigureAuthorization finishes configuration.
type ConfigureAuthorization struct {
	Config AuthConfiguration
	Stored Credentials
}

func (ConfigureAuth) isAuthEventType()           {}
func (ConfigureAuthentication) isAuthEventType() {}
func (ConfigureAuthorization) isAuthEventType()  {}
