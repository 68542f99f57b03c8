package state

// AuthenticationState tracks who the user is.
type AuthenticationState interface {
	isAuthenticationState()
}

type AuthenticationNotConfigured struct{}

type SignedOut struct {
	Data SignedOutData
}

type SigningUp struct {
	State SignUpState
}

type SigningIn struct {
	State SignInState
}

// SignedIn is the only state from which protected operations proceed.
type SignedIn struct {
	Data SignedInData
}

// SigningOut keeps the session being ended so that a failed local sign-out
// can fall back to it.
type SigningOut struct {
	Data  SignedInData
	State SignOutState
}

type DeletingUser struct {
	Data  SignedInData
	State DeleteUserState
}

type FederatingToIdentityPool struct {
	Token      FederatedToken
	IdentityID string
}

type FederatedToIdentityPool struct{}

type ClearingFederation struct{}

type AuthenticationError struct {
	Err *AuthError
}

func (AuthenticationNotConfigured) isAuthenticationState() {}
func (SignedOut) isAuthenticationState()                   {}
func (SigningUp) isAuthenticationState()                   {}
func (SigningIn) isAuthenticationState()                   {}
func (SignedIn) isAuthenticationState()                    {}
func (SigningOut) isAuthenticationState()                  {}
func (DeletingUser) isAuthenticationState()                {}
func (FederatingToIdentityPool) isAuthenticationState()    {}
func (FederatedToIdentityPool) isAuthenticationState()     {}
func (ClearingFederation) isAuthenticationState()          {}
func (AuthenticationError) isAuthenticationState()         {}

// AuthenticationEvent carries requests that only the authentication machine
// itself can act on. Flow-specific events (SignInEvent, SignUpEvent, ...) are
// routed to it as well and delegated to the matching child.
type AuthenticationEvent struct {
	ID   string
	Type AuthenticationEventType
}

func NewAuthenticationEvent(t AuthenticationEventType) AuthenticationEvent {
	return AuthenticationEvent{ID: NewEventID(), Type: t}
}

func (e AuthenticationEvent) EventID() string { return e.ID }
func (e AuthenticationEvent) EventName() string {
	return "AuthenticationEvent." + VariantName(e.Type)
}

type AuthenticationEventType interface {
	isAuthenticationEventType()
}

// InitializeAuthentication reconstructs the authentication state from the
// persisted credentials.
type InitializeAuthentication struct {
	Config AuthConfiguration
	Stored Credentials
}

type CancelSignIn struct{}

type CancelSignUp struct{}

// CancelSignOut returns a failed sign-out to the session it was ending.
type CancelSignOut struct{}

// SignOutOptions select the remote steps of a sign-out.
type SignOutOptions struct {
	GlobalSignOut bool
}

type SignOutRequested struct {
	Options SignOutOptions
}

type FederateToIdentityPool struct {
	Token      FederatedToken
	IdentityID string
}

type ClearFederationToIdentityPool struct{}

type FederationCleared struct{}

type ThrowAuthenticationError struct {
	Err *AuthError
}

func (InitializeAuthentication) isAuthenticationEventType()      {}
func (CancelSignIn) isAuthenticationEventType()                  {}
func (CancelSignUp) isAuthenticationEventType()                  {}
func (CancelSignOut) isAuthenticationEventType()                 {}
func (SignOutRequested) isAuthenticationEventType()              {}
func (FederateToIdentityPool) isAuthenticationEventType()        {}
func (ClearFederationToIdentityPool) isAuthenticationEventType() {}
func (FederationCleared) isAuthenticationEventType()             {}
func (ThrowAuthenticationError) isAuthenticationEventType()      {}
