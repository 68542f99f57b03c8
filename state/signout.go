package state

// SignOutState ends a session: global sign-out, then token revocation, then
// clearing the persisted credentials.
type SignOutState interface {
	isSignOutState()
}

type SignOutNotStarted struct{}

type SigningOutGlobally struct{}

type RevokingToken struct{}

// BuildingRevokeTokenError skips revocation after a failed global sign-out.
type BuildingRevokeTokenError struct{}

type SigningOutLocally struct {
	Username string
}

type SignOutSignedOut struct {
	Data SignedOutData
}

type SignOutError struct {
	Err *AuthError
}

func (SignOutNotStarted) isSignOutState()        {}
func (SigningOutGlobally) isSignOutState()       {}
func (RevokingToken) isSignOutState()            {}
func (BuildingRevokeTokenError) isSignOutState() {}
func (SigningOutLocally) isSignOutState()        {}
func (SignOutSignedOut) isSignOutState()         {}
func (SignOutError) isSignOutState()             {}

type SignOutEvent struct {
	ID   string
	Type SignOutEventType
}

func NewSignOutEvent(t SignOutEventType) SignOutEvent {
	return SignOutEvent{ID: NewEventID(), Type: t}
}

func (e SignOutEvent) EventID() string   { return e.ID }
func (e SignOutEvent) EventName() string { return "SignOutEvent." + VariantName(e.Type) }

type SignOutEventType interface {
	isSignOutEventType()
}

type SignOutGlobally struct {
	Data SignedInData
}

type RevokeToken struct {
	Data      SignedInData
	GlobalErr *AuthError
}

type GlobalSignOutFailed struct {
	Data SignedInData
	Err  *AuthError
}

type SignOutLocally struct {
	Username  string
	GlobalErr *AuthError
	RevokeErr *AuthError
}

// SignOutGuest clears identity-pool credentials held without a user session.
type SignOutGuest struct{}

type SignedOutSuccess struct {
	Data SignedOutData
}

type SignedOutFailure struct {
	Err *AuthError
}

func (SignOutGlobally) isSignOutEventType()     {}
func (RevokeToken) isSignOutEventType()         {}
func (GlobalSignOutFailed) isSignOutEventType() {}
func (SignOutLocally) isSignOutEventType()      {}
func (SignOutGuest) isSignOutEventType()        {}
func (SignedOutSuccess) isSignOutEventType()    {}
func (SignedOutFailure) isSignOutEventType()    {}
