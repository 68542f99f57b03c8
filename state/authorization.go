package state

// AuthorizationState tracks the credentials issued for the current identity.
type AuthorizationState interface {
	isAuthorizationState()
}

type AuthorizationNotConfigured struct{}

// AuthorizationConfigured holds no credentials.
type AuthorizationConfigured struct{}

// FetchingAuthSession refreshes or obtains credentials. Existing is the record
// being replaced, if any.
type FetchingAuthSession struct {
	Existing Credentials
	State    FetchAuthSessionState
}

// StoringCredentials persists freshly fetched credentials before they are
// published as established.
type StoringCredentials struct {
	Credentials Credentials
}

type SessionEstablished struct {
	Credentials Credentials
}

// AuthorizationError keeps the last known credentials so that a later fetch
// can retry from them.
type AuthorizationError struct {
	Err         *AuthError
	Credentials Credentials
}

func (AuthorizationNotConfigured) isAuthorizationState() {}
func (AuthorizationConfigured) isAuthorizationState()    {}
func (FetchingAuthSession) isAuthorizationState()        {}
func (StoringCredentials) isAuthorizationState()         {}
func (SessionEstablished) isAuthorizationState()         {}
func (AuthorizationError) isAuthorizationState()         {}

type AuthorizationEvent struct {
	ID   string
	Type AuthorizationEventType
}

func NewAuthorizationEvent(t AuthorizationEventType) AuthorizationEvent {
	return AuthorizationEvent{ID: NewEventID(), Type: t}
}

func (e AuthorizationEvent) EventID() string { return e.ID }
func (e AuthorizationEvent) EventName() string {
	return "AuthorizationEvent." + VariantName(e.Type)
}

type AuthorizationEventType interface {
	isAuthorizationEventType()
}

type InitializeAuthorization struct {
	Stored Credentials
}

// FetchUserPoolSession obtains identity-pool credentials for a new sign-in.
type FetchUserPoolSession struct {
	Data SignedInData
}

// FetchUnauthSession obtains guest credentials.
type FetchUnauthSession struct{}

type RefreshSession struct {
	Credentials Credentials
	Force       bool
}

type StartFederation struct {
	Token      FederatedToken
	IdentityID string
}

// CredentialsStored is emitted once fetched credentials have been persisted.
type CredentialsStored struct {
	Credentials Credentials
}

// ResetAuthorization drops the current credentials after a sign-out.
type ResetAuthorization struct{}

type ThrowAuthorizationError struct {
	Err         *AuthError
	Credentials Credentials
}

func (InitializeAuthorization) isAuthorizationEventType() {}
func (FetchUserPoolSession) isAuthorizationEventType()    {}
func (FetchUnauthSession) isAuthorizationEventType()      {}
func (RefreshSession) isAuthorizationEventType()          {}
func (StartFederation) isAuthorizationEventType()         {}
func (CredentialsStored) isAuthorizationEventType()       {}
func (ResetAuthorization) isAuthorizationEventType()      {}
func (ThrowAuthorizationError) isAuthorizationEventType() {}
