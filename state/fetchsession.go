package state

// FetchAuthSessionState composes the user pool token refresh and the identity
// pool credential fetch.
type FetchAuthSessionState interface {
	isFetchAuthSessionState()
}

type FetchAuthSessionNotStarted struct{}

// FetchingUserPoolTokens keeps the identity id of the credentials being
// refreshed so that the identity step can reuse it.
type FetchingUserPoolTokens struct {
	Tokens     FetchUserPoolTokensState
	IdentityID string
}

type FetchingIdentity struct {
	Identity  FetchIdentityState
	SignedIn  *SignedInData
	Federated *FederatedToken
}

type FetchAuthSessionFetched struct {
	Credentials Credentials
}

type FetchAuthSessionError struct {
	Err *AuthError
}

func (FetchAuthSessionNotStarted) isFetchAuthSessionState() {}
func (FetchingUserPoolTokens) isFetchAuthSessionState()     {}
func (FetchingIdentity) isFetchAuthSessionState()           {}
func (FetchAuthSessionFetched) isFetchAuthSessionState()    {}
func (FetchAuthSessionError) isFetchAuthSessionState()      {}

type FetchAuthSessionEvent struct {
	ID   string
	Type FetchAuthSessionEventType
}

func NewFetchAuthSessionEvent(t FetchAuthSessionEventType) FetchAuthSessionEvent {
	return FetchAuthSessionEvent{ID: NewEventID(), Type: t}
}

func (e FetchAuthSessionEvent) EventID() string { return e.ID }
func (e FetchAuthSessionEvent) EventName() string {
	return "FetchAuthSessionEvent." + VariantName(e.Type)
}

type FetchAuthSessionEventType interface {
	isFetchAuthSessionEventType()
}

type FetchUserPoolTokens struct {
	Credentials Credentials
	Force       bool
}

// FetchIdentity starts the identity step. An empty IdentityID asks the
// identity pool for one.
type FetchIdentity struct {
	SignedIn   *SignedInData
	Federated  *FederatedToken
	IdentityID string
}

type FetchedAuthSession struct {
	Credentials Credentials
}

type ThrowFetchAuthSessionError struct {
	Err *AuthError
}

func (FetchUserPoolTokens) isFetchAuthSessionEventType()        {}
func (FetchIdentity) isFetchAuthSessionEventType()              {}
func (FetchedAuthSession) isFetchAuthSessionEventType()         {}
func (ThrowFetchAuthSessionError) isFetchAuthSessionEventType() {}

// FetchUserPoolTokensState refreshes the user pool tokens.
type FetchUserPoolTokensState interface {
	isFetchUserPoolTokensState()
}

type UserPoolTokensConfiguring struct{}

type UserPoolTokensRefreshing struct{}

type UserPoolTokensFetched struct {
	Data SignedInData
}

type UserPoolTokensError struct {
	Err *AuthError
}

func (UserPoolTokensConfiguring) isFetchUserPoolTokensState() {}
func (UserPoolTokensRefreshing) isFetchUserPoolTokensState()  {}
func (UserPoolTokensFetched) isFetchUserPoolTokensState()     {}
func (UserPoolTokensError) isFetchUserPoolTokensState()       {}

type FetchUserPoolTokensEvent struct {
	ID   string
	Type FetchUserPoolTokensEventType
}

func NewFetchUserPoolTokensEvent(t FetchUserPoolTokensEventType) FetchUserPoolTokensEvent {
	return FetchUserPoolTokensEvent{ID: NewEventID(), Type: t}
}

func (e FetchUserPoolTokensEvent) EventID() string { return e.ID }
func (e FetchUserPoolTokensEvent) EventName() string {
	return "FetchUserPoolTokensEvent." + VariantName(e.Type)
}

type FetchUserPoolTokensEventType interface {
	isFetchUserPoolTokensEventType()
}

// RefreshTokens refreshes Data. Without Force, tokens outside the expiry
// buffer are returned as they are.
type RefreshTokens struct {
	Data  SignedInData
	Force bool
}

type TokensFetched struct {
	Data SignedInData
}

type ThrowTokensError struct {
	Err *AuthError
}

func (RefreshTokens) isFetchUserPoolTokensEventType()    {}
func (TokensFetched) isFetchUserPoolTokensEventType()    {}
func (ThrowTokensError) isFetchUserPoolTokensEventType() {}

// FetchIdentityState obtains an identity id and its AWS credentials.
type FetchIdentityState interface {
	isFetchIdentityState()
}

type IdentityConfiguring struct{}

type FetchingIdentityID struct{}

type FetchingAWSCredentials struct {
	IdentityID string
}

type IdentityFetched struct {
	IdentityID string
	AWS        AWSCredentials
}

type IdentityError struct {
	Err *AuthError
}

func (IdentityConfiguring) isFetchIdentityState()    {}
func (FetchingIdentityID) isFetchIdentityState()     {}
func (FetchingAWSCredentials) isFetchIdentityState() {}
func (IdentityFetched) isFetchIdentityState()        {}
func (IdentityError) isFetchIdentityState()          {}

type FetchIdentityEvent struct {
	ID   string
	Type FetchIdentityEventType
}

func NewFetchIdentityEvent(t FetchIdentityEventType) FetchIdentityEvent {
	return FetchIdentityEvent{ID: NewEventID(), Type: t}
}

func (e FetchIdentityEvent) EventID() string { return e.ID }
func (e FetchIdentityEvent) EventName() string {
	return "FetchIdentityEvent." + VariantName(e.Type)
}

type FetchIdentityEventType interface {
	isFetchIdentityEventType()
}

type FetchIdentityID struct {
	Logins map[string]string
}

type FetchAWSCredentials struct {
	IdentityID string
	Logins     map[string]string
}

type IdentityIDFetched struct {
	IdentityID string
	Logins     map[string]string
}

type AWSCredentialsFetched struct {
	IdentityID string
	AWS        AWSCredentials
}

type ThrowIdentityError struct {
	Err *AuthError
}

func (FetchIdentityID) isFetchIdentityEventType()       {}
func (FetchAWSCredentials) isFetchIdentityEventType()   {}
func (IdentityIDFetched) isFetchIdentityEventType()     {}
func (AWSCredentialsFetched) isFetchIdentityEventType() {}
func (ThrowIdentityError) isFetchIdentityEventType()    {}
