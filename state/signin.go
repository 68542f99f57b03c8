package state

// SignInState is a union over the sign-in method sub-machines. Method states
// are visible while in progress. Success and failure are normalized into
// SignInSignedIn and SignInError.
type SignInState interface {
	isSignInState()
}

type SignInNotStarted struct{}

type SigningInWithSRP struct {
	SRP SRPSignInState
}

type SigningInWithMigration struct {
	Migration MigrateSignInState
}

type SigningInWithCustom struct {
	Custom CustomSignInState
}

type ResolvingChallenge struct {
	Challenge SignInChallengeState
}

type SignInSignedIn struct {
	Data SignedInData
}

type SignInError struct {
	Err *AuthError
}

func (SignInNotStarted) isSignInState()       {}
func (SigningInWithSRP) isSignInState()       {}
func (SigningInWithMigration) isSignInState() {}
func (SigningInWithCustom) isSignInState()    {}
func (ResolvingChallenge) isSignInState()     {}
func (SignInSignedIn) isSignInState()         {}
func (SignInError) isSignInState()            {}

// SRPSignInState is the password-verifier handshake sub-machine.
type SRPSignInState interface {
	isSRPSignInState()
}

type SRPNotStarted struct{}

type SRPInitiating struct {
	Username string
}

type SRPRespondingPasswordVerifier struct {
	Username string
}

type SRPSignedIn struct {
	Data SignedInData
}

type SRPError struct {
	Err *AuthError
}

func (SRPNotStarted) isSRPSignInState()                 {}
func (SRPInitiating) isSRPSignInState()                 {}
func (SRPRespondingPasswordVerifier) isSRPSignInState() {}
func (SRPSignedIn) isSRPSignInState()                   {}
func (SRPError) isSRPSignInState()                      {}

// MigrateSignInState is the plain username/password sub-machine used for
// users migrated from a legacy directory.
type MigrateSignInState interface {
	isMigrateSignInState()
}

type MigrateNotStarted struct{}

type MigrateSigningIn struct {
	Username string
}

type MigrateSignedIn struct {
	Data SignedInData
}

type MigrateError struct {
	Err *AuthError
}

func (MigrateNotStarted) isMigrateSignInState() {}
func (MigrateSigningIn) isMigrateSignInState()  {}
func (MigrateSignedIn) isMigrateSignInState()   {}
func (MigrateError) isMigrateSignInState()      {}

// CustomSignInState is the custom-challenge sub-machine.
type CustomSignInState interface {
	isCustomSignInState()
}

type CustomNotStarted struct{}

type CustomInitiating struct {
	Username string
}

type CustomSignedIn struct {
	Data SignedInData
}

type CustomError struct {
	Err *AuthError
}

func (CustomNotStarted) isCustomSignInState() {}
func (CustomInitiating) isCustomSignInState() {}
func (CustomSignedIn) isCustomSignInState()   {}
func (CustomError) isCustomSignInState()      {}

// ChallengeName is the provider's name for a sign-in challenge.
type ChallengeName string

const (
	ChallengeSMSMFA           ChallengeName = "SMS_MFA"
	ChallengeSoftwareTokenMFA ChallengeName = "SOFTWARE_TOKEN_MFA"
	ChallengeSelectMFAType    ChallengeName = "SELECT_MFA_TYPE"
	ChallengeCustom           ChallengeName = "CUSTOM_CHALLENGE"
	ChallengeNewPassword      ChallengeName = "NEW_PASSWORD_REQUIRED"
	ChallengePasswordVerifier ChallengeName = "PASSWORD_VERIFIER"
)

// AuthChallenge is a step the provider requires before issuing tokens.
type AuthChallenge struct {
	Name       ChallengeName
	Username   string
	Session    string
	Parameters map[string]string
	Method     SignInMethod
}

// SRPHandshake is the client half of an SRP exchange, hex encoded. It is
// opaque to the state machine and passed back to the provider client.
type SRPHandshake struct {
	PrivateA string
	PublicA  string
}

// SignInChallengeState answers provider challenges. A recoverable failure keeps
// the challenge so that the answer can be retried.
type SignInChallengeState interface {
	isSignInChallengeState()
}

type ChallengeWaitingForAnswer struct {
	Challenge AuthChallenge
}

type ChallengeVerifying struct {
	Challenge AuthChallenge
}

type ChallengeVerified struct {
	Data SignedInData
}

type ChallengeError struct {
	Challenge AuthChallenge
	Err       *AuthError
}

func (ChallengeWaitingForAnswer) isSignInChallengeState() {}
func (ChallengeVerifying) isSignInChallengeState()        {}
func (ChallengeVerified) isSignInChallengeState()         {}
func (ChallengeError) isSignInChallengeState()            {}

// SignInEventData is the caller input for every sign-in method.
type SignInEventData struct {
	Username       string
	Password       string
	ClientMetadata map[string]string
}

// SignInEvent drives the sign-in sub-machines.
type SignInEvent struct {
	ID   string
	Type SignInEventType
}

func NewSignInEvent(t SignInEventType) SignInEvent {
	return SignInEvent{ID: NewEventID(), Type: t}
}

func (e SignInEvent) EventID() string   { return e.ID }
func (e SignInEvent) EventName() string { return "SignInEvent." + VariantName(e.Type) }

type SignInEventType interface {
	isSignInEventType()
}

type InitiateSignInWithSRP struct {
	Data SignInEventData
}

type InitiateMigrateAuth struct {
	Data SignInEventData
}

type InitiateCustomSignIn struct {
	Data SignInEventData
}

type ReceivedChallenge struct {
	Challenge AuthChallenge
}

type FinalizeSignIn struct {
	Data SignedInData
}

type ThrowAuthError struct {
	Err *AuthError
}

func (InitiateSignInWithSRP) isSignInEventType() {}
func (InitiateMigrateAuth) isSignInEventType()   {}
func (InitiateCustomSignIn) isSignInEventType()  {}
func (ReceivedChallenge) isSignInEventType()     {}
func (FinalizeSignIn) isSignInEventType()        {}
func (ThrowAuthError) isSignInEventType()        {}

// SRPStateData is carried between the two SRP round trips.
type SRPStateData struct {
	Username       string
	Password       string
	ClientMetadata map[string]string
}

// SRPSignInEvent drives the SRP-specific steps.
type SRPSignInEvent struct {
	ID   string
	Type SRPSignInEventType
}

func NewSRPSignInEvent(t SRPSignInEventType) SRPSignInEvent {
	return SRPSignInEvent{ID: NewEventID(), Type: t}
}

func (e SRPSignInEvent) EventID() string   { return e.ID }
func (e SRPSignInEvent) EventName() string { return "SRPSignInEvent." + VariantName(e.Type) }

type SRPSignInEventType interface {
	isSRPSignInEventType()
}

type RespondPasswordVerifier struct {
	Data      SRPStateData
	Challenge AuthChallenge
	Handshake SRPHandshake
}

type ThrowPasswordVerifierError struct {
	Err *AuthError
}

func (RespondPasswordVerifier) isSRPSignInEventType()    {}
func (ThrowPasswordVerifierError) isSRPSignInEventType() {}

// ChallengeEvent drives the challenge sub-machine.
type ChallengeEvent struct {
	ID   string
	Type ChallengeEventType
}

func NewChallengeEvent(t ChallengeEventType) ChallengeEvent {
	return ChallengeEvent{ID: NewEventID(), Type: t}
}

func (e ChallengeEvent) EventID() string   { return e.ID }
func (e ChallengeEvent) EventName() string { return "ChallengeEvent." + VariantName(e.Type) }

type ChallengeEventType interface {
	isChallengeEventType()
}

type VerifyChallengeAnswer struct {
	Answer         string
	Attributes     map[string]string
	ClientMetadata map[string]string
}

type ThrowChallengeError struct {
	Err *AuthError
}

func (VerifyChallengeAnswer) isChallengeEventType() {}
func (ThrowChallengeError) isChallengeEventType()   {}
