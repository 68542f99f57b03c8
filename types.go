package authmachine

import (
	"maps"
	"time"

	"github.com/MrEthical07/authmachine/state"
)

// AuthFlowType selects the sign-in method.
type AuthFlowType uint8

const (
	// AuthFlowSRP proves the password without sending it. It is the default.
	AuthFlowSRP AuthFlowType = iota
	// AuthFlowUserPassword sends the password to the provider, which is
	// required for users migrated from a legacy directory on first sign-in.
	AuthFlowUserPassword
	// AuthFlowCustom starts a custom challenge sequence. The password is
	// optional.
	AuthFlowCustom
)

func (f AuthFlowType) String() string {
	switch f {
	case AuthFlowUserPassword:
		return "userPassword"
	case AuthFlowCustom:
		return "custom"
	default:
		return "srp"
	}
}

// SignInInput is the input of [Engine.SignIn].
type SignInInput struct {
	Username string
	Password string
	Flow     AuthFlowType
	// ClientMetadata is passed to the provider's triggers.
	ClientMetadata map[string]string
}

// SignInStep is what the caller must do next to finish a sign-in.
type SignInStep string

const (
	SignInStepDone                             SignInStep = "DONE"
	SignInStepConfirmSignInWithSMSMFACode      SignInStep = "CONFIRM_SIGN_IN_WITH_SMS_MFA_CODE"
	SignInStepConfirmSignInWithTOTPCode        SignInStep = "CONFIRM_SIGN_IN_WITH_TOTP_CODE"
	SignInStepContinueSignInWithMFASelection   SignInStep = "CONTINUE_SIGN_IN_WITH_MFA_SELECTION"
	SignInStepConfirmSignInWithCustomChallenge SignInStep = "CONFIRM_SIGN_IN_WITH_CUSTOM_CHALLENGE"
	SignInStepConfirmSignInWithNewPassword     SignInStep = "CONFIRM_SIGN_IN_WITH_NEW_PASSWORD"
)

// SignInResult reports the outcome of [Engine.SignIn] and [Engine.ConfirmSignIn].
type SignInResult struct {
	NextStep SignInStep
	// Parameters are the public challenge parameters, such as the masked
	// delivery destination of an MFA code.
	Parameters map[string]string
	// User is set once NextStep is SignInStepDone.
	User *AuthUser
}

// IsSignedIn reports whether the sign-in is complete.
func (r SignInResult) IsSignedIn() bool {
	return r.NextStep == SignInStepDone
}

// ConfirmSignInInput answers the pending sign-in challenge.
type ConfirmSignInInput struct {
	Answer string
	// Attributes are required user attributes, used with a new password
	// challenge.
	Attributes     map[string]string
	ClientMetadata map[string]string
}

// AuthUser is the signed-in user.
type AuthUser struct {
	UserID     string
	Username   string
	Method     state.SignInMethod
	SignedInAt time.Time
}

// SignUpInput is the input of [Engine.SignUp].
type SignUpInput struct {
	Username       string
	Password       string
	Attributes     map[string]string
	ValidationData map[string]string
	ClientMetadata map[string]string
}

// ConfirmSignUpInput is the input of [Engine.ConfirmSignUp]. The username may
// be left empty while the engine is waiting for the code of its own sign-up.
type ConfirmSignUpInput struct {
	Username       string
	Code           string
	ClientMetadata map[string]string
}

// SignUpStep is what the caller must do next to finish a sign-up.
type SignUpStep string

const (
	SignUpStepDone          SignUpStep = "DONE"
	SignUpStepConfirmSignUp SignUpStep = "CONFIRM_SIGN_UP"
)

type SignUpResult struct {
	NextStep     SignUpStep
	Username     string
	UserID       string
	CodeDelivery *state.CodeDeliveryDetails
}

// SignOutOptions select the remote steps of [Engine.SignOut].
type SignOutOptions struct {
	// GlobalSignOut invalidates the user's tokens on every device.
	GlobalSignOut bool
}

// SignOutResult reports remote steps that failed. The local session is
// always cleared when SignOut returns no error.
type SignOutResult struct {
	Username         string
	GlobalSignOutErr error
	RevokeTokenErr   error
}

// Partial reports whether a remote step failed.
func (r SignOutResult) Partial() bool {
	return r.GlobalSignOutErr != nil || r.RevokeTokenErr != nil
}

// FetchAuthSessionOptions control [Engine.FetchAuthSession].
type FetchAuthSessionOptions struct {
	// ForceRefresh refreshes credentials even when they are not about to
	// expire.
	ForceRefresh bool
}

// AuthSession is a snapshot of the credentials held by the engine.
type AuthSession struct {
	IsSignedIn bool
	Kind       state.CredentialsKind
	UserID     string
	Username   string
	Tokens     *state.UserPoolTokens
	IdentityID string
	AWS        *state.AWSCredentials
	// FederatedProvider names the third-party provider of a federated session.
	FederatedProvider string
}

// FederateOptions control [Engine.FederateToIdentityPool].
type FederateOptions struct {
	// IdentityID reuses a known identity instead of looking it up.
	IdentityID string
}

// FederationResult is the identity obtained by federation.
type FederationResult struct {
	IdentityID string
	AWS        state.AWSCredentials
}

func sessionFrom(c state.Credentials) AuthSession {
	s := AuthSession{
		Kind:       c.Kind,
		IdentityID: c.IdentityID,
	}
	if c.HasUserPool() {
		tokens := c.SignedIn.Tokens
		s.IsSignedIn = true
		s.UserID = c.SignedIn.UserID
		s.Username = c.SignedIn.Username
		s.Tokens = &tokens
	}
	if c.AWS != nil {
		aws := *c.AWS
		s.AWS = &aws
	}
	if c.Federated != nil {
		s.FederatedProvider = c.Federated.Provider
	}
	return s
}

func userFrom(d state.SignedInData) *AuthUser {
	return &AuthUser{
		UserID:     d.UserID,
		Username:   d.Username,
		Method:     d.Method,
		SignedInAt: d.SignedInAt,
	}
}

func signInStep(name state.ChallengeName) SignInStep {
	switch name {
	case state.ChallengeSMSMFA:
		return SignInStepConfirmSignInWithSMSMFACode
	case state.ChallengeSoftwareTokenMFA:
		return SignInStepConfirmSignInWithTOTPCode
	case state.ChallengeSelectMFAType:
		return SignInStepContinueSignInWithMFASelection
	case state.ChallengeNewPassword:
		return SignInStepConfirmSignInWithNewPassword
	default:
		return SignInStepConfirmSignInWithCustomChallenge
	}
}

func challengeResult(c state.AuthChallenge) SignInResult {
	return SignInResult{
		NextStep:   signInStep(c.Name),
		Parameters: maps.Clone(c.Parameters),
	}
}
