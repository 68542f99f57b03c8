package state

import "time"

// SignInMethod names the sign-in sub-machine that produced a session.
type SignInMethod uint8

const (
	MethodUnknown SignInMethod = iota
	MethodSRP
	MethodUserPassword
	MethodCustom
)

func (m SignInMethod) String() string {
	switch m {
	case MethodSRP:
		return "srp"
	case MethodUserPassword:
		return "userPassword"
	case MethodCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// UserPoolTokens is the token set issued by the user pool.
type UserPoolTokens struct {
	IDToken      string    `json:"id_token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresWithin reports whether the tokens expire before now+buffer.
func (t UserPoolTokens) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return !now.Add(buffer).Before(t.ExpiresAt)
}

// SignedInData describes an authenticated user pool session.
type SignedInData struct {
	UserID     string         `json:"user_id"`
	Username   string         `json:"username"`
	SignedInAt time.Time      `json:"signed_in_at"`
	Method     SignInMethod   `json:"method"`
	Tokens     UserPoolTokens `json:"tokens"`
}

// SignedOutData records how the last session ended. Global sign-out and token
// revocation failures do not prevent a local sign-out and are reported here.
type SignedOutData struct {
	LastKnownUsername string
	GlobalSignOutErr  *AuthError
	RevokeTokenErr    *AuthError
}

// Partial reports whether any remote step of the sign-out failed.
func (d SignedOutData) Partial() bool {
	return d.GlobalSignOutErr != nil || d.RevokeTokenErr != nil
}

// AWSCredentials are the temporary credentials issued by the identity pool.
type AWSCredentials struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key"`
	SessionToken    string    `json:"session_token"`
	Expiration      time.Time `json:"expiration"`
}

// ExpiresWithin reports whether the credentials expire before now+buffer.
func (c AWSCredentials) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	if c.Expiration.IsZero() {
		return true
	}
	return !now.Add(buffer).Before(c.Expiration)
}

// FederatedToken is a third-party identity token exchanged with the identity pool.
type FederatedToken struct {
	Token    string `json:"token"`
	Provider string `json:"provider"`
}

// CodeDeliveryDetails describes where a confirmation code was sent.
type CodeDeliveryDetails struct {
	Destination   string
	Medium        string
	AttributeName string
}

// SignUpResult is the provider's answer to a sign-up or confirmation.
type SignUpResult struct {
	UserID       string
	Confirmed    bool
	CodeDelivery *CodeDeliveryDetails
}
