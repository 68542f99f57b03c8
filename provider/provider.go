// Package provider declares the identity-provider calls the state machine
// depends on.
//
// Actions in internal/flows call these interfaces and translate the results
// into events. Implementations must return *state.AuthError (or an error
// wrapping one) so that failures arrive classified; anything else is treated
// as [state.KindUnknown].
//
// Package cognito implements the interfaces against Amazon Cognito. Package
// providertest is an in-memory implementation for tests and local runs.
package provider

import (
	"context"

	"github.com/MrEthical07/authmachine/state"
)

// UserPoolClient is the user directory: sign-in, sign-up, tokens and
// account removal.
type UserPoolClient interface {
	// InitiateSRPAuth starts the SRP handshake. The result carries the
	// PASSWORD_VERIFIER challenge and the client handshake to pass back to
	// RespondToPasswordVerifier.
	InitiateSRPAuth(ctx context.Context, in InitiateAuthInput) (AuthResult, error)
	RespondToPasswordVerifier(ctx context.Context, in PasswordVerifierInput) (AuthResult, error)

	// InitiateUserPasswordAuth sends the password directly. It is used for
	// users that are migrated on first sign-in.
	InitiateUserPasswordAuth(ctx context.Context, in InitiateAuthInput) (AuthResult, error)
	InitiateCustomAuth(ctx context.Context, in InitiateAuthInput) (AuthResult, error)
	RespondToAuthChallenge(ctx context.Context, in ChallengeResponseInput) (AuthResult, error)

	// RefreshTokens exchanges a refresh token for new ID and access tokens.
	// The returned refresh token is empty when the provider did not rotate it.
	RefreshTokens(ctx context.Context, in RefreshTokensInput) (state.UserPoolTokens, error)

	SignUp(ctx context.Context, in SignUpInput) (state.SignUpResult, error)
	ConfirmSignUp(ctx context.Context, in ConfirmSignUpInput) (state.SignUpResult, error)
	ResendSignUpCode(ctx context.Context, in ResendSignUpCodeInput) (state.CodeDeliveryDetails, error)

	GlobalSignOut(ctx context.Context, accessToken string) error
	RevokeToken(ctx context.Context, refreshToken string) error
	DeleteUser(ctx context.Context, accessToken string) error
}

// IdentityPoolClient exchanges identities for temporary AWS credentials.
// A nil or empty logins map requests guest access.
type IdentityPoolClient interface {
	GetID(ctx context.Context, logins map[string]string) (string, error)
	GetCredentialsForIdentity(ctx context.Context, identityID string, logins map[string]string) (state.AWSCredentials, error)
}

// AuthResult is the outcome of one sign-in round trip: either Tokens or a
// Challenge is set.
type AuthResult struct {
	Tokens    *state.UserPoolTokens
	Challenge *state.AuthChallenge
	// Handshake is set by InitiateSRPAuth only.
	Handshake *state.SRPHandshake
}

type InitiateAuthInput struct {
	Username       string
	Password       string
	ClientMetadata map[string]string
}

type PasswordVerifierInput struct {
	Username       string
	Password       string
	Challenge      state.AuthChallenge
	Handshake      state.SRPHandshake
	ClientMetadata map[string]string
}

type ChallengeResponseInput struct {
	Challenge      state.AuthChallenge
	Answer         string
	Attributes     map[string]string
	ClientMetadata map[string]string
}

type RefreshTokensInput struct {
	Username     string
	RefreshToken string
}

type SignUpInput struct {
	Username       string
	Password       string
	Attributes     map[string]string
	ValidationData map[string]string
	ClientMetadata map[string]string
}

type ConfirmSignUpInput struct {
	Username       string
	Code           string
	ClientMetadata map[string]string
}

type ResendSignUpCodeInput struct {
	Username       string
	ClientMetadata map[string]string
}
