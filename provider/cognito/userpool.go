// Package cognito implements the provider interfaces against Amazon Cognito
// user pools and identity pools using aws-sdk-go-v2.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
)

// ErrInvalidConfig is returned when a pool configuration lacks required fields.
var ErrInvalidConfig = errors.New("cognito: invalid pool configuration")

// UserPoolAPI is the subset of the user pool SDK client used here.
type UserPoolAPI interface {
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, params *cip.RespondToAuthChallengeInput, optFns ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error)
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, params *cip.ResendConfirmationCodeInput, optFns ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
	RevokeToken(ctx context.Context, params *cip.RevokeTokenInput, optFns ...func(*cip.Options)) (*cip.RevokeTokenOutput, error)
	DeleteUser(ctx context.Context, params *cip.DeleteUserInput, optFns ...func(*cip.Options)) (*cip.DeleteUserOutput, error)
}

// Option configures the clients in this package.
type Option func(*options)

type options struct {
	userPoolAPI UserPoolAPI
	identityAPI IdentityAPI
	loadOptions []func(*config.LoadOptions) error
	random      io.Reader
	now         func() time.Time
}

// WithUserPoolAPI sets a pre-configured SDK client. Useful for tests.
func WithUserPoolAPI(api UserPoolAPI) Option {
	return func(o *options) { o.userPoolAPI = api }
}

// WithIdentityAPI sets a pre-configured SDK client. Useful for tests.
func WithIdentityAPI(api IdentityAPI) Option {
	return func(o *options) { o.identityAPI = api }
}

// WithLoadOption adds an AWS config load option.
func WithLoadOption(opt func(*config.LoadOptions) error) Option {
	return func(o *options) { o.loadOptions = append(o.loadOptions, opt) }
}

// WithRandom replaces the SRP randomness source.
func WithRandom(r io.Reader) Option {
	return func(o *options) { o.random = r }
}

// WithClock replaces the clock used for token expiry and SRP timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) *options {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// UserPool implements provider.UserPoolClient.
type UserPool struct {
	api    UserPoolAPI
	cfg    state.UserPoolConfiguration
	random io.Reader
	now    func() time.Time
}

var _ provider.UserPoolClient = (*UserPool)(nil)

// NewUserPool builds a user pool client. Without WithUserPoolAPI the default
// AWS configuration chain is loaded for cfg.Region.
func NewUserPool(ctx context.Context, cfg state.UserPoolConfiguration, opts ...Option) (*UserPool, error) {
	if cfg.PoolID == "" || cfg.AppClientID == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}
	endpoint, err := cfg.EndpointURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	o := buildOptions(opts)

	api := o.userPoolAPI
	if api == nil {
		loadOpts := append([]func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}, o.loadOptions...)
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, err
		}
		api = cip.NewFromConfig(awsCfg, func(co *cip.Options) {
			if endpoint != "" {
				co.BaseEndpoint = aws.String(endpoint)
			}
		})
	}

	return &UserPool{api: api, cfg: cfg, random: o.random, now: o.now}, nil
}

func (p *UserPool) authParams(username string) map[string]string {
	params := map[string]string{"USERNAME": username}
	if p.cfg.AppClientSecret != "" {
		params["SECRET_HASH"] = secretHash(username, p.cfg.AppClientID, p.cfg.AppClientSecret)
	}
	return params
}

func (p *UserPool) secretHashFor(username string) *string {
	if p.cfg.AppClientSecret == "" {
		return nil
	}
	return aws.String(secretHash(username, p.cfg.AppClientID, p.cfg.AppClientSecret))
}

func (p *UserPool) InitiateSRPAuth(ctx context.Context, in provider.InitiateAuthInput) (provider.AuthResult, error) {
	a, A, err := srpStart(p.random)
	if err != nil {
		return provider.AuthResult{}, &state.AuthError{Kind: state.KindUnknown, Message: "srp start", Err: err}
	}

	params := p.authParams(in.Username)
	params["SRP_A"] = A.Text(16)

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       ciptypes.AuthFlowTypeUserSrpAuth,
		ClientId:       aws.String(p.cfg.AppClientID),
		AuthParameters: params,
		ClientMetadata: in.ClientMetadata,
	})
	if err != nil {
		return provider.AuthResult{}, mapError("InitiateAuth", err)
	}

	res := p.authResult(out.AuthenticationResult, out.ChallengeName, out.ChallengeParameters, out.Session, in.Username, state.MethodSRP)
	res.Handshake = &state.SRPHandshake{PrivateA: a.Text(16), PublicA: A.Text(16)}
	return res, nil
}

func (p *UserPool) RespondToPasswordVerifier(ctx context.Context, in provider.PasswordVerifierInput) (provider.AuthResult, error) {
	params := in.Challenge.Parameters
	a, okA := new(big.Int).SetString(in.Handshake.PrivateA, 16)
	A, okB := new(big.Int).SetString(in.Handshake.PublicA, 16)
	if !okA || !okB {
		return provider.AuthResult{}, state.NewValidationError("handshake", "malformed SRP handshake")
	}

	userID := params["USER_ID_FOR_SRP"]
	if userID == "" {
		userID = in.Username
	}
	claim, err := srpPasswordClaim(srpClaimInput{
		PoolID:       p.cfg.PoolID,
		UserIDForSRP: userID,
		Password:     in.Password,
		PrivateA:     a,
		PublicA:      A,
		SaltHex:      params["SALT"],
		ServerBHex:   params["SRP_B"],
		SecretBlock:  params["SECRET_BLOCK"],
		Now:          p.now(),
	})
	if err != nil {
		return provider.AuthResult{}, state.NewServiceError("", "password verifier challenge", false, err)
	}

	username := params["USERNAME"]
	if username == "" {
		username = in.Username
	}
	responses := p.authParams(username)
	responses["PASSWORD_CLAIM_SECRET_BLOCK"] = claim.SecretBlock
	responses["PASSWORD_CLAIM_SIGNATURE"] = claim.Signature
	responses["TIMESTAMP"] = claim.Timestamp

	out, err := p.api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ChallengeName:      ciptypes.ChallengeNameTypePasswordVerifier,
		ClientId:           aws.String(p.cfg.AppClientID),
		ChallengeResponses: responses,
		Session:            optional(in.Challenge.Session),
		ClientMetadata:     in.ClientMetadata,
	})
	if err != nil {
		return provider.AuthResult{}, mapError("RespondToAuthChallenge", err)
	}
	return p.authResult(out.AuthenticationResult, out.ChallengeName, out.ChallengeParameters, out.Session, username, state.MethodSRP), nil
}

func (p *UserPool) InitiateUserPasswordAuth(ctx context.Context, in provider.InitiateAuthInput) (provider.AuthResult, error) {
	params := p.authParams(in.Username)
	params["PASSWORD"] = in.Password

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       ciptypes.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.cfg.AppClientID),
		AuthParameters: params,
		ClientMetadata: in.ClientMetadata,
	})
	if err != nil {
		return provider.AuthResult{}, mapError("InitiateAuth", err)
	}
	return p.authResult(out.AuthenticationResult, out.ChallengeName, out.ChallengeParameters, out.Session, in.Username, state.MethodUserPassword), nil
}

func (p *UserPool) InitiateCustomAuth(ctx context.Context, in provider.InitiateAuthInput) (provider.AuthResult, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       ciptypes.AuthFlowTypeCustomAuth,
		ClientId:       aws.String(p.cfg.AppClientID),
		AuthParameters: p.authParams(in.Username),
		ClientMetadata: in.ClientMetadata,
	})
	if err != nil {
		return provider.AuthResult{}, mapError("InitiateAuth", err)
	}
	return p.authResult(out.AuthenticationResult, out.ChallengeName, out.ChallengeParameters, out.Session, in.Username, state.MethodCustom), nil
}

func (p *UserPool) RespondToAuthChallenge(ctx context.Context, in provider.ChallengeResponseInput) (provider.AuthResult, error) {
	username := in.Challenge.Username
	responses := p.authParams(username)
	switch in.Challenge.Name {
	case state.ChallengeSMSMFA:
		responses["SMS_MFA_CODE"] = in.Answer
	case state.ChallengeSoftwareTokenMFA:
		responses["SOFTWARE_TOKEN_MFA_CODE"] = in.Answer
	case state.ChallengeSelectMFAType:
		responses["ANSWER"] = in.Answer
	case state.ChallengeNewPassword:
		responses["NEW_PASSWORD"] = in.Answer
		for k, v := range in.Attributes {
			responses["userAttributes."+k] = v
		}
	default:
		responses["ANSWER"] = in.Answer
	}

	out, err := p.api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ChallengeName:      ciptypes.ChallengeNameType(in.Challenge.Name),
		ClientId:           aws.String(p.cfg.AppClientID),
		ChallengeResponses: responses,
		Session:            optional(in.Challenge.Session),
		ClientMetadata:     in.ClientMetadata,
	})
	if err != nil {
		return provider.AuthResult{}, mapError("RespondToAuthChallenge", err)
	}
	return p.authResult(out.AuthenticationResult, out.ChallengeName, out.ChallengeParameters, out.Session, username, in.Challenge.Method), nil
}

func (p *UserPool) RefreshTokens(ctx context.Context, in provider.RefreshTokensInput) (state.UserPoolTokens, error) {
	params := p.authParams(in.Username)
	params["REFRESH_TOKEN"] = in.RefreshToken
	delete(params, "USERNAME")

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       ciptypes.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.cfg.AppClientID),
		AuthParameters: params,
	})
	if err != nil {
		return state.UserPoolTokens{}, mapRefreshError(err)
	}
	if out.AuthenticationResult == nil {
		return state.UserPoolTokens{}, state.NewServiceError("", "refresh returned no tokens", false, nil)
	}
	return p.tokens(out.AuthenticationResult), nil
}

func (p *UserPool) SignUp(ctx context.Context, in provider.SignUpInput) (state.SignUpResult, error) {
	out, err := p.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(p.cfg.AppClientID),
		Username:       aws.String(in.Username),
		Password:       aws.String(in.Password),
		SecretHash:     p.secretHashFor(in.Username),
		UserAttributes: attributes(in.Attributes),
		ValidationData: attributes(in.ValidationData),
		ClientMetadata: in.ClientMetadata,
	})
	if err != nil {
		return state.SignUpResult{}, mapError("SignUp", err)
	}
	return state.SignUpResult{
		UserID:       aws.ToString(out.UserSub),
		Confirmed:    out.UserConfirmed,
		CodeDelivery: delivery(out.CodeDeliveryDetails),
	}, nil
}

func (p *UserPool) ConfirmSignUp(ctx context.Context, in provider.ConfirmSignUpInput) (state.SignUpResult, error) {
	_, err := p.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.cfg.AppClientID),
		Username:         aws.String(in.Username),
		ConfirmationCode: aws.String(in.Code),
		SecretHash:       p.secretHashFor(in.Username),
		ClientMetadata:   in.ClientMetadata,
	})
	if err != nil {
		return state.SignUpResult{}, mapError("ConfirmSignUp", err)
	}
	return state.SignUpResult{Confirmed: true}, nil
}

func (p *UserPool) ResendSignUpCode(ctx context.Context, in provider.ResendSignUpCodeInput) (state.CodeDeliveryDetails, error) {
	out, err := p.api.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:       aws.String(p.cfg.AppClientID),
		Username:       aws.String(in.Username),
		SecretHash:     p.secretHashFor(in.Username),
		ClientMetadata: in.ClientMetadata,
	})
	if err != nil {
		return state.CodeDeliveryDetails{}, mapError("ResendConfirmationCode", err)
	}
	if d := delivery(out.CodeDeliveryDetails); d != nil {
		return *d, nil
	}
	return state.CodeDeliveryDetails{}, nil
}

func (p *UserPool) GlobalSignOut(ctx context.Context, accessToken string) error {
	if _, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(accessToken)}); err != nil {
		return mapError("GlobalSignOut", err)
	}
	return nil
}

func (p *UserPool) RevokeToken(ctx context.Context, refreshToken string) error {
	in := &cip.RevokeTokenInput{
		ClientId: aws.String(p.cfg.AppClientID),
		Token:    aws.String(refreshToken),
	}
	if p.cfg.AppClientSecret != "" {
		in.ClientSecret = aws.String(p.cfg.AppClientSecret)
	}
	if _, err := p.api.RevokeToken(ctx, in); err != nil {
		return mapError("RevokeToken", err)
	}
	return nil
}

func (p *UserPool) DeleteUser(ctx context.Context, accessToken string) error {
	if _, err := p.api.DeleteUser(ctx, &cip.DeleteUserInput{AccessToken: aws.String(accessToken)}); err != nil {
		return mapError("DeleteUser", err)
	}
	return nil
}

func (p *UserPool) authResult(
	auth *ciptypes.AuthenticationResultType,
	name ciptypes.ChallengeNameType,
	params map[string]string,
	session *string,
	username string,
	method state.SignInMethod,
) provider.AuthResult {
	if auth != nil {
		tokens := p.tokens(auth)
		return provider.AuthResult{Tokens: &tokens}
	}
	if u := params["USERNAME"]; u != "" {
		username = u
	}
	return provider.AuthResult{Challenge: &state.AuthChallenge{
		Name:       state.ChallengeName(name),
		Username:   username,
		Session:    aws.ToString(session),
		Parameters: params,
		Method:     method,
	}}
}

func (p *UserPool) tokens(auth *ciptypes.AuthenticationResultType) state.UserPoolTokens {
	return state.UserPoolTokens{
		IDToken:      aws.ToString(auth.IdToken),
		AccessToken:  aws.ToString(auth.AccessToken),
		RefreshToken: aws.ToString(auth.RefreshToken),
		ExpiresAt:    p.now().Add(time.Duration(auth.ExpiresIn) * time.Second),
	}
}

func attributes(m map[string]string) []ciptypes.AttributeType {
	if len(m) == 0 {
		return nil
	}
	out := make([]ciptypes.AttributeType, 0, len(m))
	for k, v := range m {
		out = append(out, ciptypes.AttributeType{Name: aws.String(k), Value: aws.String(v)})
	}
	return out
}

func delivery(d *ciptypes.CodeDeliveryDetailsType) *state.CodeDeliveryDetails {
	if d == nil {
		return nil
	}
	return &state.CodeDeliveryDetails{
		Destination:   aws.ToString(d.Destination),
		Medium:        string(d.DeliveryMedium),
		AttributeName: aws.ToString(d.AttributeName),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
