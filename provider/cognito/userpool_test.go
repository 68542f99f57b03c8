package cognito

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ci "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	citypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentity/types"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
)

type fakeUserPoolAPI struct {
	UserPoolAPI

	initiate []*cip.InitiateAuthInput
	respond  []*cip.RespondToAuthChallengeInput

	initiateOut *cip.InitiateAuthOutput
	respondOut  *cip.RespondToAuthChallengeOutput
	err         error
}

func (f *fakeUserPoolAPI) InitiateAuth(_ context.Context, in *cip.InitiateAuthInput, _ ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	f.initiate = append(f.initiate, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.initiateOut, nil
}

func (f *fakeUserPoolAPI) RespondToAuthChallenge(_ context.Context, in *cip.RespondToAuthChallengeInput, _ ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error) {
	f.respond = append(f.respond, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.respondOut, nil
}

func (f *fakeUserPoolAPI) SignUp(_ context.Context, in *cip.SignUpInput, _ ...func(*cip.Options)) (*cip.SignUpOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cip.SignUpOutput{
		UserSub:       aws.String("sub-" + aws.ToString(in.Username)),
		UserConfirmed: false,
		CodeDeliveryDetails: &ciptypes.CodeDeliveryDetailsType{
			Destination:    aws.String("a***@example.com"),
			DeliveryMedium: ciptypes.DeliveryMediumTypeEmail,
			AttributeName:  aws.String("email"),
		},
	}, nil
}

var fixedNow = time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)

func newTestUserPool(t *testing.T, api UserPoolAPI, secret string) *UserPool {
	t.Helper()
	p, err := NewUserPool(context.Background(), state.UserPoolConfiguration{
		PoolID:          "us-east-1_Pool",
		AppClientID:     "client",
		AppClientSecret: secret,
		Region:          "us-east-1",
	}, WithUserPoolAPI(api), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return p
}

func TestNewUserPoolRequiresPoolFields(t *testing.T) {
	_, err := NewUserPool(context.Background(), state.UserPoolConfiguration{PoolID: "p"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewUserPoolRejectsEndpointWithScheme(t *testing.T) {
	_, err := NewUserPool(context.Background(), state.UserPoolConfiguration{
		PoolID:      "us-east-1_Pool",
		AppClientID: "client",
		Region:      "us-east-1",
		Endpoint:    "http://localhost:9229",
	}, WithUserPoolAPI(&fakeUserPoolAPI{}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, state.ErrEndpointScheme)
}

func TestInitiateSRPAuthReturnsVerifierChallengeAndHandshake(t *testing.T) {
	api := &fakeUserPoolAPI{initiateOut: &cip.InitiateAuthOutput{
		ChallengeName: ciptypes.ChallengeNameTypePasswordVerifier,
		ChallengeParameters: map[string]string{
			"USERNAME":        "alice",
			"USER_ID_FOR_SRP": "sub-1",
			"SALT":            "abcd",
			"SRP_B":           "1234",
			"SECRET_BLOCK":    "AA==",
		},
	}}
	p := newTestUserPool(t, api, "shh")

	res, err := p.InitiateSRPAuth(context.Background(), provider.InitiateAuthInput{Username: "alice"})
	require.NoError(t, err)
	require.NotNil(t, res.Challenge)
	require.NotNil(t, res.Handshake)
	assert.Nil(t, res.Tokens)
	assert.Equal(t, state.ChallengePasswordVerifier, res.Challenge.Name)
	assert.Equal(t, state.MethodSRP, res.Challenge.Method)

	require.Len(t, api.initiate, 1)
	in := api.initiate[0]
	assert.Equal(t, ciptypes.AuthFlowTypeUserSrpAuth, in.AuthFlow)
	assert.Equal(t, res.Handshake.PublicA, in.AuthParameters["SRP_A"])
	assert.Equal(t, secretHash("alice", "client", "shh"), in.AuthParameters["SECRET_HASH"])
}

func TestUserPasswordAuthReturnsTokens(t *testing.T) {
	api := &fakeUserPoolAPI{initiateOut: &cip.InitiateAuthOutput{
		AuthenticationResult: &ciptypes.AuthenticationResultType{
			IdToken:      aws.String("id"),
			AccessToken:  aws.String("access"),
			RefreshToken: aws.String("refresh"),
			ExpiresIn:    3600,
		},
	}}
	p := newTestUserPool(t, api, "")

	res, err := p.InitiateUserPasswordAuth(context.Background(), provider.InitiateAuthInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, "access", res.Tokens.AccessToken)
	assert.Equal(t, fixedNow.Add(time.Hour), res.Tokens.ExpiresAt)

	in := api.initiate[0]
	assert.Equal(t, "pw", in.AuthParameters["PASSWORD"])
	_, hasHash := in.AuthParameters["SECRET_HASH"]
	assert.False(t, hasHash)
}

func TestRespondToAuthChallengeMapsAnswerKey(t *testing.T) {
	api := &fakeUserPoolAPI{respondOut: &cip.RespondToAuthChallengeOutput{
		AuthenticationResult: &ciptypes.AuthenticationResultType{AccessToken: aws.String("a"), ExpiresIn: 60},
	}}
	p := newTestUserPool(t, api, "")

	_, err := p.RespondToAuthChallenge(context.Background(), provider.ChallengeResponseInput{
		Challenge: state.AuthChallenge{Name: state.ChallengeSMSMFA, Username: "alice", Session: "sess"},
		Answer:    "123456",
	})
	require.NoError(t, err)

	in := api.respond[0]
	assert.Equal(t, "123456", in.ChallengeResponses["SMS_MFA_CODE"])
	assert.Equal(t, "sess", aws.ToString(in.Session))
	assert.Equal(t, ciptypes.ChallengeNameTypeSmsMfa, in.ChallengeName)
}

func TestRefreshRejectedBecomesSessionExpired(t *testing.T) {
	api := &fakeUserPoolAPI{err: &smithy.GenericAPIError{Code: codeNotAuthorized, Message: "Refresh Token has expired"}}
	p := newTestUserPool(t, api, "")

	_, err := p.RefreshTokens(context.Background(), provider.RefreshTokensInput{Username: "alice", RefreshToken: "r"})
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrSessionExpired)

	in := api.initiate[0]
	assert.Equal(t, ciptypes.AuthFlowTypeRefreshTokenAuth, in.AuthFlow)
	assert.Equal(t, "r", in.AuthParameters["REFRESH_TOKEN"])
}

func TestSignUpReportsDelivery(t *testing.T) {
	p := newTestUserPool(t, &fakeUserPoolAPI{}, "")

	res, err := p.SignUp(context.Background(), provider.SignUpInput{
		Username:   "alice",
		Password:   "pw",
		Attributes: map[string]string{"email": "alice@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-alice", res.UserID)
	assert.False(t, res.Confirmed)
	require.NotNil(t, res.CodeDelivery)
	assert.Equal(t, "EMAIL", res.CodeDelivery.Medium)
}

func TestMapErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		kind        state.ErrorKind
		recoverable bool
	}{
		{"not authorized", &smithy.GenericAPIError{Code: codeNotAuthorized}, state.KindNotAuthorized, false},
		{"user not found", &smithy.GenericAPIError{Code: codeUserNotFound}, state.KindNotAuthorized, false},
		{"code mismatch", &smithy.GenericAPIError{Code: codeCodeMismatch}, state.KindService, true},
		{"throttled", &smithy.GenericAPIError{Code: codeTooManyRequests}, state.KindService, true},
		{"missing pool", &smithy.GenericAPIError{Code: codeResourceNotFound}, state.KindConfiguration, false},
		{"other client fault", &smithy.GenericAPIError{Code: "UsernameExistsException", Fault: smithy.FaultClient}, state.KindService, false},
		{"server fault", &smithy.GenericAPIError{Code: "Boom", Fault: smithy.FaultServer}, state.KindService, true},
		{"transport", errors.New("dial tcp: refused"), state.KindService, true},
		{"cancelled", context.Canceled, state.KindUnknown, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ae := mapError("Op", tc.err)
			require.NotNil(t, ae)
			assert.Equal(t, tc.kind, ae.Kind)
			assert.Equal(t, tc.recoverable, ae.Recoverable)
			assert.ErrorIs(t, ae, tc.err)
		})
	}
	assert.Nil(t, mapError("Op", nil))
}

type fakeIdentityAPI struct {
	logins map[string]string
}

func (f *fakeIdentityAPI) GetId(_ context.Context, in *ci.GetIdInput, _ ...func(*ci.Options)) (*ci.GetIdOutput, error) {
	f.logins = in.Logins
	return &ci.GetIdOutput{IdentityId: aws.String("us-east-1:identity")}, nil
}

func (f *fakeIdentityAPI) GetCredentialsForIdentity(_ context.Context, in *ci.GetCredentialsForIdentityInput, _ ...func(*ci.Options)) (*ci.GetCredentialsForIdentityOutput, error) {
	return &ci.GetCredentialsForIdentityOutput{
		IdentityId: in.IdentityId,
		Credentials: &citypes.Credentials{
			AccessKeyId:  aws.String("AKID"),
			SecretKey:    aws.String("SECRET"),
			SessionToken: aws.String("TOKEN"),
			Expiration:   aws.Time(fixedNow.Add(time.Hour)),
		},
	}, nil
}

func TestIdentityPoolRoundTrip(t *testing.T) {
	api := &fakeIdentityAPI{}
	p, err := NewIdentityPool(context.Background(), state.IdentityPoolConfiguration{PoolID: "us-east-1:pool", Region: "us-east-1"}, WithIdentityAPI(api))
	require.NoError(t, err)

	logins := map[string]string{"cognito-idp.us-east-1.amazonaws.com/us-east-1_Pool": "id-token"}
	id, err := p.GetID(context.Background(), logins)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1:identity", id)
	assert.Equal(t, logins, api.logins)

	creds, err := p.GetCredentialsForIdentity(context.Background(), id, logins)
	require.NoError(t, err)
	assert.Equal(t, "AKID", creds.AccessKeyID)
	assert.Equal(t, fixedNow.Add(time.Hour), creds.Expiration)
}
