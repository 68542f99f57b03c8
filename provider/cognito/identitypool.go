package cognito

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	ci "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"

	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
)

// IdentityAPI is the subset of the identity pool SDK client used here.
type IdentityAPI interface {
	GetId(ctx context.Context, params *ci.GetIdInput, optFns ...func(*ci.Options)) (*ci.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, params *ci.GetCredentialsForIdentityInput, optFns ...func(*ci.Options)) (*ci.GetCredentialsForIdentityOutput, error)
}

// IdentityPool implements provider.IdentityPoolClient.
type IdentityPool struct {
	api IdentityAPI
	cfg state.IdentityPoolConfiguration
}

var _ provider.IdentityPoolClient = (*IdentityPool)(nil)

// NewIdentityPool builds an identity pool client. The identity pool calls used
// here are unsigned, so anonymous AWS credentials are used unless overridden.
func NewIdentityPool(ctx context.Context, cfg state.IdentityPoolConfiguration, opts ...Option) (*IdentityPool, error) {
	if cfg.PoolID == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}
	o := buildOptions(opts)

	api := o.identityAPI
	if api == nil {
		loadOpts := append([]func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(aws.AnonymousCredentials{}),
		}, o.loadOptions...)
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, err
		}
		api = ci.NewFromConfig(awsCfg)
	}
	return &IdentityPool{api: api, cfg: cfg}, nil
}

func (p *IdentityPool) GetID(ctx context.Context, logins map[string]string) (string, error) {
	out, err := p.api.GetId(ctx, &ci.GetIdInput{
		IdentityPoolId: aws.String(p.cfg.PoolID),
		Logins:         logins,
	})
	if err != nil {
		return "", mapError("GetId", err)
	}
	id := aws.ToString(out.IdentityId)
	if id == "" {
		return "", state.NewServiceError("", "GetId returned no identity id", false, nil)
	}
	return id, nil
}

func (p *IdentityPool) GetCredentialsForIdentity(ctx context.Context, identityID string, logins map[string]string) (state.AWSCredentials, error) {
	out, err := p.api.GetCredentialsForIdentity(ctx, &ci.GetCredentialsForIdentityInput{
		IdentityId: aws.String(identityID),
		Logins:     logins,
	})
	if err != nil {
		return state.AWSCredentials{}, mapError("GetCredentialsForIdentity", err)
	}
	if out.Credentials == nil {
		return state.AWSCredentials{}, state.NewServiceError("", "GetCredentialsForIdentity returned no credentials", false, nil)
	}
	c := out.Credentials
	return state.AWSCredentials{
		AccessKeyID:     aws.ToString(c.AccessKeyId),
		SecretAccessKey: aws.ToString(c.SecretKey),
		SessionToken:    aws.ToString(c.SessionToken),
		Expiration:      aws.ToTime(c.Expiration),
	}, nil
}
