package providertest

import (
	"context"

	"github.com/google/uuid"

	"github.com/MrEthical07/authmachine/internal"
	"github.com/MrEthical07/authmachine/jwt"
	"github.com/MrEthical07/authmachine/state"
)

func (d *Directory) GetID(ctx context.Context, logins map[string]string) (string, error) {
	if err := d.begin(ctx, OpGetID); err != nil {
		return "", err
	}

	subject, err := d.subjectOf(logins)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if subject == "" {
		id := d.identityID()
		d.known[id] = true
		return id, nil
	}
	id, ok := d.identities[subject]
	if !ok {
		id = d.identityID()
		d.identities[subject] = id
		d.known[id] = true
	}
	return id, nil
}

func (d *Directory) GetCredentialsForIdentity(ctx context.Context, identityID string, logins map[string]string) (state.AWSCredentials, error) {
	if err := d.begin(ctx, OpGetCredentialsForIdentity); err != nil {
		return state.AWSCredentials{}, err
	}
	if _, err := d.subjectOf(logins); err != nil {
		return state.AWSCredentials{}, err
	}

	d.mu.Lock()
	known := d.known[identityID]
	d.mu.Unlock()
	if !known {
		return state.AWSCredentials{}, state.NewServiceError("ResourceNotFoundException", "Identity '"+identityID+"' not found.", false, nil)
	}

	keyID, err := internal.NewAccessKeyID()
	if err != nil {
		return state.AWSCredentials{}, err
	}
	secret, err := internal.NewSecretAccessKey()
	if err != nil {
		return state.AWSCredentials{}, err
	}
	token, err := internal.NewSessionToken(96)
	if err != nil {
		return state.AWSCredentials{}, err
	}
	return state.AWSCredentials{
		AccessKeyID:     keyID,
		SecretAccessKey: secret,
		SessionToken:    token,
		Expiration:      d.opts.Now().Add(d.opts.AWSTTL),
	}, nil
}

// subjectOf returns a stable subject for logins. Tokens from this directory's
// user pool are verified; other providers are trusted as given. An empty
// subject means guest access.
func (d *Directory) subjectOf(logins map[string]string) (string, error) {
	if len(logins) == 0 {
		if !d.opts.AllowGuests {
			return "", state.NewNotAuthorizedError("NotAuthorizedException", "Unauthenticated access is not supported for this identity pool.", nil)
		}
		return "", nil
	}

	own := d.opts.Pool.ProviderName()
	if token, ok := logins[own]; ok {
		claims, err := d.tokens.Parse(token, jwt.TokenUseID)
		if err != nil {
			return "", state.NewNotAuthorizedError("NotAuthorizedException", "Invalid login token.", err)
		}
		return own + ":" + claims.Subject, nil
	}
	for name, token := range logins {
		if token == "" {
			return "", state.NewNotAuthorizedError("NotAuthorizedException", "Invalid login token for "+name+".", nil)
		}
		return name + ":" + token, nil
	}
	return "", nil
}

func (d *Directory) identityID() string {
	region := d.opts.Pool.Region
	if region == "" {
		region = "us-east-1"
	}
	return region + ":" + uuid.NewString()
}
