package state

// UserPoolConfiguration identifies the user pool app client.
type UserPoolConfiguration struct {
	PoolID          string
	AppClientID     string
	AppClientSecret string
	Region          string
	Endpoint        string
}

// ProviderName is the identity-pool logins key for tokens issued by this pool.
func (c UserPoolConfiguration) ProviderName() string {
	return "cognito-idp." + c.Region + ".amazonaws.com/" + c.PoolID
}

// IdentityPoolConfiguration identifies the identity pool.
type IdentityPoolConfiguration struct {
	PoolID string
	Region string
}

// AuthConfiguration is the configuration value carried into the machine by
// the configure event. At least one pool is set.
type AuthConfiguration struct {
	UserPool     *UserPoolConfiguration
	IdentityPool *IdentityPoolConfiguration
}

func (c AuthConfiguration) HasUserPool() bool {
	return c.UserPool != nil
}

func (c AuthConfiguration) HasIdentityPool() bool {
	return c.IdentityPool != nil
}
