package state

import "time"

// CredentialsKind tags the shape of a [Credentials] record.
type CredentialsKind uint8

const (
	CredentialsNone CredentialsKind = iota
	CredentialsUserPoolOnly
	CredentialsIdentityPoolOnly
	CredentialsIdentityPoolWithFederation
	CredentialsUserPoolAndIdentityPool
)

func (k CredentialsKind) String() string {
	switch k {
	case CredentialsUserPoolOnly:
		return "userPoolOnly"
	case CredentialsIdentityPoolOnly:
		return "identityPoolOnly"
	case CredentialsIdentityPoolWithFederation:
		return "identityPoolWithFederation"
	case CredentialsUserPoolAndIdentityPool:
		return "userPoolAndIdentityPool"
	default:
		return "none"
	}
}

// Credentials is the only record persisted by the credential store. Fields not
// relevant to Kind are nil or empty.
type Credentials struct {
	Kind       CredentialsKind `json:"kind"`
	SignedIn   *SignedInData   `json:"signed_in,omitempty"`
	IdentityID string          `json:"identity_id,omitempty"`
	AWS        *AWSCredentials `json:"aws,omitempty"`
	Federated  *FederatedToken `json:"federated,omitempty"`
}

func NoCredentials() Credentials {
	return Credentials{Kind: CredentialsNone}
}

func UserPoolOnly(data SignedInData) Credentials {
	return Credentials{Kind: CredentialsUserPoolOnly, SignedIn: &data}
}

func IdentityPoolOnly(identityID string, aws AWSCredentials) Credentials {
	return Credentials{Kind: CredentialsIdentityPoolOnly, IdentityID: identityID, AWS: &aws}
}

func IdentityPoolWithFederation(token FederatedToken, identityID string, aws AWSCredentials) Credentials {
	return Credentials{Kind: CredentialsIdentityPoolWithFederation, Federated: &token, IdentityID: identityID, AWS: &aws}
}

func UserPoolAndIdentityPool(data SignedInData, identityID string, aws AWSCredentials) Credentials {
	return Credentials{Kind: CredentialsUserPoolAndIdentityPool, SignedIn: &data, IdentityID: identityID, AWS: &aws}
}

// IsEmpty reports whether the record carries nothing worth persisting.
func (c Credentials) IsEmpty() bool {
	return c.Kind == CredentialsNone
}

// HasUserPool reports whether the record carries a user pool session.
func (c Credentials) HasUserPool() bool {
	return c.SignedIn != nil &&
		(c.Kind == CredentialsUserPoolOnly || c.Kind == CredentialsUserPoolAndIdentityPool)
}

// ExpiresWithin reports whether any part of the record expires before
// now+buffer. Empty records never expire.
func (c Credentials) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	if c.IsEmpty() {
		return false
	}
	if c.HasUserPool() && c.SignedIn.Tokens.ExpiresWithin(now, buffer) {
		return true
	}
	if c.AWS != nil && c.AWS.ExpiresWithin(now, buffer) {
		return true
	}
	return false
}
