package credstore

import (
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/authmachine/state"
)

const (
	schemaVersionV1 = 1

	// CurrentSchemaVersion is written by Encode.
	CurrentSchemaVersion = schemaVersionV1
)

// Encode serializes creds with a leading schema version byte.
func Encode(creds state.Credentials) ([]byte, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, CurrentSchemaVersion)
	return append(out, payload...), nil
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (state.Credentials, error) {
	if len(data) == 0 {
		return state.Credentials{}, fmt.Errorf("%w: empty record", ErrCorrupt)
	}
	switch data[0] {
	case schemaVersionV1:
	default:
		return state.Credentials{}, fmt.Errorf("%w: unsupported schema version %d", ErrCorrupt, data[0])
	}

	var creds state.Credentials
	if err := json.Unmarshal(data[1:], &creds); err != nil {
		return state.Credentials{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := validateShape(creds); err != nil {
		return state.Credentials{}, err
	}
	return creds, nil
}

func validateShape(c state.Credentials) error {
	ok := true
	switch c.Kind {
	case state.CredentialsNone:
	case state.CredentialsUserPoolOnly:
		ok = c.SignedIn != nil
	case state.CredentialsIdentityPoolOnly:
		ok = c.IdentityID != "" && c.AWS != nil
	case state.CredentialsIdentityPoolWithFederation:
		ok = c.IdentityID != "" && c.AWS != nil && c.Federated != nil
	case state.CredentialsUserPoolAndIdentityPool:
		ok = c.SignedIn != nil && c.IdentityID != "" && c.AWS != nil
	default:
		ok = false
	}
	if !ok {
		return fmt.Errorf("%w: kind %s is missing fields", ErrCorrupt, c.Kind)
	}
	return nil
}
