package internal

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"errors"
)

const (
	accessKeyIDSize = 10
	secretKeySize   = 30
	sessionTokenMin = 32
)

// NewAccessKeyID returns a temporary AWS-style key id: "ASIA" followed by 16
// upper-case base32 characters.
func NewAccessKeyID() (string, error) {
	var raw [accessKeyIDSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return "ASIA" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw[:]), nil
}

// NewSecretAccessKey returns a 40 character secret.
func NewSecretAccessKey() (string, error) {
	var raw [secretKeySize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// NewSessionToken returns an opaque token of n random bytes, base64url
// encoded.
func NewSessionToken(n int) (string, error) {
	if n < sessionTokenMin {
		return "", errors.New("session token too short")
	}
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
