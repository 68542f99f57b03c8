// Package jwt mints and verifies user pool style ID and access tokens
// ("token_use", "cognito:username", "client_id" claims) using configured
// signing keys and strict validation semantics.
//
// ParseUnverified reads identity claims from tokens returned by the identity
// provider; the in-memory provider uses Manager to issue them.
package jwt
