// Package middleware connects authmachine sessions to HTTP.
//
// # Client side
//
//   - [Transport] attaches the engine's user pool token to outgoing requests
//     and retries once with force-refreshed tokens on 401.
//
// # Server side
//
//   - [Guard] verifies the bearer token with a [TokenVerifier] and injects the
//     claims into the request context.
//   - [JWTVerifier] adapts a jwt.Manager holding the pool's signing keys.
//
// # What this package must NOT do
//
//   - Sign in or out. Session changes go through the Engine.
//   - Cache tokens. FetchAuthSession owns refresh and expiry.
package middleware
