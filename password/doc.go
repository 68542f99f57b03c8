// Package password holds password verifiers and policy checks for the
// in-memory user directory in package providertest.
//
// # Output format
//
// Verifiers are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and keep verifiers.
//   - Import any other authmachine package.
//   - Log plaintext passwords.
package password
