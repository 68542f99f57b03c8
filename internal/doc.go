// Package internal holds helpers private to authmachine, currently random
// AWS-style credential material for the in-memory directory.
//
// # Sub-packages
//
//   - audit: async hub event dispatch (Dispatcher and Sink implementations)
//   - flows: the state resolvers, effects and their environment
//
// # What this package must NOT do
//
//   - Export types that appear in the public authmachine API.
package internal
