// Package credstore persists the single credentials record of an engine.
//
// # Encoding
//
// Records are stored as one schema-version byte followed by a JSON document.
// Decode rejects unknown versions so that a downgraded binary never
// misreads a newer record.
//
// # Architecture boundaries
//
// The store sees only [state.Credentials]. It does not refresh, validate or
// interpret tokens; the authorization flow decides what a record means.
//
// # What this package must NOT do
//
//   - Import the root package, statemachine or internal/flows.
//   - Log token material.
//   - Keep more than one record per namespace.
package credstore
