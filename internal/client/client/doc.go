// Package client contains the client's outward-facing building blocks.
//
// # Classifier
//
// Every chat turn is classified by an external AI backend. The core only
// depends on the Classifier interface and the three-way models.Outcome it
// returns; RelayClient is the HTTP implementation, talking to a relay that
// fronts the actual providers. Relay responses are validated against an
// embedded JSON Schema and decoded once, here, into the tagged union.
//
// # Errors
//
// Transport and protocol failures are reported as sentinel errors matched
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrInvalidResponse. None
// of them is a classification; callers must not feed them to the strike
// machine.
//
// # Local database
//
// InitDatabase and RunMigrations open the SQLite file and apply the embedded
// goose migrations.
package client
