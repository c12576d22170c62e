// Package cli provides the interactive Sanctum terminal client.
//
// It wires configuration, the local store, the session services and an
// interactive REPL. Typical flow: run the integrity guard, walk the user
// through the consent gates, prompt for credentials, start the cooldown and
// decay watchers, then execute chat and account commands.
//
// Once the terminator fires (checksum mismatch, tampering, third strike)
// every pending command is abandoned and the terminal screen is shown.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
