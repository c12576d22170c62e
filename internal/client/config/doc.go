// Package config loads runtime configuration for the Sanctum client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-db string          SQLite database file
//	-relay string       classifier relay base URL
//	-secret string      relay signing secret
//	-stub               answer locally instead of calling the relay
//	-decay int          strike decay check interval (seconds)
//	-log-level string   debug, info, warn or error
//	-log-format string  text or json
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "1h" or integer
// nanoseconds. Privileged accounts can only be configured here; generate
// salt and verifier with `sanctum hash-password`.
//
//	{
//	  "database_path": "sanctum.db",
//	  "relay_url": "https://relay.example",
//	  "relay_secret": "change-me",
//	  "decay_interval": "1h",
//	  "reinit_delay": "3s",
//	  "accounts": [
//	    {"username": "Darb Dlohnier 3661", "role": "admin", "salt": "…", "verifier": "…"}
//	  ]
//	}
//
// This package does not read environment variables.
package config
