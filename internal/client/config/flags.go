package config

import (
	"flag"
	"io"
	"time"

	"github.com/lumensanctum/sanctum/internal/flagx"
)

var knownFlags = []string{"-db", "-relay", "-secret", "-stub", "-decay", "-log-level", "-log-format"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-db string          SQLite database file
//	-relay string       classifier relay base URL
//	-secret string      relay signing secret
//	-stub               answer locally instead of calling the relay
//	-decay int          strike decay check interval (in seconds)
//	-log-level string   debug, info, warn or error
//	-log-format string  text or json
//
// args are filtered with flagx.FilterArgs so flags owned by other components
// (such as -c) do not make parsing fail.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("sanctum", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database file")
	fs.StringVar(&cfg.RelayURL, "relay", cfg.RelayURL, "classifier relay base URL")
	fs.StringVar(&cfg.RelaySecret, "secret", cfg.RelaySecret, "relay signing secret")
	fs.BoolVar(&cfg.StubMode, "stub", cfg.StubMode, "answer locally instead of calling the relay")
	decay := fs.Int("decay", int(cfg.DecayInterval.Seconds()), "strike decay check interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text or json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.DecayInterval = time.Duration(*decay) * time.Second
	return nil
}
