package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/client/services"
)

// Config holds runtime settings for the Sanctum client.
//
// Fields:
//   - DatabasePath: SQLite file backing the local store.
//   - RelayURL / RelaySecret: classifier relay and its HS256 signing secret.
//   - StubMode: answer turns locally instead of calling the relay.
//   - DecayInterval: how often strike decay is re-evaluated.
//   - ReinitDelay: how long an entity stays Compiling after a restart.
//   - Accounts: privileged logins; JSON only.
type Config struct {
	DatabasePath  string
	RelayURL      string
	RelaySecret   string
	StubMode      bool
	DecayInterval time.Duration
	ReinitDelay   time.Duration
	LogLevel      string
	LogFormat     string
	Accounts      []services.Account
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "sanctum.db"
	c.RelayURL = ""
	c.StubMode = false
	c.DecayInterval = time.Hour
	c.ReinitDelay = 3 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UseStub reports whether turns are answered locally. Without a relay URL
// there is nothing else to call.
func (c *Config) UseStub() bool {
	return c.StubMode || c.RelayURL == ""
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if c.DecayInterval <= 0 {
		errs = append(errs, fmt.Errorf("decay interval must be positive, got %s", c.DecayInterval))
	}
	if c.ReinitDelay < 0 {
		errs = append(errs, fmt.Errorf("reinit delay must not be negative, got %s", c.ReinitDelay))
	}
	for i, a := range c.Accounts {
		if a.Username == "" {
			errs = append(errs, fmt.Errorf("accounts[%d]: username is empty", i))
		}
		if a.Role != models.RoleAdmin && a.Role != models.RoleBeta {
			errs = append(errs, fmt.Errorf("accounts[%d]: role must be admin or beta, got %q", i, a.Role))
		}
		if a.Salt == "" || a.Verifier == "" {
			errs = append(errs, fmt.Errorf("accounts[%d]: salt and verifier are required", i))
		}
	}
	return errors.Join(errs...)
}
