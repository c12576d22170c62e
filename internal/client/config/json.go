package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lumensanctum/sanctum/internal/client/services"
	"github.com/lumensanctum/sanctum/internal/flagx"
	"github.com/lumensanctum/sanctum/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "1h" or as integer nanoseconds.
type JsonConfig struct {
	DatabasePath  string             `json:"database_path"`
	RelayURL      string             `json:"relay_url"`
	RelaySecret   string             `json:"relay_secret"`
	StubMode      *bool              `json:"stub_mode"`
	DecayInterval *timex.Duration    `json:"decay_interval"`
	ReinitDelay   *timex.Duration    `json:"reinit_delay"`
	LogLevel      string             `json:"log_level"`
	LogFormat     string             `json:"log_format"`
	Accounts      []services.Account `json:"accounts"`
}

// parseJson overlays Config with the values present in the JSON file named
// by -c or -config. Without either flag it does nothing.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.RelayURL != "" {
		cfg.RelayURL = jc.RelayURL
	}
	if jc.RelaySecret != "" {
		cfg.RelaySecret = jc.RelaySecret
	}
	if jc.StubMode != nil {
		cfg.StubMode = *jc.StubMode
	}
	if jc.DecayInterval != nil {
		cfg.DecayInterval = jc.DecayInterval.Duration
	}
	if jc.ReinitDelay != nil {
		cfg.ReinitDelay = jc.ReinitDelay.Duration
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.LogFormat != "" {
		cfg.LogFormat = jc.LogFormat
	}
	if jc.Accounts != nil {
		cfg.Accounts = jc.Accounts
	}
	return nil
}
