package config

import (
	"log/slog"
)

// Load builds the configuration for running the bot: defaults, the file at
// path (skipped when path is empty) and DNSBOT_* environment variables, then
// validation. All problems are reported together in a *ValidationError.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadOffline is Load without the Discord requirements, for commands that
// only inspect the state store.
func LoadOffline(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, requireDiscord bool) (*Config, error) {
	cfg := Defaults()
	var errs []string

	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, &ValidationError{Errors: []string{"config file: " + err.Error()}}
		}
		slog.Debug("loaded configuration from file", slog.String("path", path))
		errs = append(errs, fileCfg.apply(cfg)...)
	}

	errs = append(errs, applyEnv(cfg)...)
	if requireDiscord {
		errs = append(errs, problems(validateDiscord(cfg))...)
	}
	errs = append(errs, problems(validateConfig(cfg))...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}
