package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by configuration structs that check their own
// cross-field constraints after parsing.
type Validator interface {
	Validate() error
}

// Load parses process environment variables into the provided struct and
// runs its Validate method when it has one.
//
// Example:
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	return load(cfg, env.Options{})
}

// LoadFrom parses the given key/value set instead of the process
// environment. Used by tests and by the admin CLI, which builds its
// environment from flags.
func LoadFrom(cfg any, environ map[string]string) error {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(cfg, env.Options{Environment: environ})
}

func load(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
