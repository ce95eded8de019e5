package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Load populates the provided configuration struct from environment variables.
//
// On first use it attempts to load a .env file from the working directory;
// a missing file is not an error. Parsing is driven by `env` struct tags,
// see github.com/caarlos0/env for the tag syntax.
//
// Example:
//
//	type ProviderConfig struct {
//		ClientID     string `env:"CNOAUTH_CLIENT_ID,required"`
//		ClientSecret string `env:"CNOAUTH_CLIENT_SECRET,required"`
//	}
//
//	var cfg ProviderConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional; real environments set variables directly.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// Intended for configuration the application cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
