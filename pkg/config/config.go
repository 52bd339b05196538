// Package config loads typed configuration structs from environment
// variables, with .env support for local development.
package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrNilPointer   = errors.New("config: nil pointer passed to Load")
	ErrParseFailure = errors.New("config: failed to parse environment variables")
)

var loadDotEnv sync.Once

// Load parses environment variables into cfg based on `env` struct tags.
// The .env file, if present, is loaded once per process; a missing file is
// not an error.
//
//	type ServerConfig struct {
//		Addr string `env:"SERVER_ADDR" envDefault:":8080"`
//	}
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilPointer
	}
	loadDotEnv.Do(func() {
		_ = godotenv.Load()
	})
	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParseFailure, err)
	}
	return nil
}
