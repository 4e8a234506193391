package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPrefix is returned when a condition names a prefix that is
	// not registered.
	ErrUnknownPrefix = errors.New("prefix for condition is not defined in config prefixes")
	// ErrInvalidConfig is returned for configs that fail validation.
	ErrInvalidConfig = errors.New("invalid transform config")
	// ErrMissingQuery is returned when a simple config has no query to
	// take its triple patterns from.
	ErrMissingQuery = errors.New("simple config requires the query text")
)

// ConfigError locates a configuration problem.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
