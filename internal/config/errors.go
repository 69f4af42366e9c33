package config

import "errors"

var (
	// ErrInvalidConfig marks a configuration that failed Validate.
	ErrInvalidConfig = errors.New("invalid funbet config")
	// ErrLoadConfig marks a failure reading a config source.
	ErrLoadConfig = errors.New("loading funbet config")
)
