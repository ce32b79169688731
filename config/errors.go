package config

import "errors"

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("config: invalid")

	// ErrNotFound indicates the config file does not exist.
	ErrNotFound = errors.New("config: file not found")
)
