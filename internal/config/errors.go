package config

import "errors"

// Sentinel errors for the config package.
var (
	// ErrUnknownKey indicates a key that is not a configuration setting.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrInvalid indicates a value that fails validation.
	ErrInvalid = errors.New("invalid configuration")

	// ErrNotDirectory indicates the output directory path is a file.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrNotWritable indicates the output directory cannot be written to.
	ErrNotWritable = errors.New("directory is not writable")
)
