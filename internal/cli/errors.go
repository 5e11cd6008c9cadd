package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.
var (
	// ErrAPIKeyMissing indicates the selected provider's API key variable is not set.
	ErrAPIKeyMissing = errors.New("API key environment variable not set")

	// ErrOutputExists indicates the output file already exists.
	ErrOutputExists = errors.New("output file already exists")

	// ErrOutputConflict indicates an output flag that cannot serve several inputs.
	ErrOutputConflict = errors.New("conflicting output options")
)
