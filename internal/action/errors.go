package action

import "errors"

// Sentinel errors for the action package.
var (
	// ErrUnknown indicates an invalid action name was specified.
	ErrUnknown = errors.New("unknown action")

	// ErrMissingLanguage indicates the translate action was used without a target language.
	ErrMissingLanguage = errors.New("translate requires a target language")

	// ErrMissingInstruction indicates the edit action was used without an instruction.
	ErrMissingInstruction = errors.New("edit requires an instruction")
)
