package completion

// Exports for testing. These allow black-box tests to inject dependencies
// without modifying the public API.

var (
	ClassifyError     = classifyError
	WithChatCompleter = withChatCompleter
)
