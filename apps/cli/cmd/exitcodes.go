package cmd

// Exit codes for hitscript CLI
const (
	// ExitSuccess indicates all requests passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more requests or assertions failed
	ExitTestFailure = 1

	// ExitParseError indicates a collection parsing error
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitScriptEngineError indicates no script engine could be created
	ExitScriptEngineError = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
