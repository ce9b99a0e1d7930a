package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnavailable is returned when no guest runtime could be created.
	ErrEngineUnavailable = errors.New("script engine is not available")

	// ErrScriptTimeout marks a run that exceeded its wall-clock budget.
	ErrScriptTimeout = errors.New("script execution timed out")

	// ErrNoHTTPClient is passed to sendRequest callbacks when the controller
	// has no HTTP collaborator attached.
	ErrNoHTTPClient = errors.New("no http client attached")
)

// ScriptError wraps a guest syntax or runtime error with the phase it
// happened in.
type ScriptError struct {
	Phase   Phase
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s script failed: %s", e.Phase, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

func newScriptError(phase Phase, err error) *ScriptError {
	return &ScriptError{
		Phase:   phase,
		Message: err.Error(),
		Err:     err,
	}
}
