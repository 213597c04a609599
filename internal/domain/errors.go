package domain

import "fmt"

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Orchestrator / validation errors (-32010 to -32039) ----

var (
	ErrInvalidTransition  = &EngineError{Code: -32010, Message: "invalid orchestrator state transition"}
	ErrSessionNotFound    = &EngineError{Code: -32011, Message: "session not found"}
	ErrSessionTerminal    = &EngineError{Code: -32012, Message: "session already reached a terminal result"}
	ErrValidationFailed   = &EngineError{Code: -32013, Message: "input validation failed"}
	ErrMaxAttemptsInvalid = &EngineError{Code: -32014, Message: "max attempts must be positive"}
	ErrSessionLimit       = &EngineError{Code: -32015, Message: "maximum concurrent sessions reached"}
)

// ---- Parameter tree errors (-32040 to -32069) ----

var (
	ErrParameterPath   = &EngineError{Code: -32040, Message: "parameter path does not resolve to a value"}
	ErrParameterType   = &EngineError{Code: -32041, Message: "parameter value has unexpected type"}
	ErrParameterSchema = &EngineError{Code: -32042, Message: "parameter tree failed schema validation"}
)

// ---- Solver backend errors (-32070 to -32099) ----

var (
	ErrSubmitFailed    = &EngineError{Code: -32070, Message: "solver submission failed"}
	ErrBackendGone     = &EngineError{Code: -32071, Message: "solver backend unavailable"}
	ErrOutputMalformed = &EngineError{Code: -32072, Message: "solver output could not be parsed"}
	ErrHandleUnknown   = &EngineError{Code: -32073, Message: "unknown attempt handle"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit     = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery    = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite    = &EngineError{Code: -32132, Message: "store write failed"}
	ErrConfigInvalid = &EngineError{Code: -32136, Message: "invalid configuration"}
)
