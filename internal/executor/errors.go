package executor

import "fmt"

// ErrorKind classifies why a stage did not produce output.
type ErrorKind string

const (
	// KindFailure is a tool-reported processing failure.
	KindFailure ErrorKind = "failure"
	// KindTimeout is a stage that exceeded its invocation timeout.
	KindTimeout ErrorKind = "timeout"
)

// StageError records a stage-level failure. It is downgraded into the stage's
// recorded status at the executor boundary, never returned from Execute.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ConfigError is a pipeline configuration problem detected before any stage
// runs. It is fatal for that pipeline and guarantees no cost was incurred.
type ConfigError struct {
	Pipeline string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline %s configuration: %v", e.Pipeline, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
