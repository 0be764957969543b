package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExecutorNotFound = errors.New("executor not found")
	ErrRunNotFound      = errors.New("run not found")
	ErrArtifactNotFound = errors.New("artifact not found")
)

// ConfigurationError aborts a run before the offending node is dispatched.
type ConfigurationError struct {
	NodeID   string
	NodeType NodeType
	Message  string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}

	return fmt.Sprintf("configuration error on node %s (%s): %s", e.NodeID, e.NodeType, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ExecutorFailure is a node that returned success=false or panicked.
type ExecutorFailure struct {
	NodeID  string
	Message string
}

func (e *ExecutorFailure) Error() string {
	return fmt.Sprintf("node %s failed: %s", e.NodeID, e.Message)
}

// ValidationFailure lists the required fields missing from a payload.
type ValidationFailure struct {
	MissingFields []string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.MissingFields, ", "))
}

func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}
