package types

import "fmt"

// DecodeFailure records an image that could not be fingerprinted.
// It is reported as a skipped item and never aborts the run.
type DecodeFailure struct {
	Ref ImageRef
	Err error
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("cannot decode %s: %v", e.Ref.Path, e.Err)
}

func (e *DecodeFailure) Unwrap() error { return e.Err }

// ComparisonFailure records a pair whose scoring failed
type ComparisonFailure struct {
	A   ImageRef
	B   ImageRef
	Err error
}

func (e *ComparisonFailure) Error() string {
	return fmt.Sprintf("cannot compare %s with %s: %v", e.A.Path, e.B.Path, e.Err)
}

func (e *ComparisonFailure) Unwrap() error { return e.Err }

// ConfigurationError is fatal and raised before any work begins
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
