package core

import (
	"errors"
	"fmt"
)

// ErrConfigurationMissing is returned when a required configuration key is absent.
var ErrConfigurationMissing = errors.New("configuration key missing")

// ResolutionError reports an artist name that the catalog search could not resolve.
type ResolutionError struct {
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no artist found for name %q", e.Name)
}

// ServiceError wraps a failure of the remote catalog.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func serviceError(op string, err error) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return &ServiceError{Op: op, Err: err}
}
