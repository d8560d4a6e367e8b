package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDataUnavailable      = errors.New("required measurement unavailable")
	ErrCannotComputeCurrent = errors.New("no phase reports a voltage")
	ErrCommandFailed        = errors.New("charger command failed")
)

type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Param, e.Reason)
}

// DataUnavailableError names the entity that made a snapshot invalid.
func DataUnavailableError(entity string) error {
	return fmt.Errorf("%w: %s", ErrDataUnavailable, entity)
}
