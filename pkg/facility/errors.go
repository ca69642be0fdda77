package facility

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Record-level errors are isolated and reported;
// ErrRegistrySeedFailure aborts the run.
var (
	ErrMissingMandatoryField = errors.New("missing mandatory field")
	ErrRegistrySeedFailure   = errors.New("registry seed failure")
	ErrUnresolvableCollision = errors.New("unresolvable slug collision")
)

// RecordError ties an error to a single facility record.
type RecordError struct {
	FacilityID string
	Field      string
	Err        error
}

func (e *RecordError) Error() string {
	id := e.FacilityID
	if id == "" {
		id = "<no id>"
	}
	if e.Field != "" {
		return fmt.Sprintf("facility %s: %s: %v", id, e.Field, e.Err)
	}
	return fmt.Sprintf("facility %s: %v", id, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
