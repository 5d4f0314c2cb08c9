package fact

import (
	"errors"
	"fmt"
)

// ErrUnknownFactType is returned when a stored discriminant has no
// corresponding Value variant.
var ErrUnknownFactType = errors.New("unknown fact type")

// UnknownKindError is returned for an unrecognised subject kind string.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown subject kind %q", e.Kind)
}
