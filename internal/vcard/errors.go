package vcard

import (
	"errors"
	"fmt"
)

// Sentinel errors for the codec. All parse failures are structured errors;
// the parser never panics on any input.
var (
	ErrMissingEnvelope    = errors.New("vCard missing BEGIN/END:VCARD envelope")
	ErrUnsupportedVersion = errors.New("unsupported vCard version")
	ErrInvalidImppURI     = errors.New("invalid IMPP URI")
)

// ContentLineError reports a logical line that could not be parsed.
type ContentLineError struct {
	Line string
}

func (e *ContentLineError) Error() string {
	return fmt.Sprintf("malformed content-line: %q", e.Line)
}

// DateError reports an unparsable date value in a property.
type DateError struct {
	Property string
	Value    string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid date in %s: %q", e.Property, e.Value)
}
