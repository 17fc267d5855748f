package conversion

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error matches exactly one of these with errors.Is.
var (
	ErrInvalidRequest   = errors.New("invalid request entry")
	ErrMissingLoinc     = errors.New("missing loinc")
	ErrMissingUnit      = errors.New("missing unit")
	ErrInvalidLoinc     = errors.New("invalid loinc")
	ErrInvalidUnit      = errors.New("invalid UCUM unit")
	ErrInvalidValue     = errors.New("could not parse value")
	ErrConversionFailed = errors.New("conversion failed")
)

// Error is a per-entry resolution failure.
type Error struct {
	Kind   error
	Loinc  string
	Unit   string
	Target string
	Value  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidLoinc:
		return fmt.Sprintf("%v: %q", e.Kind, e.Loinc)
	case ErrInvalidUnit:
		return fmt.Sprintf("%v: %q", e.Kind, e.Unit)
	case ErrInvalidValue:
		return fmt.Sprintf("%v: %q", e.Kind, e.Value)
	case ErrInvalidRequest:
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	case ErrConversionFailed:
		return fmt.Sprintf("%v: %q to %q: %s", e.Kind, e.Unit, e.Target, e.Reason)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
