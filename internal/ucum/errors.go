package ucum

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUnit is matched by every ParseError.
	ErrInvalidUnit = errors.New("invalid unit")
	// ErrNotConvertible is matched by every ConversionError.
	ErrNotConvertible = errors.New("units are not convertible")
)

// ParseError reports a unit expression that is not valid UCUM.
type ParseError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid unit %q: %s", e.Expr, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrInvalidUnit }

// ConversionError reports two valid expressions that cannot be converted into
// each other.
type ConversionError struct {
	From   string
	To     string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %q: %s", e.From, e.To, e.Reason)
}

func (e *ConversionError) Unwrap() error { return ErrNotConvertible }
