package energy

import (
	"errors"
	"fmt"
)

// ErrInvalidDate is returned for a date that is not a real calendar day.
var ErrInvalidDate = errors.New("invalid calendar date")

// FetchError reports a failed archive request: transport failure,
// non-success status, or an unreadable body.
type FetchError struct {
	Address    string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Address, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Address, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a daily export that is not well-formed: bad encoding,
// missing header, short record, bad timestamp or non-numeric power.
type ParseError struct {
	Address string
	Line    int // 0 when the error is not tied to a line
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.Address, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Address, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
