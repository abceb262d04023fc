// Package core defines sentinel errors.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Decode failures are always wrapped in a *DecodeError.
var (
	// Packet decoding errors
	ErrPacketTooShort       = errors.New("hdrstack: packet too short")
	ErrMalformedField       = errors.New("hdrstack: malformed header field")
	ErrUnterminatedExtChain = errors.New("hdrstack: unterminated ipv6 extension chain")

	// Capture input errors
	ErrUnsupportedLinkType = errors.New("hdrstack: unsupported link type")
	ErrUnknownFileFormat   = errors.New("hdrstack: unknown capture file format")

	// Filter errors
	ErrFilterInvalid = errors.New("hdrstack: invalid filter program")

	// Configuration errors
	ErrConfigInvalid = errors.New("hdrstack: invalid configuration")
)

// DecodeError reports which header failed to decode and why.
type DecodeError struct {
	Layer Layer
	Field string // offending field for malformed errors
	Need  int    // bytes required, for truncation errors
	Have  int    // bytes available, for truncation errors
	Err   error  // one of the sentinel errors above
}

func (e *DecodeError) Error() string {
	switch {
	case errors.Is(e.Err, ErrPacketTooShort):
		return fmt.Sprintf("%s: %v (need %d bytes, have %d)", e.Layer, e.Err, e.Need, e.Have)
	case e.Field != "":
		return fmt.Sprintf("%s: %v: %s", e.Layer, e.Err, e.Field)
	default:
		return fmt.Sprintf("%s: %v", e.Layer, e.Err)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Kind returns a short stable name for the error class, used as a metric label.
func (e *DecodeError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrPacketTooShort):
		return "truncated"
	case errors.Is(e.Err, ErrUnterminatedExtChain):
		return "unterminated_chain"
	default:
		return "malformed"
	}
}

// Truncated builds the error for a header that needs more bytes than remain.
func Truncated(layer Layer, need, have int) *DecodeError {
	return &DecodeError{Layer: layer, Need: need, Have: have, Err: ErrPacketTooShort}
}

// Malformed builds the error for a structurally invalid field.
func Malformed(layer Layer, format string, args ...any) *DecodeError {
	return &DecodeError{Layer: layer, Field: fmt.Sprintf(format, args...), Err: ErrMalformedField}
}
