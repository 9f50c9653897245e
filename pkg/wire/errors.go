package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrShortFrame indicates fewer bytes than a header.
	ErrShortFrame = errors.New("short frame")
	// ErrBadStartCode indicates the first byte is not StartCode.
	ErrBadStartCode = errors.New("bad start code")
	// ErrBadVersion indicates a protocol version mismatch.
	ErrBadVersion = errors.New("version mismatch")
	// ErrBadLength indicates the length field is out of range.
	ErrBadLength = errors.New("invalid length")
	// ErrLengthMismatch indicates the length field doesn't match the received size.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrBadBody indicates the body is too short for the message type.
	ErrBadBody = errors.New("malformed body")
	// ErrTruncatedSensor indicates a sensor record runs past the frame.
	ErrTruncatedSensor = errors.New("truncated sensor record")
	// ErrWrongType indicates the frame is decoded as a different message type.
	ErrWrongType = errors.New("wrong message type")
)

// DecodeError wraps a decode failure with the offending field.
type DecodeError struct {
	Err   error
	Field string
	Value int
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %s=%d", e.Err, e.Field, e.Value)
}

// Unwrap supports errors.Is.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// BufferError is the panic value when encoding into an undersized buffer.
type BufferError struct {
	Need int
	Have int
}

// Error implements error.
func (e *BufferError) Error() string {
	return fmt.Sprintf("buffer too small: need %d, have %d", e.Need, e.Have)
}

func decodeErr(err error, field string, value int) error {
	return &DecodeError{Err: err, Field: field, Value: value}
}
