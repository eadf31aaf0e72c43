package aof

import (
	"errors"
	"fmt"
)

// Validation failures. The input record must be fixed by the caller.
var (
	ErrMissingField = errors.New("missing field")
	ErrNoKeyframes  = errors.New("no keyframes")
	ErrNoChunks     = errors.New("no chunks")
	ErrFieldRange   = errors.New("value does not fit its wire field")
	ErrInvalidKey   = errors.New("key is not valid base64")
)

// Format failures. The input bytes are unusable.
var (
	ErrObsoleteFormat = errors.New("the file is using an old data format")
	ErrCorruptFormat  = errors.New("the file is using a corrupted data format, report it to an operator")
	ErrTruncatedInput = errors.New("truncated input")
)

// MissingFieldError names a mandatory metadata field that was left empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s missing", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// FieldRangeError reports a value that cannot be represented in its
// fixed-width wire field.
type FieldRangeError struct {
	Field string
	Value any
}

func (e *FieldRangeError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Field, e.Value, ErrFieldRange)
}

func (e *FieldRangeError) Unwrap() error {
	return ErrFieldRange
}

// FormatError wraps a decode failure with the revision being read and the
// position of the failing field.
type FormatError struct {
	Revision uint8
	Offset   int
	Field    string
	Err      error
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("aof revision %d: %v", e.Revision, e.Err)
	}
	return fmt.Sprintf("aof revision %d: read %s at offset %d: %v", e.Revision, e.Field, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err means the replay record itself
// was rejected before encoding.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrNoKeyframes) ||
		errors.Is(err, ErrNoChunks) ||
		errors.Is(err, ErrFieldRange) ||
		errors.Is(err, ErrInvalidKey)
}

// IsFormatError reports whether err means the input bytes could not be
// decoded. A decoded buffer without keyframes or chunks counts as well.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe) ||
		errors.Is(err, ErrObsoleteFormat) ||
		errors.Is(err, ErrCorruptFormat) ||
		errors.Is(err, ErrTruncatedInput)
}
