package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks documents that cannot be decoded into a Score
	ErrMalformedInput = errors.New("malformed input")

	// ErrMissingVoice marks scores lacking a voice a derivation depends on
	ErrMissingVoice = errors.New("missing voice")
)

// MalformedInputError is returned when a source document cannot be decoded.
// The file is skipped; the batch continues.
type MalformedInputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := fmt.Sprintf("malformed input %s", e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause
func (e *MalformedInputError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedInput}
	}
	return []error{ErrMalformedInput, e.Err}
}

// MissingVoiceError is returned when a score lacks a voice at the configured index
type MissingVoiceError struct {
	Voice string // "soprano", "bass", ...
	Index int
	Parts int
}

func (e *MissingVoiceError) Error() string {
	return fmt.Sprintf("missing %s voice: index %d, score has %d parts", e.Voice, e.Index, e.Parts)
}

func (e *MissingVoiceError) Unwrap() error {
	return ErrMissingVoice
}
