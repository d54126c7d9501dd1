package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrConflict    = errors.New("already in a terminal state")
	ErrPollTimeout = errors.New("polling attempts exhausted")
)

// ValidationError rejects a submission before any job row exists.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "validation: " + e.Reason
}

// PdfConversionError marks a corrupt or unreadable PDF. It is raised at the
// rasterization boundary, before job creation.
type PdfConversionError struct {
	File string
	Err  error
}

func (e PdfConversionError) Error() string {
	return fmt.Sprintf("pdf conversion failed for %s: %v", e.File, e.Err)
}

func (e PdfConversionError) Unwrap() error { return e.Err }

// ExtractionError marks a single file whose vision call failed. It is
// absorbed by the worker pool and never fails the job on its own.
type ExtractionError struct {
	File string
	Err  error
}

func (e ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.File, e.Err)
}

func (e ExtractionError) Unwrap() error { return e.Err }
