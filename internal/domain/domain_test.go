package domain

import (
	"context"
	"errors"
	"testing"
)

func TestJobStatusTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobStatusPending, JobStatusProcessing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings("user-1")
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings should validate: %v", err)
	}

	s.ConfidenceThreshold = 1.2
	if err := s.Validate(); err == nil {
		t.Error("threshold above 1 should fail")
	}

	s = DefaultSettings("user-1")
	s.MaxBatchSize = MaxBatchSizeLimit + 1
	if err := s.Validate(); err == nil {
		t.Error("batch size above the cap should fail")
	}

	s.MaxBatchSize = 0
	if err := s.Validate(); err == nil {
		t.Error("zero batch size should fail")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded

	var perr error = PdfConversionError{File: "a.pdf", Err: cause}
	if !errors.Is(perr, cause) {
		t.Error("PdfConversionError should unwrap to its cause")
	}

	var eerr error = ExtractionError{File: "a.png", Err: cause}
	if !errors.Is(eerr, cause) {
		t.Error("ExtractionError should unwrap to its cause")
	}
}
