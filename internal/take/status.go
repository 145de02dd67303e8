package take

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is the terminal state of a take.
type Kind string

const (
	StatusSkipped   Kind = "skipped"
	StatusError     Kind = "error"
	StatusCompleted Kind = "completed"
)

// Valid reports whether k is one of the terminal kinds.
func (k Kind) Valid() bool {
	switch k {
	case StatusSkipped, StatusError, StatusCompleted:
		return true
	}
	return false
}

// Status is what Process reports for one take.
type Status struct {
	Kind     Kind
	Action   string
	Take     int
	Frames   int
	Err      error
	Duration time.Duration
}

// String renders the operator-facing status line.
func (s Status) String() string {
	switch s.Kind {
	case StatusSkipped:
		return fmt.Sprintf("Skipped take %02d: one or both .bag files are missing.", s.Take)
	case StatusError:
		cause := "unknown error"
		if s.Err != nil {
			cause = s.Err.Error()
		}
		return fmt.Sprintf("ERROR processing take %02d: %s. Skipping.", s.Take, cause)
	case StatusCompleted:
		return fmt.Sprintf("Processed take %02d (%d frames)", s.Take, s.Frames)
	default:
		return fmt.Sprintf("take %02d: status %q", s.Take, string(s.Kind))
	}
}

// Report is the JSON form of a Status, printed by `rsextract worker --json`
// and read back by the pool.
type Report struct {
	Action     string `json:"action"`
	Take       int    `json:"take"`
	Status     Kind   `json:"status"`
	Frames     int    `json:"frames"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Message    string `json:"message"`
}

// Report converts s to its JSON form.
func (s Status) Report() Report {
	r := Report{
		Action:     s.Action,
		Take:       s.Take,
		Status:     s.Kind,
		Frames:     s.Frames,
		DurationMS: s.Duration.Milliseconds(),
		Message:    s.String(),
	}
	if s.Err != nil {
		r.Error = s.Err.Error()
	}
	return r
}

// ParseReport decodes one JSON status line. Error causes come back as plain
// errors; sentinel identity does not survive the process boundary.
func ParseReport(data []byte) (Status, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Status{}, fmt.Errorf("decode take report: %w", err)
	}
	if !r.Status.Valid() {
		return Status{}, fmt.Errorf("decode take report: unknown status %q", r.Status)
	}
	s := Status{
		Kind:     r.Status,
		Action:   r.Action,
		Take:     r.Take,
		Frames:   r.Frames,
		Duration: time.Duration(r.DurationMS) * time.Millisecond,
	}
	if r.Error != "" {
		s.Err = errors.New(r.Error)
	}
	return s, nil
}
