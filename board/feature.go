// Package board serves per-project feature lists through result caches in
// front of a Repository.
package board

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned when a feature does not exist.
	ErrNotFound = errors.New("board: feature not found")

	// ErrInvalidFeature is returned when a feature fails validation.
	ErrInvalidFeature = errors.New("board: invalid feature")

	// ErrInvalidName is returned for project names and feature IDs that are
	// not a single safe path segment.
	ErrInvalidName = errors.New("board: invalid name")
)

// Status is a feature's position on the board.
type Status string

const (
	StatusBacklog         Status = "backlog"
	StatusInProgress      Status = "in_progress"
	StatusWaitingApproval Status = "waiting_approval"
	StatusVerified        Status = "verified"
	StatusCompleted       Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusInProgress, StatusWaitingApproval, StatusVerified, StatusCompleted:
		return true
	}
	return false
}

// MaxPriority is the lowest priority a feature can have; 0 is the highest.
const MaxPriority = 4

// Feature is one card on a project board.
type Feature struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    int       `json:"priority"`
	Labels      []string  `json:"labels,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate reports the first invalid field.
func (f Feature) Validate() error {
	if err := ValidateName(f.ID); err != nil {
		return err
	}
	if f.Title == "" {
		return fmt.Errorf("%w: %s: title is required", ErrInvalidFeature, f.ID)
	}
	if !f.Status.Valid() {
		return fmt.Errorf("%w: %s: unknown status %q", ErrInvalidFeature, f.ID, f.Status)
	}
	if f.Priority < 0 || f.Priority > MaxPriority {
		return fmt.Errorf("%w: %s: priority must be in [0, %d], got %d", ErrInvalidFeature, f.ID, MaxPriority, f.Priority)
	}
	return nil
}

// Clone returns a copy that shares no slices with f.
func (f Feature) Clone() Feature {
	f.Labels = slices.Clone(f.Labels)
	return f
}

func cloneAll(fs []Feature) []Feature {
	out := make([]Feature, len(fs))
	for i, f := range fs {
		out[i] = f.Clone()
	}
	return out
}

// sortFeatures orders by priority, then ID.
func sortFeatures(fs []Feature) {
	slices.SortFunc(fs, func(a, b Feature) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName checks a project name or feature ID.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
