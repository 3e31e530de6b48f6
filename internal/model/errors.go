package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error taxonomy. Callers match with errors.Is; operations wrap these with
// context using fmt.Errorf("%w: ...").
var (
	// ErrShapeMismatch reports series whose length differs from the number of
	// market sessions.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidParameter reports a pricing or scheduling parameter outside
	// its documented domain. It is raised before any computation starts.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvariantViolation reports a derived quantity outside its possible
	// range, which points at inconsistent upstream data.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrCollaboratorFailure reports that the scheduling engine errored or did
	// not reach an optimal solution.
	ErrCollaboratorFailure = errors.New("collaborator failure")
)

// ShapeError builds an ErrShapeMismatch for a named series.
func ShapeError(name string, got, want int) error {
	return fmt.Errorf("%w: %s has length %d, expected %d market sessions", ErrShapeMismatch, name, got, want)
}

// CollaboratorError carries the stage and the members implicated in a failed
// scheduling call.
type CollaboratorError struct {
	Stage string
	// Statuses maps member id to the non-optimal status it ended with.
	// Empty when the failure is not attributable to specific members.
	Statuses map[string]string
	Err      error
}

func (e *CollaboratorError) Error() string {
	var b strings.Builder
	b.WriteString("scheduling ")
	b.WriteString(e.Stage)
	b.WriteString(" failed")
	if len(e.Statuses) > 0 {
		ids := make([]string, 0, len(e.Statuses))
		for id := range e.Statuses {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, id+"="+e.Statuses[id])
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Is makes every CollaboratorError match ErrCollaboratorFailure.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorFailure
}
