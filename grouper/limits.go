package grouper

import (
	"errors"
	"fmt"
)

// Bounds enforced by callers before invoking Build. Build itself accepts any
// size and any roster length.
const (
	MinGroupSize = 2
	MaxGroupSize = 6
	MinStudents  = 2
)

var (
	ErrTooFewStudents = errors.New("add at least 2 students to generate groups")
	ErrGroupSize      = fmt.Errorf("group size must be between %d and %d", MinGroupSize, MaxGroupSize)
)

// CheckRequest reports whether a roster of n students may be split into
// groups of size.
func CheckRequest(n, size int) error {
	if size < MinGroupSize || size > MaxGroupSize {
		return ErrGroupSize
	}
	if n < MinStudents {
		return ErrTooFewStudents
	}
	return nil
}
