package dataset

import (
	"errors"
	"fmt"
)

// ErrShape matches every *ShapeError via errors.Is.
var ErrShape = errors.New("data shape error")

// ShapeError reports a violation of the rectangular table invariant or a
// reference to a column that does not exist.
type ShapeError struct {
	Op     string
	Column string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: column %q: %s", e.Op, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ShapeError) Is(target error) bool { return target == ErrShape }

func unknownColumn(op, name string) *ShapeError {
	return &ShapeError{Op: op, Column: name, Reason: "no such column"}
}
