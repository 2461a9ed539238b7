package materialize

import (
	"errors"
	"fmt"
)

// ErrMaterialize is matched by every error raised while rebuilding a row.
var ErrMaterialize = errors.New("materialize: cannot rebuild row")

// MaterializeError reports a value that could not be assigned to a member.
// The row it belongs to is discarded.
type MaterializeError struct {
	Type   string
	Member string
	Column int
	Value  any
	Err    error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("materialize: %s.%s: cannot assign column %d value %v (%T): %v",
		e.Type, e.Member, e.Column, e.Value, e.Value, e.Err)
}

func (e *MaterializeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMaterialize.
func (e *MaterializeError) Is(target error) bool { return target == ErrMaterialize }
