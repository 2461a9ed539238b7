package compiler

import (
	"errors"
	"fmt"
)

// Construction errors. Every one of them is a programming error in the
// query being compiled and is returned before any text is produced.
var (
	// ErrNotSupported is returned for operators, calls and shapes that have
	// no SQL rendering.
	ErrNotSupported = errors.New("compiler: construct not supported")

	// ErrMissingKey is returned when a whole-entity update or delete, or a
	// keyed subquery, targets an entity without key members.
	ErrMissingKey = errors.New("compiler: entity has no key member")

	// ErrOrderByRequired is returned when Skip is used without OrderBy.
	ErrOrderByRequired = errors.New("compiler: the method 'OrderBy' must be called before the method 'Skip'")

	// ErrEmptyUpdate is returned when an update assigns no member.
	ErrEmptyUpdate = errors.New("compiler: update must assign at least one member")

	// ErrGroupKey is returned for references to a grouping key member that
	// the key selector does not define.
	ErrGroupKey = errors.New("compiler: invalid group key reference")

	// ErrUnknownMember is returned for member paths that do not resolve
	// against the entity metadata.
	ErrUnknownMember = errors.New("compiler: unknown member")
)

// UnsupportedError names the construct and member that cannot be rendered,
// as in "string.PadLeft is not supported.".
type UnsupportedError struct {
	Construct string
	Member    string
}

// Error returns the error string.
func (e *UnsupportedError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("%s is not supported.", e.Construct)
	}
	return fmt.Sprintf("%s.%s is not supported.", e.Construct, e.Member)
}

// Is reports whether err is ErrNotSupported.
func (e *UnsupportedError) Is(err error) bool {
	return err == ErrNotSupported
}

func unsupported(construct, member string) error {
	return &UnsupportedError{Construct: construct, Member: member}
}

// MissingKeyError is returned by writes that must match rows by key.
type MissingKeyError struct {
	Entity string
	Op     string
}

// Error returns the error string.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("compiler: %s<%s> requires %s to have a key member", e.Op, e.Entity, e.Entity)
}

// Is reports whether err is ErrMissingKey.
func (e *MissingKeyError) Is(err error) bool {
	return err == ErrMissingKey
}

// GroupKeyError is returned for g.Key.Member references that the key
// selector does not define.
type GroupKeyError struct {
	Member string
}

// Error returns the error string.
func (e *GroupKeyError) Error() string {
	if e.Member == "" {
		return "compiler: group key cannot be used as a single value"
	}
	return fmt.Sprintf("compiler: group key has no member %q", e.Member)
}

// Is reports whether err is ErrGroupKey.
func (e *GroupKeyError) Is(err error) bool {
	return err == ErrGroupKey
}

// IsNotSupported reports whether err is, or wraps, an unsupported construct.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// IsMissingKey reports whether err is, or wraps, a missing key error.
func IsMissingKey(err error) bool {
	return errors.Is(err, ErrMissingKey)
}
