package materialize

import (
	"reflect"
	"sync"
)

// Accessor holds reflection-free constructors and member setters of one
// struct type, as emitted by xfgen. Plans use them in place of reflection
// for every member they cover.
type Accessor struct {
	Type reflect.Type
	// New returns a pointer to a zero value of Type.
	New func() any
	// Fields maps member names to setters. obj is the pointer returned
	// by New.
	Fields map[string]func(obj, v any) error
}

var accessors sync.Map // reflect.Type → *Accessor

// Register installs a, replacing any accessor of the same type. It is
// meant to be called from init functions of generated files.
func Register(a *Accessor) {
	accessors.Store(a.Type, a)
}

// RegisterType is Register for setters typed on *T.
func RegisterType[T any](fields map[string]func(*T, any) error) {
	a := &Accessor{
		Type:   reflect.TypeFor[T](),
		New:    func() any { return new(T) },
		Fields: make(map[string]func(obj, v any) error, len(fields)),
	}
	for name, set := range fields {
		a.Fields[name] = func(obj, v any) error {
			return set(obj.(*T), v)
		}
	}
	Register(a)
}

func lookupAccessor(t reflect.Type) *Accessor {
	if a, ok := accessors.Load(t); ok {
		return a.(*Accessor)
	}
	return nil
}
