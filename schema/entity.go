package schema

import (
	"reflect"
)

// ForeignKey describes the columns implementing a to-one navigation.
// InnerKeys name members of the owning entity, OuterKeys the matching
// members of the navigation target, pairwise.
type ForeignKey struct {
	InnerKeys []string
	OuterKeys []string
}

// Field describes one exported member of an entity.
type Field struct {
	// Name is the Go member name.
	Name string
	// Column is the column name, which defaults to Name.
	Column string
	// Index is the reflect index path of the member.
	Index []int
	// Type is the declared member type.
	Type reflect.Type

	Key      bool
	Identity bool
	NoMapped bool

	// ForeignKey is set on navigation members.
	ForeignKey *ForeignKey
}

// Mapped reports whether the member is read and written as a column.
func (f *Field) Mapped() bool {
	return !f.NoMapped && f.ForeignKey == nil
}

// IsNavigation reports whether the member is a foreign-key navigation.
func (f *Field) IsNavigation() bool {
	return f.ForeignKey != nil
}

// Target returns the struct type reached through a navigation member.
func (f *Field) Target() reflect.Type {
	return Indirect(f.Type)
}

// Value returns the member of the struct value v, following pointers.
// A nil pointer yields the zero reflect.Value.
func (f *Field) Value(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v.FieldByIndex(f.Index)
}

// Entity is the cached metadata of one struct type.
type Entity struct {
	Type  reflect.Type
	Name  string
	Table string
	// Fields lists every exported member in declaration order.
	Fields []*Field

	byName   map[string]*Field
	mapped   []*Field
	keys     []*Field
	navs     []*Field
	identity *Field
}

func newEntity(t reflect.Type, table string, fields []*Field) *Entity {
	e := &Entity{
		Type:   t,
		Name:   t.Name(),
		Table:  table,
		Fields: fields,
		byName: make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		e.byName[f.Name] = f
		switch {
		case f.IsNavigation():
			e.navs = append(e.navs, f)
		case f.NoMapped:
		default:
			e.mapped = append(e.mapped, f)
			if f.Key {
				e.keys = append(e.keys, f)
			}
			if f.Identity && e.identity == nil {
				e.identity = f
			}
		}
	}
	return e
}

// Field returns the member with the given Go name.
func (e *Entity) Field(name string) (*Field, bool) {
	f, ok := e.byName[name]
	return f, ok
}

// Mapped returns the members stored as columns, in declaration order.
func (e *Entity) Mapped() []*Field { return e.mapped }

// Keys returns the primary key members.
func (e *Entity) Keys() []*Field { return e.keys }

// Navigations returns the foreign-key navigation members.
func (e *Entity) Navigations() []*Field { return e.navs }

// Identity returns the database-generated member, or nil.
func (e *Entity) Identity() *Field { return e.identity }

// FieldCount is the number of columns selected for the entity.
func (e *Entity) FieldCount() int { return len(e.mapped) }
