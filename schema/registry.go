package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-openapi/inflect"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidEntity is returned for types that cannot be reflected into
// entity metadata.
var ErrInvalidEntity = errors.New("schema: invalid entity")

// Tabler is implemented by entities that name their own table.
type Tabler interface {
	TableName() string
}

var tablerType = reflect.TypeFor[Tabler]()

// Registry caches entity metadata per type. The zero value is not usable;
// create registries with NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	entities map[reflect.Type]*Entity
	group    singleflight.Group
	plural   bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithPluralTables pluralizes default table names ("Order" → "Orders").
// Names returned by TableName are used as is.
func WithPluralTables() Option {
	return func(r *Registry) {
		r.plural = true
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{entities: make(map[reflect.Type]*Entity)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used when none is configured.
func Default() *Registry { return defaultRegistry }

// For returns the metadata of T from r.
func For[T any](r *Registry) (*Entity, error) {
	return r.Entity(reflect.TypeFor[T]())
}

// Entity returns the metadata of t, reflecting it on first use.
// Pointer types resolve to their element type.
func (r *Registry) Entity(t reflect.Type) (*Entity, error) {
	t = Indirect(t)
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrInvalidEntity)
	}
	r.mu.RLock()
	e, ok := r.entities[t]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}
	v, err, _ := r.group.Do(typeKey(t), func() (any, error) {
		r.mu.RLock()
		e, ok := r.entities[t]
		r.mu.RUnlock()
		if ok {
			return e, nil
		}
		e, err := r.reflect(t)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.entities[t] = e
		r.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entity), nil
}

// Len returns the number of cached entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

func typeKey(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.String()
}

func (r *Registry) reflect(t reflect.Type) (*Entity, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidEntity, t)
	}
	fields := make([]*Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tg, err := parseTag(sf.Tag.Get(TagName))
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidEntity, t.Name(), sf.Name, err)
		}
		f := &Field{
			Name:       sf.Name,
			Column:     tg.column,
			Index:      sf.Index,
			Type:       sf.Type,
			Key:        tg.key,
			Identity:   tg.identity,
			NoMapped:   tg.nomap,
			ForeignKey: tg.fk,
		}
		if f.Column == "" {
			f.Column = f.Name
		}
		if !IsScalar(sf.Type) && f.ForeignKey == nil {
			// Unannotated struct members are neither columns nor navigations.
			f.NoMapped = true
		}
		if f.ForeignKey != nil && Indirect(sf.Type).Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %s.%s: foreign key on non-struct member", ErrInvalidEntity, t.Name(), sf.Name)
		}
		fields = append(fields, f)
	}
	e := newEntity(t, r.tableName(t), fields)
	for _, nav := range e.navs {
		for _, k := range nav.ForeignKey.InnerKeys {
			if f, ok := e.Field(k); !ok || !f.Mapped() {
				return nil, fmt.Errorf("%w: %s.%s: foreign key member %q is not a mapped column", ErrInvalidEntity, t.Name(), nav.Name, k)
			}
		}
	}
	return e, nil
}

func (r *Registry) tableName(t reflect.Type) string {
	if t.Implements(tablerType) {
		return reflect.Zero(t).Interface().(Tabler).TableName()
	}
	if reflect.PointerTo(t).Implements(tablerType) {
		return reflect.New(t).Interface().(Tabler).TableName()
	}
	if r.plural {
		return inflect.Pluralize(t.Name())
	}
	return t.Name()
}
