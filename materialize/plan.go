package materialize

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"

	"github.com/syssam/xframe/schema"
)

// Materializer compiles and caches row plans. It is safe for concurrent use.
type Materializer struct {
	registry *schema.Registry

	mu    sync.RWMutex
	plans map[string]*Plan
	group singleflight.Group
}

// New returns a materializer resolving member metadata from r.
func New(r *schema.Registry) *Materializer {
	if r == nil {
		r = schema.Default()
	}
	return &Materializer{registry: r, plans: make(map[string]*Plan)}
}

var defaultMaterializer = New(nil)

// Default returns the materializer backed by the default registry.
func Default() *Materializer { return defaultMaterializer }

// Len returns the number of cached plans.
func (m *Materializer) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plans)
}

// Plan returns the plan rebuilding values of t from rows shaped by p.
func (m *Materializer) Plan(t reflect.Type, p *Projection) (*Plan, error) {
	return m.cached(typeKey(t)+"#"+p.signature(), func() (*Plan, error) {
		return m.compile(t, p)
	})
}

// RawPlan returns the plan rebuilding values of t from rows with the given
// column names. Columns are matched against member and column names with
// Unicode case folding.
func (m *Materializer) RawPlan(t reflect.Type, columns []string) (*Plan, error) {
	return m.cached(typeKey(t)+"#raw#"+strings.Join(columns, ","), func() (*Plan, error) {
		return m.compileRaw(t, columns)
	})
}

func (m *Materializer) cached(key string, compile func() (*Plan, error)) (*Plan, error) {
	m.mu.RLock()
	p, ok := m.plans[key]
	m.mu.RUnlock()
	if ok {
		return p, nil
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		m.mu.RLock()
		p, ok := m.plans[key]
		m.mu.RUnlock()
		if ok {
			return p, nil
		}
		p, err := compile()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.plans[key] = p
		m.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Plan), nil
}

func typeKey(t reflect.Type) string {
	return t.PkgPath() + "." + t.String()
}

// Plan rebuilds one value per row.
type Plan struct {
	typ    reflect.Type
	scalar assigner
	root   *objectPlan
}

type fieldStep struct {
	column int
	member string
	set    func(obj reflect.Value, v any) error
}

type navStep struct {
	member string
	index  []int
	ptr    bool
	plan   *objectPlan
}

type objectPlan struct {
	typ    reflect.Type
	new    func() reflect.Value
	fields []fieldStep
	navs   []navStep
}

func (m *Materializer) compile(t reflect.Type, p *Projection) (*Plan, error) {
	base := schema.Indirect(t)
	if schema.IsScalar(base) {
		return &Plan{typ: t, scalar: assignerFor(t)}, nil
	}
	if p == nil {
		p = &Projection{}
	}
	covered := make([]bool, len(p.Columns))
	for _, n := range p.Navs {
		for i := n.Start; i < n.End() && i < len(covered); i++ {
			covered[i] = true
		}
	}
	var top []int
	for i := range p.Columns {
		if !covered[i] {
			top = append(top, i)
		}
	}
	e, err := m.registry.Entity(base)
	if err != nil {
		return nil, err
	}
	root, err := m.object(e, e.Name, p, top)
	if err != nil {
		return nil, err
	}
	return &Plan{typ: t, root: root}, nil
}

func (m *Materializer) object(e *schema.Entity, key string, p *Projection, columns []int) (*objectPlan, error) {
	op := newObjectPlan(e.Type)
	acc := lookupAccessor(e.Type)
	for _, i := range columns {
		member := p.Columns[i].Member
		f, ok := e.Field(member)
		if !ok || f.IsNavigation() || !schema.IsScalar(f.Type) {
			continue
		}
		op.fields = append(op.fields, fieldStep{column: i, member: member, set: setter(acc, f)})
	}
	for _, f := range e.Fields {
		if schema.IsScalar(f.Type) || schema.Indirect(f.Type).Kind() != reflect.Struct {
			continue
		}
		navKey := key + "." + f.Name
		n, ok := p.Nav(navKey)
		if !ok {
			continue
		}
		target, err := m.registry.Entity(f.Target())
		if err != nil {
			return nil, err
		}
		cols := make([]int, 0, n.Count)
		for i := n.Start; i < n.End() && i < len(p.Columns); i++ {
			cols = append(cols, i)
		}
		sub, err := m.object(target, navKey, p, cols)
		if err != nil {
			return nil, err
		}
		op.navs = append(op.navs, navStep{
			member: f.Name,
			index:  f.Index,
			ptr:    f.Type.Kind() == reflect.Pointer,
			plan:   sub,
		})
	}
	return op, nil
}

func (m *Materializer) compileRaw(t reflect.Type, columns []string) (*Plan, error) {
	base := schema.Indirect(t)
	if schema.IsScalar(base) {
		return &Plan{typ: t, scalar: assignerFor(t)}, nil
	}
	e, err := m.registry.Entity(base)
	if err != nil {
		return nil, err
	}
	fold := cases.Fold()
	byName := make(map[string]*schema.Field, 2*len(e.Fields))
	for _, f := range e.Fields {
		if !schema.IsScalar(f.Type) {
			continue
		}
		byName[fold.String(f.Column)] = f
		byName[fold.String(f.Name)] = f
	}
	op := newObjectPlan(e.Type)
	acc := lookupAccessor(e.Type)
	for i, c := range columns {
		f, ok := byName[fold.String(c)]
		if !ok {
			continue
		}
		op.fields = append(op.fields, fieldStep{column: i, member: f.Name, set: setter(acc, f)})
	}
	return &Plan{typ: t, root: op}, nil
}

func newObjectPlan(t reflect.Type) *objectPlan {
	op := &objectPlan{typ: t}
	if acc := lookupAccessor(t); acc != nil && acc.New != nil {
		op.new = func() reflect.Value { return reflect.ValueOf(acc.New()) }
	} else {
		op.new = func() reflect.Value { return reflect.New(t) }
	}
	return op
}

func setter(acc *Accessor, f *schema.Field) func(reflect.Value, any) error {
	if acc != nil {
		if set, ok := acc.Fields[f.Name]; ok {
			return func(obj reflect.Value, v any) error {
				return set(obj.Interface(), v)
			}
		}
	}
	assign := assignerFor(f.Type)
	index := f.Index
	return func(obj reflect.Value, v any) error {
		return assign(obj.Elem().FieldByIndex(index), v)
	}
}

// Type returns the type of the values the plan builds.
func (p *Plan) Type() reflect.Type { return p.typ }

// Build rebuilds a value from the cells of one row. Null cells leave their
// member at its zero value. A navigation whose columns are all null is
// left nil.
func (p *Plan) Build(cells []any) (reflect.Value, error) {
	if p.scalar != nil {
		v := reflect.New(p.typ).Elem()
		if len(cells) == 0 || cells[0] == nil {
			return v, nil
		}
		if err := p.scalar(v, cells[0]); err != nil {
			return reflect.Value{}, &MaterializeError{Type: p.typ.String(), Column: 0, Value: cells[0], Err: err}
		}
		return v, nil
	}
	obj, _, err := p.root.build(cells)
	if err != nil {
		return reflect.Value{}, err
	}
	if p.typ.Kind() == reflect.Pointer {
		return obj, nil
	}
	return obj.Elem(), nil
}

// build returns a pointer to the rebuilt object, and whether every cell it
// read was null.
func (op *objectPlan) build(cells []any) (reflect.Value, bool, error) {
	obj := op.new()
	empty := true
	for _, f := range op.fields {
		if f.column >= len(cells) {
			continue
		}
		v := cells[f.column]
		if v == nil {
			continue
		}
		empty = false
		if err := f.set(obj, v); err != nil {
			return reflect.Value{}, false, &MaterializeError{
				Type:   op.typ.Name(),
				Member: f.member,
				Column: f.column,
				Value:  v,
				Err:    err,
			}
		}
	}
	for _, n := range op.navs {
		sub, subEmpty, err := n.plan.build(cells)
		if err != nil {
			return reflect.Value{}, false, err
		}
		if subEmpty {
			continue
		}
		empty = false
		dst := obj.Elem().FieldByIndex(n.index)
		if n.ptr {
			dst.Set(sub)
		} else {
			dst.Set(sub.Elem())
		}
	}
	return obj, empty, nil
}

// String describes the plan for debugging.
func (p *Plan) String() string {
	if p.scalar != nil {
		return fmt.Sprintf("scalar %s", p.typ)
	}
	var b strings.Builder
	p.root.describe(&b, p.typ.String())
	return b.String()
}

func (op *objectPlan) describe(b *strings.Builder, name string) {
	fmt.Fprintf(b, "%s{", name)
	for i, f := range op.fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%s:%d", f.member, f.column)
	}
	for _, n := range op.navs {
		b.WriteByte(' ')
		n.plan.describe(b, n.member)
	}
	b.WriteByte('}')
}
