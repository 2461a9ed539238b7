package compiler

import (
	"reflect"
	"strings"

	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/materialize"
	"github.com/syssam/xframe/schema"
)

// projector writes the select list of one statement and records which
// member every column feeds. Objects reached through initializer bindings
// are recorded as column ranges keyed by their owner path.
type projector struct {
	s *scope
	b *builder
	p *materialize.Projection
	// keys is the stack of owner paths of the initializers being written.
	keys []string
	n    int
}

// next writes the separator of the next column.
func (pr *projector) next() {
	if pr.n > 0 {
		pr.b.WriteString(",")
	}
	pr.b.nl()
	pr.n++
}

// extra appends a column that is not materialized, such as an order key
// carried out of a grouped statement, and returns its alias.
func (pr *projector) extra(n expr.Node, name string) (string, error) {
	pr.next()
	if err := pr.s.visit(pr.b, value(n)); err != nil {
		return "", err
	}
	alias := pr.p.Add(name, "")
	pr.b.As(alias)
	return alias, nil
}

func (pr *projector) node(n expr.Node, name string) error {
	switch x := n.(type) {
	case *expr.Param:
		return pr.param(x)
	case *expr.Member:
		return pr.member(x, name)
	case *expr.Init:
		return pr.init(x)
	}
	if name == "" {
		name = "Value"
	}
	return pr.scalar(n, name)
}

func (pr *projector) scalar(n expr.Node, name string) error {
	pr.next()
	if err := pr.s.visit(pr.b, value(n)); err != nil {
		return err
	}
	pr.b.As(pr.p.Add(name, name))
	return nil
}

// value turns a condition into a value SQL can select.
func value(n expr.Node) expr.Node {
	if n.Kind() != expr.KindBool {
		return n
	}
	switch n.(type) {
	case *expr.Binary, *expr.Unary, *expr.Call:
		return expr.If(n, expr.V(true), expr.V(false))
	}
	return n
}

func (pr *projector) param(x *expr.Param) error {
	s := pr.s
	if expr.KindOf(x.T) == expr.KindGroup {
		return pr.groupKey("")
	}
	if isScalar(x.T) {
		name, ok := s.scalarColumn(x)
		if !ok {
			return unsupported(typeName(x.T), "parameter "+x.Name)
		}
		pr.next()
		pr.b.Column("t0", name).As(pr.p.Add(name, name))
		return nil
	}
	alias, err := s.aliases.Param(x)
	if err != nil {
		return err
	}
	if s.derived && alias == "t0" && s.inner != nil {
		pr.derived(schema.Indirect(x.T).Name())
		return nil
	}
	e, err := s.entity(x.T)
	if err != nil {
		return err
	}
	return pr.entity(alias, e)
}

// derived repeats the columns of the derived table, moving its navigation
// ranges under the current owner path.
func (pr *projector) derived(root string) {
	base := root
	if len(pr.keys) > 0 {
		base = pr.keys[len(pr.keys)-1]
	}
	start := pr.p.Len()
	for _, c := range pr.s.inner.Columns {
		pr.next()
		pr.b.Column("t0", c.Name).As(pr.p.Add(c.Name, c.Member))
	}
	for _, n := range pr.s.inner.Navs {
		key := n.Key
		if strings.HasPrefix(key, root+".") {
			key = base + key[len(root):]
		}
		pr.p.AddNav(materialize.Nav{Key: key, Member: n.Member, Start: start + n.Start, Count: n.Count})
	}
}

func (pr *projector) entity(alias string, e *schema.Entity) error {
	for _, f := range e.Mapped() {
		column, err := pr.s.column(alias, f)
		if err != nil {
			return err
		}
		pr.next()
		pr.b.Column(alias, column).As(pr.p.Add(f.Name, f.Name))
	}
	return nil
}

func (pr *projector) member(x *expr.Member, name string) error {
	root, path := expr.Path(x)
	if name == "" {
		name = path[len(path)-1]
	}
	p, ok := root.(*expr.Param)
	if !ok {
		return pr.scalar(x, name)
	}
	if expr.KindOf(p.T) == expr.KindGroup {
		if len(path) == 1 && path[0] == "Key" {
			return pr.groupKey(name)
		}
		return pr.scalar(x, name)
	}
	alias, owner, f, err := pr.s.resolve(p, path)
	if err != nil {
		return err
	}
	if f.IsNavigation() {
		alias, target, err := pr.s.navigate(alias, owner, f)
		if err != nil {
			return err
		}
		return pr.entity(alias, target)
	}
	if !isScalar(f.Type) {
		return unsupported(owner.Name, f.Name)
	}
	return pr.scalar(x, name)
}

// groupKey writes the key of the grouping in effect. The bindings of an
// initializer key are written as one column each.
func (pr *projector) groupKey(name string) error {
	if pr.s.group == nil {
		return unsupported("grouping", "Key")
	}
	key := pr.s.group.Key
	if init, ok := key.(*expr.Init); ok {
		for _, bd := range init.Bindings {
			if err := pr.scalar(bd.X, bd.Member); err != nil {
				return err
			}
		}
		return nil
	}
	if name == "" {
		name = "Key"
	}
	return pr.scalar(key, name)
}

func (pr *projector) init(x *expr.Init) error {
	if len(pr.keys) == 0 {
		pr.keys = append(pr.keys, schema.Indirect(x.T).Name())
		defer func() { pr.keys = pr.keys[:0] }()
	}
	top := pr.keys[len(pr.keys)-1]
	for _, bd := range x.Bindings {
		if isScalar(bd.X.Type()) {
			if err := pr.node(bd.X, bd.Member); err != nil {
				return err
			}
			continue
		}
		key := top + "." + bd.Member
		start := pr.p.Len()
		pr.keys = append(pr.keys, key)
		err := pr.node(bd.X, bd.Member)
		pr.keys = pr.keys[:len(pr.keys)-1]
		if err != nil {
			return err
		}
		pr.p.AddNav(materialize.Nav{Key: key, Member: bd.Member, Start: start, Count: pr.p.Len() - start})
	}
	return nil
}

// isScalar reports whether values of t are read from a single column.
// Untyped nodes, such as the null literal, are scalar.
func isScalar(t reflect.Type) bool {
	return t == nil || schema.IsScalar(t)
}
