package compiler

import (
	"fmt"
	"reflect"

	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/materialize"
	"github.com/syssam/xframe/query"
	"github.com/syssam/xframe/schema"
)

// scope is the compile state of one SELECT level: its aliases, the
// navigation joins minted so far and the grouping in effect.
type scope struct {
	c       *Compiler
	f       *Flavor
	aliases *Aliases
	group   *query.Grouping
	// derived is set when t0 is a derived table, whose columns carry
	// member names.
	derived bool
	// inner is the projection of the derived table, if any.
	inner *materialize.Projection
	navs  []navJoin
}

// navJoin is an implicit LEFT JOIN minted for a navigation path.
type navJoin struct {
	table string
	alias string
	// on holds rendered (target column, parent column) pairs.
	on [][2]string
}

func (c *Compiler) newScope(d *query.Descriptor, inner *materialize.Projection) (*scope, error) {
	s := &scope{
		c:       c,
		f:       c.flavor,
		aliases: NewAliases(d),
		group:   d.GroupBy,
		derived: d.Subquery != nil,
		inner:   inner,
	}
	for _, j := range d.Joins {
		alias, err := s.joinAlias(j)
		if err != nil {
			return nil, err
		}
		e, err := s.entity(j.Source)
		if err != nil {
			return nil, err
		}
		s.aliases.setJoinTable(e.Table, alias)
	}
	return s, nil
}

func (s *scope) entity(t reflect.Type) (*schema.Entity, error) {
	return s.c.entity(t)
}

func (s *scope) joinAlias(j query.JoinClause) (string, error) {
	if j.Op == query.OpSelectMany {
		if len(j.Params) != 2 {
			return "", unsupported("CrossJoin", "parameters")
		}
		return s.aliases.Param(j.Params[1])
	}
	if len(j.On) == 0 {
		return "", unsupported(j.Op.String(), "keys")
	}
	p := expr.RootParam(j.On[0].Inner)
	if p == nil {
		return "", unsupported(j.Op.String(), "inner key")
	}
	return s.aliases.Param(p)
}

// column returns the column name of f as seen through alias. Over a
// derived table it is the alias the inner statement selected f as.
func (s *scope) column(alias string, f *schema.Field) (string, error) {
	if !s.derived || alias != "t0" {
		return f.Column, nil
	}
	if s.inner == nil {
		return f.Name, nil
	}
	name, ok := s.inner.Lookup(f.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s is not selected by the derived table", ErrUnknownMember, f.Name)
	}
	return name, nil
}

// render returns the text of n, compiled at the indentation of b.
func (s *scope) render(b *builder, n expr.Node) (string, error) {
	t := newBuilder(s.f, b.indent)
	if err := s.visit(t, n); err != nil {
		return "", err
	}
	return t.String(), nil
}

func (s *scope) visit(b *builder, n expr.Node) error {
	switch x := n.(type) {
	case *expr.Literal:
		lit, err := s.f.Literal(x.Value)
		if err != nil {
			return err
		}
		b.WriteString(lit)
		return nil
	case *expr.Member:
		return s.member(b, x)
	case *expr.Binary:
		return s.binary(b, x)
	case *expr.Unary:
		return s.unary(b, x)
	case *expr.Conditional:
		return s.conditional(b, x)
	case *expr.Coalesce:
		b.WriteString(s.f.coalesce + "(")
		if err := s.visit(b, x.X); err != nil {
			return err
		}
		b.WriteString(", ")
		if err := s.visit(b, x.Y); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	case *expr.Call:
		return s.call(b, x)
	case *expr.Param:
		if name, ok := s.scalarColumn(x); ok {
			b.Column("t0", name)
			return nil
		}
		return unsupported(typeName(x.T), "parameter "+x.Name)
	case *expr.Init:
		return unsupported(typeName(x.T), "initializer")
	case nil:
		return unsupported("<nil>", "")
	default:
		return unsupported(fmt.Sprintf("%T", n), "")
	}
}

// scalarColumn returns the column a scalar parameter over a derived table
// reads.
func (s *scope) scalarColumn(p *expr.Param) (string, bool) {
	if !s.derived || s.inner.Len() == 0 || p.T == nil || !schema.IsScalar(p.T) {
		return "", false
	}
	return s.inner.Columns[0].Name, true
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<untyped>"
	}
	return t.String()
}

func (s *scope) member(b *builder, m *expr.Member) error {
	root, path := expr.Path(m)
	switch r := root.(type) {
	case *expr.Literal:
		v, err := evalPath(r.Value, path)
		if err != nil {
			return err
		}
		lit, err := s.f.Literal(v)
		if err != nil {
			return err
		}
		b.WriteString(lit)
		return nil
	case *expr.Param:
		if expr.KindOf(r.T) == expr.KindGroup {
			return s.groupKey(b, path)
		}
		alias, e, f, err := s.resolve(r, path)
		if err != nil {
			return err
		}
		if !schema.IsScalar(f.Type) {
			return unsupported(typeName(f.Type), "used as a value")
		}
		if f.NoMapped {
			return unsupported(e.Name, f.Name)
		}
		column, err := s.column(alias, f)
		if err != nil {
			return err
		}
		b.Column(alias, column)
		return nil
	default:
		if x, ok := m.X.(*expr.Member); ok && x.Kind() == expr.KindString && m.Name == "Length" {
			return s.call(b, expr.Len(x))
		}
		return unsupported(typeName(m.X.Type()), m.Name)
	}
}

// resolve walks path from the source of p, minting navigation joins for
// every foreign-key member crossed, and returns the alias and entity owning
// the last member together with that member.
func (s *scope) resolve(p *expr.Param, path []string) (string, *schema.Entity, *schema.Field, error) {
	alias, err := s.aliases.Param(p)
	if err != nil {
		return "", nil, nil, err
	}
	e, err := s.entity(p.T)
	if err != nil {
		return "", nil, nil, err
	}
	for i, name := range path {
		f, ok := e.Field(name)
		if !ok {
			return "", nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, e.Name, name)
		}
		if i == len(path)-1 {
			return alias, e, f, nil
		}
		if !f.IsNavigation() {
			return "", nil, nil, unsupported(e.Name, name)
		}
		if alias, e, err = s.navigate(alias, e, f); err != nil {
			return "", nil, nil, err
		}
	}
	return "", nil, nil, unsupported(e.Name, "empty member path")
}

// navigate returns the alias and entity reached through the navigation
// member f of owner, which is read through parent. Explicitly joined
// tables are reused; otherwise one LEFT JOIN is minted per distinct path.
func (s *scope) navigate(parent string, owner *schema.Entity, f *schema.Field) (string, *schema.Entity, error) {
	target, err := s.entity(f.Target())
	if err != nil {
		return "", nil, err
	}
	if alias, ok := s.aliases.JoinTable(target.Table); ok {
		return alias, target, nil
	}
	alias, created := s.aliases.Navigation(parent + "." + f.Name)
	if !created {
		return alias, target, nil
	}
	nj := navJoin{table: target.Table, alias: alias}
	for i, k := range f.ForeignKey.InnerKeys {
		inner, _ := owner.Field(k)
		outer, ok := target.Field(f.ForeignKey.OuterKeys[i])
		if !ok || !outer.Mapped() {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, target.Name, f.ForeignKey.OuterKeys[i])
		}
		column, err := s.column(parent, inner)
		if err != nil {
			return "", nil, err
		}
		nj.on = append(nj.on, [2]string{
			alias + "." + s.f.Quote(outer.Column),
			parent + "." + s.f.Quote(column),
		})
	}
	s.navs = append(s.navs, nj)
	return alias, target, nil
}

// writeNavigations writes the LEFT JOINs minted so far.
func (s *scope) writeNavigations(b *builder) {
	for _, nj := range s.navs {
		b.nl()
		b.WriteString("LEFT JOIN ").Ident(nj.table).WriteString(" " + nj.alias + " ON ")
		for i, on := range nj.on {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(on[0] + " = " + on[1])
		}
	}
}

// groupKey renders g.Key and g.Key.Member paths by substituting the key
// selector of the grouping.
func (s *scope) groupKey(b *builder, path []string) error {
	if s.group == nil || path[0] != "Key" {
		return unsupported("grouping", path[0])
	}
	key := s.group.Key
	rest := path[1:]
	if init, ok := key.(*expr.Init); ok {
		if len(rest) == 0 {
			return &GroupKeyError{}
		}
		bnd, ok := init.Binding(rest[0])
		if !ok {
			return &GroupKeyError{Member: rest[0]}
		}
		key, rest = bnd.X, rest[1:]
	}
	if len(rest) > 0 {
		key = expr.M(key, rest...)
	}
	return s.visit(b, key)
}

// evalPath reads the member path of a captured value.
func evalPath(v any, path []string) (any, error) {
	rv := reflect.ValueOf(v)
	for _, name := range path {
		for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
			if rv.IsNil() {
				return nil, nil
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, typeName(rv.Type()), name)
		}
		fv := rv.FieldByName(name)
		if !fv.IsValid() || !fv.CanInterface() {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, rv.Type(), name)
		}
		rv = fv
	}
	return rv.Interface(), nil
}

// constant returns the value of a literal or of a member path rooted at
// a literal.
func constant(n expr.Node) (any, bool, error) {
	switch x := n.(type) {
	case *expr.Literal:
		return x.Value, true, nil
	case *expr.Member:
		root, path := expr.Path(x)
		if lit, ok := root.(*expr.Literal); ok {
			v, err := evalPath(lit.Value, path)
			return v, true, err
		}
	}
	return nil, false, nil
}

func (s *scope) binary(b *builder, x *expr.Binary) error {
	if x.Op == expr.OpAndAlso || x.Op == expr.OpOrElse {
		x = &expr.Binary{Op: x.Op, X: expr.Explicit(x.X, false), Y: expr.Explicit(x.Y, false)}
	}
	if x.Op == expr.OpEq || x.Op == expr.OpNe {
		if operand, ok := nullComparison(x); ok {
			if err := s.visit(b, operand); err != nil {
				return err
			}
			if x.Op == expr.OpEq {
				b.WriteString(" IS NULL")
			} else {
				b.WriteString(" IS NOT NULL")
			}
			return nil
		}
	}
	if x.Op == expr.OpAdd && (x.X.Kind() == expr.KindString || x.Y.Kind() == expr.KindString) {
		l, err := s.render(b, x.X)
		if err != nil {
			return err
		}
		r, err := s.render(b, x.Y)
		if err != nil {
			return err
		}
		b.WriteString(s.f.Concat(l, r))
		return nil
	}
	op, err := operator(x)
	if err != nil {
		return err
	}
	if err := s.operand(b, x, x.X); err != nil {
		return err
	}
	b.WriteString(op)
	return s.operand(b, x, x.Y)
}

func (s *scope) operand(b *builder, parent *expr.Binary, child expr.Node) error {
	if !bracket(parent, child) {
		return s.visit(b, child)
	}
	b.WriteString("(")
	if err := s.visit(b, child); err != nil {
		return err
	}
	b.WriteString(")")
	return nil
}

// nullComparison returns the operand compared against a null literal.
func nullComparison(x *expr.Binary) (expr.Node, bool) {
	if lit, ok := x.Y.(*expr.Literal); ok && lit.IsNull() {
		return x.X, true
	}
	if lit, ok := x.X.(*expr.Literal); ok && lit.IsNull() {
		return x.Y, true
	}
	return nil, false
}

func operator(x *expr.Binary) (string, error) {
	logical := x.Kind() == expr.KindBool
	switch x.Op {
	case expr.OpEq:
		return " = ", nil
	case expr.OpNe:
		return " <> ", nil
	case expr.OpGt:
		return " > ", nil
	case expr.OpGe:
		return " >= ", nil
	case expr.OpLt:
		return " < ", nil
	case expr.OpLe:
		return " <= ", nil
	case expr.OpAndAlso:
		return " AND ", nil
	case expr.OpOrElse:
		return " OR ", nil
	case expr.OpAnd:
		if logical {
			return " AND ", nil
		}
		return " & ", nil
	case expr.OpOr:
		if logical {
			return " OR ", nil
		}
		return " | ", nil
	case expr.OpXor:
		return " ^ ", nil
	case expr.OpAdd:
		return " + ", nil
	case expr.OpSub:
		return " - ", nil
	case expr.OpMul:
		return " * ", nil
	case expr.OpDiv:
		return " / ", nil
	case expr.OpMod:
		return " % ", nil
	}
	return "", unsupported("operator", x.Op.String())
}

// priority ranks operators; a child ranking above its parent is
// parenthesized.
func priority(n expr.Node) int {
	switch x := n.(type) {
	case *expr.Binary:
		switch x.Op {
		case expr.OpMul, expr.OpDiv, expr.OpMod:
			return 2
		case expr.OpAdd, expr.OpSub, expr.OpXor:
			return 3
		case expr.OpAnd:
			if x.Kind() == expr.KindBool {
				return 6
			}
			return 3
		case expr.OpOr:
			if x.Kind() == expr.KindBool {
				return 7
			}
			return 3
		case expr.OpAndAlso:
			return 6
		case expr.OpOrElse:
			return 7
		default:
			return 4
		}
	case *expr.Unary:
		if x.Kind() == expr.KindBool {
			return 5
		}
		return 1
	}
	return 0
}

func bracket(parent *expr.Binary, child expr.Node) bool {
	if u, ok := child.(*expr.Unary); ok {
		return bracket(parent, u.X)
	}
	if _, ok := child.(*expr.Binary); ok && parent.Op == expr.OpOrElse {
		return true
	}
	return priority(parent) < priority(child)
}

func (s *scope) unary(b *builder, x *expr.Unary) error {
	if x.Kind() == expr.KindBool {
		b.WriteString("NOT ")
	} else {
		b.WriteString("~")
	}
	_, wrap := x.X.(*expr.Binary)
	if wrap {
		b.WriteString("(")
	}
	if err := s.visit(b, x.X); err != nil {
		return err
	}
	if wrap {
		b.WriteString(")")
	}
	return nil
}

func (s *scope) conditional(b *builder, x *expr.Conditional) error {
	b.WriteString("(CASE WHEN ")
	if err := s.visit(b, expr.Explicit(x.Test, true)); err != nil {
		return err
	}
	b.WriteString(" THEN ")
	if err := s.visit(b, expr.Explicit(x.Then, true)); err != nil {
		return err
	}
	b.WriteString(" ELSE ")
	if err := s.visit(b, expr.Explicit(x.Else, true)); err != nil {
		return err
	}
	b.WriteString(" END)")
	return nil
}
