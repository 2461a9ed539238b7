package compiler

import (
	"strconv"
	"strings"

	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/materialize"
	"github.com/syssam/xframe/query"
	"github.com/syssam/xframe/schema"
)

// selectMode adjusts how selectBody writes a statement.
type selectMode struct {
	// exists replaces the select list with the flavor's existence column.
	exists bool
	// unordered drops ORDER BY and paging.
	unordered bool
	// extra holds order keys to append as columns.
	extra []query.Order
	// argument is an aggregate argument to append as a column.
	argument expr.Node
}

// selected is the outcome of writing a SELECT.
type selected struct {
	projection *materialize.Projection
	// extra holds the aliases of the columns written for selectMode.extra.
	extra []string
}

// compileSelect writes d and its unions to b.
func (c *Compiler) compileSelect(b *builder, d *query.Descriptor) (*materialize.Projection, error) {
	if d.Skip > 0 && len(d.OrderBy) == 0 {
		return nil, ErrOrderByRequired
	}
	var (
		p   *materialize.Projection
		err error
	)
	switch {
	case d.Any:
		p, err = c.exists(b, d)
	case d.Aggregate != nil && nested(d) && pushdown(d):
		p, err = c.pushedAggregate(b, d)
	case d.Aggregate != nil && nested(d):
		p, err = c.compileSelect(b, aggregateOver(d))
	case d.GroupBy != nil && d.Skip > 0:
		p, err = c.pagedGroups(b, d)
	default:
		var sel *selected
		sel, err = c.selectBody(b, d, selectMode{})
		if sel != nil {
			p = sel.projection
		}
	}
	if err != nil {
		return nil, err
	}
	if d.Any || d.Aggregate != nil {
		return p, nil
	}
	for _, u := range d.Union {
		b.nl().WriteString("UNION ALL").nl()
		if _, err := c.compileSelect(b, u); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// nested reports whether an aggregate of d has to read from d as a
// derived table.
func nested(d *query.Descriptor) bool {
	return d.Distinct || d.GroupBy != nil || d.Skip > 0 || d.Take > 0 || len(d.Union) > 0
}

// aggregateOver moves the aggregate of d onto an outer statement reading
// the rows of d.
func aggregateOver(d *query.Descriptor) *query.Descriptor {
	inner := *d
	inner.Aggregate = nil
	if inner.Skip == 0 && inner.Take == 0 {
		inner.OrderBy = nil
	}
	if inner.Projection == nil {
		inner.Projection = &expr.Param{T: d.Elem}
	}
	if p, ok := inner.Projection.(*expr.Param); ok && expr.KindOf(p.T) == expr.KindGroup {
		inner.Projection = expr.Key(p)
	}
	return &query.Descriptor{
		Kind:      query.KindSelect,
		Elem:      d.Elem,
		Aggregate: d.Aggregate,
		Subquery:  &inner,
	}
}

// pushdown reports whether the aggregate selector of d reads the source
// rows of d rather than its projected rows. Such a selector is evaluated
// by the inner statement.
func pushdown(d *query.Descriptor) bool {
	a := d.Aggregate
	if a.Selector == nil || a.Op == query.OpCount || d.GroupBy != nil || len(d.Union) > 0 {
		return false
	}
	p := expr.RootParam(a.Selector)
	if p == nil || p.T == nil || d.Elem == nil {
		return false
	}
	t := schema.Indirect(p.T)
	if t == schema.Indirect(d.Elem) {
		return false
	}
	if d.Source != nil && t == schema.Indirect(d.Source) {
		return true
	}
	for _, j := range d.Joins {
		if j.Source != nil && t == schema.Indirect(j.Source) {
			return true
		}
	}
	return false
}

// pushedAggregate writes an aggregate whose argument the projection of d
// does not carry. The inner statement selects the argument as one more
// column and the outer statement aggregates that column.
func (c *Compiler) pushedAggregate(b *builder, d *query.Descriptor) (*materialize.Projection, error) {
	inner := aggregateOver(d).Subquery
	sub := newBuilder(c.flavor, b.indent+1)
	sub.nl()
	sel, err := c.selectBody(sub, inner, selectMode{argument: d.Aggregate.Selector})
	if err != nil {
		return nil, err
	}
	b.WriteString("SELECT").nl()
	b.WriteString(strings.ToUpper(d.Aggregate.Op.String()) + "(")
	b.Column("t0", sel.extra[len(sel.extra)-1]).WriteString(")")
	b.nl().WriteString("FROM (").WriteString(sub.String()).nl().WriteString(") t0")
	return nil, nil
}

// exists writes the existence test of d.
func (c *Compiler) exists(b *builder, d *query.Descriptor) (*materialize.Projection, error) {
	b.WriteString(c.flavor.exists[0])
	inner := newBuilder(c.flavor, b.indent+1)
	inner.nl()
	if _, err := c.selectBody(inner, d, selectMode{exists: true, unordered: true}); err != nil {
		return nil, err
	}
	b.WriteString(inner.String()).nl().WriteString(c.flavor.exists[1])
	return nil, nil
}

// pagedGroups pages a grouped statement from outside: the groups are
// selected together with their order keys and the outer statement orders
// and pages them.
func (c *Compiler) pagedGroups(b *builder, d *query.Descriptor) (*materialize.Projection, error) {
	inner := newBuilder(c.flavor, b.indent+1)
	inner.nl()
	sel, err := c.selectBody(inner, d, selectMode{unordered: true, extra: d.OrderBy})
	if err != nil {
		return nil, err
	}
	p := &materialize.Projection{}
	b.WriteString("SELECT")
	n := sel.projection.Len() - len(sel.extra)
	for i, col := range sel.projection.Columns[:n] {
		if i > 0 {
			b.WriteString(",")
		}
		b.nl().Column("t0", col.Name)
		p.Add(col.Name, col.Member)
	}
	for _, nav := range sel.projection.Navs {
		p.AddNav(nav)
	}
	b.nl().WriteString("FROM (").WriteString(inner.String()).nl().WriteString(") t0")
	b.nl().WriteString("ORDER BY ")
	for i, o := range d.OrderBy {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Column("t0", sel.extra[i])
		if o.Desc {
			b.WriteString(" DESC")
		}
	}
	b.nl().WriteString(c.flavor.limit(d.Skip, d.Take))
	return p, nil
}

// selectBody writes one SELECT of d, without its unions.
func (c *Compiler) selectBody(b *builder, d *query.Descriptor, m selectMode) (*selected, error) {
	var (
		from  string
		inner *materialize.Projection
	)
	if d.Subquery != nil {
		sub := newBuilder(c.flavor, b.indent+1)
		sub.nl()
		p, err := c.compileSelect(sub, d.Subquery)
		if err != nil {
			return nil, err
		}
		from, inner = sub.String(), p
	}
	s, err := c.newScope(d, inner)
	if err != nil {
		return nil, err
	}
	if d.Subquery == nil {
		if d.Source == nil {
			return nil, unsupported("select", "source")
		}
		e, err := s.entity(d.Source)
		if err != nil {
			return nil, err
		}
		from = c.flavor.Quote(e.Table)
	}

	b.WriteString("SELECT")
	top := c.flavor.top && d.Take > 0 && d.Skip == 0 && !m.unordered
	if d.Distinct {
		b.WriteString(" DISTINCT")
	}
	if top {
		b.WriteString(" TOP(" + strconv.Itoa(d.Take) + ")")
	}
	sel := &selected{}
	list := newBuilder(c.flavor, b.indent)
	switch {
	case m.exists:
		list.WriteString(" " + c.flavor.anyColumn)
	case d.Aggregate != nil:
		list.nl()
		if err := s.statementAggregate(list, d.Aggregate); err != nil {
			return nil, err
		}
	default:
		pr := &projector{s: s, b: list, p: &materialize.Projection{}}
		if err := pr.node(d.Projection, ""); err != nil {
			return nil, err
		}
		if pr.n == 0 {
			return nil, unsupported(typeName(d.Elem), "empty projection")
		}
		for i, o := range m.extra {
			alias, err := pr.extra(o.Key, "OrderKey"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			sel.extra = append(sel.extra, alias)
		}
		if m.argument != nil {
			alias, err := pr.extra(m.argument, "Value")
			if err != nil {
				return nil, err
			}
			sel.extra = append(sel.extra, alias)
		}
		sel.projection = pr.p
	}

	joins := newBuilder(c.flavor, b.indent)
	if err := s.writeJoins(joins, d.Joins); err != nil {
		return nil, err
	}
	tail := newBuilder(c.flavor, b.indent)
	ordered := !m.unordered && (d.Aggregate == nil || d.Skip > 0)
	if err := s.writeTail(tail, d, ordered); err != nil {
		return nil, err
	}

	b.WriteString(list.String())
	b.nl().WriteString("FROM ")
	if d.Subquery != nil {
		b.WriteString("(").WriteString(from).nl().WriteString(")")
	} else {
		b.WriteString(from)
	}
	b.WriteString(" t0")
	b.WriteString(joins.String())
	s.writeNavigations(b)
	b.WriteString(tail.String())
	if ordered && (d.Skip > 0 || d.Take > 0 && !top) {
		b.nl().WriteString(c.flavor.limit(d.Skip, d.Take))
	}
	return sel, nil
}

// writeJoins writes the explicit joins of a statement.
func (s *scope) writeJoins(b *builder, joins []query.JoinClause) error {
	for _, j := range joins {
		if j.Inner != nil {
			return unsupported("join", "subquery source")
		}
		e, err := s.entity(j.Source)
		if err != nil {
			return err
		}
		alias, err := s.joinAlias(j)
		if err != nil {
			return err
		}
		b.nl()
		switch j.Op {
		case query.OpSelectMany:
			b.WriteString("CROSS JOIN ").Ident(e.Table).WriteString(" " + alias)
			continue
		case query.OpGroupJoin:
			b.WriteString("LEFT JOIN ")
		default:
			b.WriteString("INNER JOIN ")
		}
		b.Ident(e.Table).WriteString(" " + alias + " ON ")
		for i, k := range j.On {
			if i > 0 {
				b.WriteString(" AND ")
			}
			if err := s.visit(b, k.Outer); err != nil {
				return err
			}
			b.WriteString(" = ")
			if err := s.visit(b, k.Inner); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeTail writes the WHERE, GROUP BY, HAVING and ORDER BY clauses.
func (s *scope) writeTail(b *builder, d *query.Descriptor, ordered bool) error {
	if err := s.writeWhere(b, d.Where); err != nil {
		return err
	}
	if d.GroupBy != nil {
		b.nl().WriteString("GROUP BY ")
		keys := []expr.Node{d.GroupBy.Key}
		if init, ok := d.GroupBy.Key.(*expr.Init); ok {
			keys = keys[:0]
			for _, bd := range init.Bindings {
				keys = append(keys, bd.X)
			}
		}
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := s.visit(b, k); err != nil {
				return err
			}
		}
	}
	if d.Having != nil {
		b.nl().WriteString("HAVING ")
		if err := s.visit(b, expr.Explicit(d.Having, false)); err != nil {
			return err
		}
	}
	if ordered && len(d.OrderBy) > 0 {
		b.nl().WriteString("ORDER BY ")
		for i, o := range d.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := s.visit(b, o.Key); err != nil {
				return err
			}
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	return nil
}

func (s *scope) writeWhere(b *builder, where expr.Node) error {
	if where == nil {
		return nil
	}
	b.nl().WriteString("WHERE ")
	return s.visit(b, expr.Explicit(where, false))
}
