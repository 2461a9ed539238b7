package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/query"
	"github.com/syssam/xframe/schema"
)

// entityValue returns the struct value of an entity write.
func entityValue(e *schema.Entity, v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("compiler: nil %s entity", e.Name)
		}
		rv = rv.Elem()
	}
	if rv.Type() != e.Type {
		return reflect.Value{}, fmt.Errorf("compiler: %s is not a %s entity", rv.Type(), e.Name)
	}
	return rv, nil
}

func (c *Compiler) value(f *schema.Field, rv reflect.Value) (string, error) {
	return c.flavor.Literal(f.Value(rv).Interface())
}

// insertable returns the members written by an insert.
func insertable(e *schema.Entity) []*schema.Field {
	var fields []*schema.Field
	for _, f := range e.Mapped() {
		if !f.Identity {
			fields = append(fields, f)
		}
	}
	return fields
}

func (c *Compiler) insertHeader(b *builder, e *schema.Entity, columns []string) {
	b.WriteString("INSERT INTO ").Ident(e.Table).nl().WriteString("(")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(col)
	}
	b.WriteString(")")
}

func (c *Compiler) insertRow(b *builder, fields []*schema.Field, rv reflect.Value) error {
	b.WriteString("(")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		lit, err := c.value(f, rv)
		if err != nil {
			return err
		}
		b.WriteString(lit)
	}
	b.WriteString(")")
	return nil
}

func columnsOf(fields []*schema.Field) []string {
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Column
	}
	return columns
}

func (c *Compiler) compileInsert(d *query.Descriptor) (*Statement, error) {
	e, err := c.entity(d.Source)
	if err != nil {
		return nil, err
	}
	switch {
	case d.Query != nil:
		return c.insertSelect(e, d.Query)
	case d.Bulk():
		return c.insertBulk(e, d.Entity)
	}
	rv, err := entityValue(e, d.Entity)
	if err != nil {
		return nil, err
	}
	fields := insertable(e)
	b := newBuilder(c.flavor, 0)
	c.insertHeader(b, e, columnsOf(fields))
	b.nl().WriteString("VALUES").nl()
	if err := c.insertRow(b, fields, rv); err != nil {
		return nil, err
	}
	st := &Statement{Kind: query.KindInsert}
	if id := e.Identity(); id != nil {
		suffix, q := c.flavor.identity(c.flavor, id.Column)
		if suffix != "" {
			b.nl().WriteString(suffix)
		}
		st.Identity, st.IdentityQuery = id.Name, q
	}
	st.Text = b.String()
	return st, nil
}

// insertBulk writes one INSERT per batch of rows. Generated identities are
// not read back.
func (c *Compiler) insertBulk(e *schema.Entity, entities any) (*Statement, error) {
	rv := reflect.ValueOf(entities)
	if rv.Len() == 0 {
		return nil, unsupported("Insert", "empty slice")
	}
	fields := insertable(e)
	columns := columnsOf(fields)
	var batches []string
	b := newBuilder(c.flavor, 0)
	for i := 0; i < rv.Len(); i++ {
		if i%c.batchSize == 0 {
			if i > 0 {
				batches = append(batches, b.String())
				b = newBuilder(c.flavor, 0)
			}
			c.insertHeader(b, e, columns)
			b.nl().WriteString("VALUES").nl()
		} else {
			b.WriteString(",").nl()
		}
		row, err := entityValue(e, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		if err := c.insertRow(b, fields, row); err != nil {
			return nil, err
		}
	}
	batches = append(batches, b.String())
	return &Statement{
		Kind:    query.KindInsert,
		Text:    strings.Join(batches, ";\n"),
		Batches: len(batches),
	}, nil
}

// insertSelect copies the rows of q. Every projected member names the
// target column it is written to.
func (c *Compiler) insertSelect(e *schema.Entity, q *query.Descriptor) (*Statement, error) {
	if p, ok := q.Projection.(*expr.Param); ok && p.T == e.Type {
		init := &expr.Init{T: e.Type}
		for _, f := range insertable(e) {
			init.Bindings = append(init.Bindings, expr.Bind(f.Name, expr.M(p, f.Name)))
		}
		cp := *q
		cp.Projection = init
		q = &cp
	}
	sel := newBuilder(c.flavor, 0)
	p, err := c.compileSelect(sel, q)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, unsupported("Insert", "aggregate source")
	}
	if len(p.Navs) > 0 {
		return nil, unsupported("Insert", "navigation")
	}
	columns := make([]string, len(p.Columns))
	for i, col := range p.Columns {
		f, ok := e.Field(col.Member)
		if !ok || !f.Mapped() {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, e.Name, col.Member)
		}
		columns[i] = f.Column
	}
	b := newBuilder(c.flavor, 0)
	c.insertHeader(b, e, columns)
	b.nl().WriteString(sel.String())
	return &Statement{Kind: query.KindInsert, Text: b.String()}, nil
}

// keyPredicate writes t0.[k1] = v1 AND t0.[k2] = v2.
func (c *Compiler) keyPredicate(b *builder, keys []*schema.Field, rv reflect.Value) error {
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" AND ")
		}
		lit, err := c.value(k, rv)
		if err != nil {
			return err
		}
		b.Column("t0", k.Column).WriteString(" = " + lit)
	}
	return nil
}

func (c *Compiler) compileUpdate(d *query.Descriptor) (*Statement, error) {
	if d.Entity == nil {
		return c.updateQuery(d)
	}
	e, err := c.entity(d.Source)
	if err != nil {
		return nil, err
	}
	keys := e.Keys()
	if len(keys) == 0 {
		return nil, &MissingKeyError{Entity: e.Name, Op: "Update"}
	}
	rv, err := entityValue(e, d.Entity)
	if err != nil {
		return nil, err
	}
	var set []*schema.Field
	for _, f := range e.Mapped() {
		if !f.Identity && !f.Key {
			set = append(set, f)
		}
	}
	if len(set) == 0 {
		return nil, ErrEmptyUpdate
	}
	b := newBuilder(c.flavor, 0)
	switch c.flavor.write {
	case writeFrom:
		b.WriteString("UPDATE t0 SET")
	case writeJoin:
		b.WriteString("UPDATE ").Ident(e.Table).WriteString(" t0 SET")
	default:
		b.WriteString("UPDATE ").Ident(e.Table).WriteString(" AS t0 SET")
	}
	for i, f := range set {
		if i > 0 {
			b.WriteString(",")
		}
		lit, err := c.value(f, rv)
		if err != nil {
			return nil, err
		}
		b.nl()
		c.target(b, f.Column)
		b.WriteString(" = " + lit)
	}
	if c.flavor.write == writeFrom {
		b.nl().WriteString("FROM ").Ident(e.Table).WriteString(" t0")
	}
	b.nl().WriteString("WHERE ")
	if err := c.keyPredicate(b, keys, rv); err != nil {
		return nil, err
	}
	return &Statement{Kind: query.KindUpdate, Text: b.String()}, nil
}

// target writes the column assigned by SET. Keyed flavors do not qualify
// assigned columns.
func (c *Compiler) target(b *builder, column string) {
	if c.flavor.write == writeKeyed {
		b.Ident(column)
		return
	}
	b.Column("t0", column)
}

func (c *Compiler) compileDelete(d *query.Descriptor) (*Statement, error) {
	if d.Entity == nil {
		return c.deleteQuery(d)
	}
	e, err := c.entity(d.Source)
	if err != nil {
		return nil, err
	}
	keys := e.Keys()
	if len(keys) == 0 {
		return nil, &MissingKeyError{Entity: e.Name, Op: "Delete"}
	}
	rv, err := entityValue(e, d.Entity)
	if err != nil {
		return nil, err
	}
	b := newBuilder(c.flavor, 0)
	c.deleteHead(b, e)
	b.nl().WriteString("WHERE ")
	if err := c.keyPredicate(b, keys, rv); err != nil {
		return nil, err
	}
	return &Statement{Kind: query.KindDelete, Text: b.String()}, nil
}

func (c *Compiler) deleteHead(b *builder, e *schema.Entity) {
	if c.flavor.write == writeKeyed {
		b.WriteString("DELETE FROM ").Ident(e.Table).WriteString(" AS t0")
		return
	}
	b.WriteString("DELETE t0 FROM ").Ident(e.Table).WriteString(" t0")
}

// filter is the compiled filtering part of an update or delete by query.
type filter struct {
	s     *scope
	e     *schema.Entity
	where string
	// keyed is set when a keyed flavor has to match the target rows
	// against a subquery.
	keyed bool
	joins *builder
}

func (c *Compiler) filter(op string, q *query.Descriptor, before func(*scope) error) (*filter, error) {
	if q == nil || q.Source == nil || q.Subquery != nil {
		return nil, unsupported(op, "subquery source")
	}
	if q.GroupBy != nil || q.Skip > 0 || q.Take > 0 || len(q.Union) > 0 || q.Distinct {
		return nil, unsupported(op, "paged or grouped source")
	}
	s, err := c.newScope(q, nil)
	if err != nil {
		return nil, err
	}
	e, err := s.entity(q.Source)
	if err != nil {
		return nil, err
	}
	if before != nil {
		if err := before(s); err != nil {
			return nil, err
		}
	}
	ft := &filter{s: s, e: e}
	if q.Where != nil {
		if ft.where, err = s.render(newBuilder(c.flavor, 0), expr.Explicit(q.Where, false)); err != nil {
			return nil, err
		}
	}
	indent := 0
	if c.flavor.write == writeKeyed && (len(q.Joins) > 0 || len(s.navs) > 0) {
		if len(e.Keys()) == 0 {
			return nil, &MissingKeyError{Entity: e.Name, Op: op}
		}
		ft.keyed, indent = true, 1
	}
	ft.joins = newBuilder(c.flavor, indent)
	if err := s.writeJoins(ft.joins, q.Joins); err != nil {
		return nil, err
	}
	s.writeNavigations(ft.joins)
	return ft, nil
}

// writeWhere writes the WHERE clause of the filter. Keyed filters match
// the key of every target row against the filtering SELECT.
func (ft *filter) writeWhere(b *builder) {
	if !ft.keyed {
		if ft.where != "" {
			b.nl().WriteString("WHERE " + ft.where)
		}
		return
	}
	keys := ft.e.Keys()
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = "t0." + b.f.Quote(k.Column)
	}
	list := strings.Join(cols, ", ")
	b.nl().WriteString("WHERE ")
	if len(keys) == 1 {
		b.WriteString(list + " IN (")
	} else {
		b.WriteString("(" + list + ") IN (")
	}
	b.indent++
	b.nl().WriteString("SELECT " + list)
	b.nl().WriteString("FROM ").Ident(ft.e.Table).WriteString(" t0")
	b.WriteString(ft.joins.String())
	if ft.where != "" {
		b.nl().WriteString("WHERE " + ft.where)
	}
	b.indent--
	b.nl().WriteString(")")
}

// assignment is one rendered SET item.
type assignment struct {
	column string
	value  string
}

func (c *Compiler) updateQuery(d *query.Descriptor) (*Statement, error) {
	init, ok := d.Set.(*expr.Init)
	if !ok {
		return nil, unsupported("Update", "assignment")
	}
	if len(init.Bindings) == 0 {
		return nil, ErrEmptyUpdate
	}
	var set []assignment
	ft, err := c.filter("Update", d.Query, func(s *scope) error {
		e, err := s.entity(d.Query.Source)
		if err != nil {
			return err
		}
		for _, bd := range init.Bindings {
			f, ok := e.Field(bd.Member)
			if !ok || !f.Mapped() {
				return fmt.Errorf("%w: %s.%s", ErrUnknownMember, e.Name, bd.Member)
			}
			for _, p := range expr.Params(bd.X) {
				if alias, err := s.aliases.Param(p); err != nil || alias != "t0" {
					return unsupported("Update", "assignment from a joined source")
				}
			}
			v, err := s.render(newBuilder(c.flavor, 0), bd.X)
			if err != nil {
				return err
			}
			if len(s.navs) > 0 {
				return unsupported("Update", "assignment through a navigation")
			}
			set = append(set, assignment{column: f.Column, value: v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b := newBuilder(c.flavor, 0)
	switch c.flavor.write {
	case writeFrom:
		b.WriteString("UPDATE t0 SET")
		c.writeSet(b, set)
		b.nl().WriteString("FROM ").Ident(ft.e.Table).WriteString(" t0")
		b.WriteString(ft.joins.String())
	case writeJoin:
		b.WriteString("UPDATE ").Ident(ft.e.Table).WriteString(" t0")
		b.WriteString(ft.joins.String())
		b.nl().WriteString("SET")
		c.writeSet(b, set)
	default:
		b.WriteString("UPDATE ").Ident(ft.e.Table).WriteString(" AS t0 SET")
		c.writeSet(b, set)
	}
	ft.writeWhere(b)
	return &Statement{Kind: query.KindUpdate, Text: b.String()}, nil
}

func (c *Compiler) writeSet(b *builder, set []assignment) {
	for i, a := range set {
		if i > 0 {
			b.WriteString(",")
		}
		b.nl()
		c.target(b, a.column)
		b.WriteString(" = " + a.value)
	}
}

func (c *Compiler) deleteQuery(d *query.Descriptor) (*Statement, error) {
	ft, err := c.filter("Delete", d.Query, nil)
	if err != nil {
		return nil, err
	}
	b := newBuilder(c.flavor, 0)
	c.deleteHead(b, ft.e)
	if !ft.keyed {
		b.WriteString(ft.joins.String())
	}
	ft.writeWhere(b)
	return &Statement{Kind: query.KindDelete, Text: b.String()}, nil
}
