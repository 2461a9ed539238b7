package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/query"
)

var aggregateFuncs = map[string]string{
	"Count": "COUNT",
	"Max":   "MAX",
	"Min":   "MIN",
	"Sum":   "SUM",
	"Avg":   "AVG",
}

func (s *scope) call(b *builder, c *expr.Call) error {
	if c.IsAggregate() {
		return s.aggregate(b, c)
	}
	if c.Recv == nil {
		return unsupported("func", c.Name)
	}
	switch c.Name {
	case "Contains", "StartsWith", "EndsWith":
		if c.Recv.Kind() == expr.KindCollection && c.Name == "Contains" && len(c.Args) == 1 {
			return s.in(b, c.Args[0], []expr.Node{c.Recv})
		}
		return s.like(b, c)
	case "Trim":
		return s.wrap(b, "RTRIM(LTRIM(", c.Recv, "))")
	case "TrimStart":
		return s.wrap(b, "LTRIM(", c.Recv, ")")
	case "TrimEnd":
		return s.wrap(b, "RTRIM(", c.Recv, ")")
	case "ToString":
		return s.wrap(b, "CAST(", c.Recv, " AS "+s.f.stringType+")")
	case "Length":
		return s.wrap(b, s.f.length+"(", c.Recv, ")")
	case "Substring":
		return s.substring(b, c)
	case "In":
		return s.in(b, c.Recv, c.Args)
	}
	return unsupported(typeName(c.Recv.Type()), c.Name)
}

func (s *scope) wrap(b *builder, open string, x expr.Node, end string) error {
	b.WriteString(open)
	if err := s.visit(b, x); err != nil {
		return err
	}
	b.WriteString(end)
	return nil
}

// like renders Contains, StartsWith and EndsWith. Constant patterns are
// folded into one literal; computed ones are concatenated with wildcards.
func (s *scope) like(b *builder, c *expr.Call) error {
	if len(c.Args) != 1 {
		return unsupported(typeName(c.Recv.Type()), c.Name)
	}
	if err := s.visit(b, c.Recv); err != nil {
		return err
	}
	b.WriteString(" LIKE ")
	v, ok, err := constant(c.Args[0])
	if err != nil {
		return err
	}
	if ok {
		text := ""
		if v != nil {
			text = fmt.Sprint(v)
		}
		switch c.Name {
		case "Contains":
			text = "%" + text + "%"
		case "StartsWith":
			text += "%"
		case "EndsWith":
			text = "%" + text
		}
		b.WriteString(s.f.StringLiteral(text))
		return nil
	}
	arg, err := s.render(b, c.Args[0])
	if err != nil {
		return err
	}
	switch c.Name {
	case "Contains":
		b.WriteString(s.f.Concat("'%'", arg, "'%'"))
	case "StartsWith":
		b.WriteString(s.f.Concat(arg, "'%'"))
	case "EndsWith":
		b.WriteString(s.f.Concat("'%'", arg))
	}
	return nil
}

// substring renders a zero-based Substring as the one-based SQL function.
// Without a length the rest of the string is taken.
func (s *scope) substring(b *builder, c *expr.Call) error {
	if len(c.Args) == 0 || len(c.Args) > 2 {
		return unsupported(typeName(c.Recv.Type()), c.Name)
	}
	b.WriteString(s.f.substring + "(")
	if err := s.visit(b, c.Recv); err != nil {
		return err
	}
	b.WriteString(", ")
	if err := s.visit(b, c.Args[0]); err != nil {
		return err
	}
	b.WriteString(" + 1, ")
	if len(c.Args) == 2 {
		if err := s.visit(b, c.Args[1]); err != nil {
			return err
		}
	} else if err := s.wrap(b, s.f.length+"(", c.Recv, ")"); err != nil {
		return err
	}
	b.WriteString(")")
	return nil
}

// in renders x IN(set). A single constant collection operand is expanded
// in place; an empty set renders IN(NULL), which matches no row.
func (s *scope) in(b *builder, x expr.Node, set []expr.Node) error {
	if err := s.visit(b, x); err != nil {
		return err
	}
	b.WriteString(" IN(")
	if len(set) == 1 {
		v, ok, err := constant(set[0])
		if err != nil {
			return err
		}
		if ok && isCollection(v) {
			if reflect.ValueOf(v).Len() == 0 {
				b.WriteString("NULL)")
				return nil
			}
			lit, err := s.f.Literal(v)
			if err != nil {
				return err
			}
			b.WriteString(lit + ")")
			return nil
		}
	}
	if len(set) == 0 {
		b.WriteString("NULL)")
		return nil
	}
	for i, n := range set {
		if i > 0 {
			b.WriteString(",")
		}
		if err := s.visit(b, n); err != nil {
			return err
		}
	}
	b.WriteString(")")
	return nil
}

func isCollection(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// aggregate renders an aggregate over the current grouping, such as
// g.Count() or g.Max(a.Qty).
func (s *scope) aggregate(b *builder, c *expr.Call) error {
	if s.group == nil {
		return unsupported("aggregate", c.Name)
	}
	fn := aggregateFuncs[c.Name]
	if c.Name == "Count" {
		b.WriteString(fn + "(1)")
		return nil
	}
	if len(c.Args) < 2 {
		return unsupported("aggregate", c.Name)
	}
	arg := c.Args[1]
	if _, ok := arg.(*expr.Param); ok {
		if s.group.Element == nil {
			return unsupported("aggregate", c.Name)
		}
		arg = s.group.Element
	}
	return s.wrap(b, fn+"(", arg, ")")
}

// statementAggregate renders the aggregate applied over the rows of a
// statement.
func (s *scope) statementAggregate(b *builder, a *query.Aggregate) error {
	fn := strings.ToUpper(a.Op.String())
	if a.Op == query.OpCount || a.Selector == nil {
		b.WriteString("COUNT(1)")
		return nil
	}
	return s.wrap(b, fn+"(", a.Selector, ")")
}
