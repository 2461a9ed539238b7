package expr

import (
	"reflect"

	"github.com/syssam/xframe/schema"
)

// P returns a parameter over rows of T.
func P[T any](name string) *Param {
	return &Param{Name: name, T: reflect.TypeFor[T]()}
}

// Group returns the parameter of a grouping, the "g" of g.Key and
// aggregates over g.
func Group(name string) *Param {
	return &Param{Name: name, T: groupingType}
}

// M returns the member path x.path[0].path[1]... The type of each step is
// resolved from the struct type of the previous one. Steps that cannot be
// resolved, such as members of a grouping key, are left untyped.
func M(x Node, path ...string) *Member {
	if len(path) == 0 {
		panic("expr: M requires at least one member name")
	}
	var m *Member
	cur := x
	for _, name := range path {
		m = &Member{X: cur, Name: name, T: fieldType(cur.Type(), name)}
		cur = m
	}
	return m
}

// Key returns g.Key or a member path below it.
func Key(g Node, path ...string) *Member {
	return M(g, append([]string{"Key"}, path...)...)
}

func fieldType(t reflect.Type, name string) reflect.Type {
	t = schema.Indirect(t)
	if t == nil || t == groupingType || t.Kind() != reflect.Struct {
		return nil
	}
	f, ok := t.FieldByName(name)
	if !ok {
		return nil
	}
	return f.Type
}

// V returns a literal holding v.
func V(v any) *Literal { return &Literal{Value: v} }

// Null returns the null literal.
func Null() *Literal { return &Literal{} }

func binary(op Op, x, y Node) *Binary { return &Binary{Op: op, X: x, Y: y} }

// Eq returns x == y.
func Eq(x, y Node) *Binary { return binary(OpEq, x, y) }

// Ne returns x != y.
func Ne(x, y Node) *Binary { return binary(OpNe, x, y) }

// Gt returns x > y.
func Gt(x, y Node) *Binary { return binary(OpGt, x, y) }

// Ge returns x >= y.
func Ge(x, y Node) *Binary { return binary(OpGe, x, y) }

// Lt returns x < y.
func Lt(x, y Node) *Binary { return binary(OpLt, x, y) }

// Le returns x <= y.
func Le(x, y Node) *Binary { return binary(OpLe, x, y) }

// Add returns x + y.
func Add(x, y Node) *Binary { return binary(OpAdd, x, y) }

// Sub returns x - y.
func Sub(x, y Node) *Binary { return binary(OpSub, x, y) }

// Mul returns x * y.
func Mul(x, y Node) *Binary { return binary(OpMul, x, y) }

// Div returns x / y.
func Div(x, y Node) *Binary { return binary(OpDiv, x, y) }

// Mod returns x % y.
func Mod(x, y Node) *Binary { return binary(OpMod, x, y) }

// BitAnd returns x & y.
func BitAnd(x, y Node) *Binary { return binary(OpAnd, x, y) }

// BitOr returns x | y.
func BitOr(x, y Node) *Binary { return binary(OpOr, x, y) }

// Xor returns x ^ y.
func Xor(x, y Node) *Binary { return binary(OpXor, x, y) }

// And folds the conditions with the short-circuit AND, left to right.
func And(x Node, ys ...Node) Node {
	for _, y := range ys {
		x = binary(OpAndAlso, x, y)
	}
	return x
}

// Or folds the conditions with the short-circuit OR, left to right.
func Or(x Node, ys ...Node) Node {
	for _, y := range ys {
		x = binary(OpOrElse, x, y)
	}
	return x
}

// Not returns !x.
func Not(x Node) *Unary { return &Unary{X: x} }

// If returns test ? then : els.
func If(test, then, els Node) *Conditional {
	return &Conditional{Test: test, Then: then, Else: els}
}

// IfNull returns x ?? y.
func IfNull(x, y Node) *Coalesce { return &Coalesce{X: x, Y: y} }

// Bind returns a member binding for New.
func Bind(member string, x Node) Binding { return Binding{Member: member, X: x} }

// New returns an initializer of T.
func New[T any](bindings ...Binding) *Init {
	return &Init{T: reflect.TypeFor[T](), Bindings: bindings}
}

var (
	stringType  = reflect.TypeFor[string]()
	intType     = reflect.TypeFor[int]()
	float64Type = reflect.TypeFor[float64]()
)

func method(recv Node, name string, t reflect.Type, args ...Node) *Call {
	return &Call{Recv: recv, Name: name, Args: args, T: t}
}

// Contains reports whether the string x contains sub.
func Contains(x, sub Node) *Call { return method(x, "Contains", boolType, sub) }

// StartsWith reports whether the string x begins with prefix.
func StartsWith(x, prefix Node) *Call { return method(x, "StartsWith", boolType, prefix) }

// EndsWith reports whether the string x ends with suffix.
func EndsWith(x, suffix Node) *Call { return method(x, "EndsWith", boolType, suffix) }

// Trim strips leading and trailing blanks.
func Trim(x Node) *Call { return method(x, "Trim", stringType) }

// TrimStart strips leading blanks.
func TrimStart(x Node) *Call { return method(x, "TrimStart", stringType) }

// TrimEnd strips trailing blanks.
func TrimEnd(x Node) *Call { return method(x, "TrimEnd", stringType) }

// Substring returns the part of x starting at the zero-based start, up to
// the optional length.
func Substring(x, start Node, length ...Node) *Call {
	return method(x, "Substring", stringType, append([]Node{start}, length...)...)
}

// ToString converts x to a string.
func ToString(x Node) *Call { return method(x, "ToString", stringType) }

// Len returns the length of the string x.
func Len(x Node) *Call { return method(x, "Length", intType) }

// In reports whether x is one of set. A single collection operand, either
// a literal slice or a captured member, is expanded in place.
func In(x Node, set ...Node) *Call { return method(x, "In", boolType, set...) }

// Count counts the rows of the grouping g.
func Count(g Node) *Call { return method(nil, "Count", intType, g) }

// Max returns the largest x within the grouping g.
func Max(g, x Node) *Call { return method(nil, "Max", x.Type(), g, x) }

// Min returns the smallest x within the grouping g.
func Min(g, x Node) *Call { return method(nil, "Min", x.Type(), g, x) }

// Sum adds x over the grouping g.
func Sum(g, x Node) *Call { return method(nil, "Sum", x.Type(), g, x) }

// Avg averages x over the grouping g.
func Avg(g, x Node) *Call { return method(nil, "Avg", float64Type, g, x) }

// IsAggregate reports whether c is one of the grouping aggregates.
func (c *Call) IsAggregate() bool {
	if c.Recv != nil {
		return false
	}
	switch c.Name {
	case "Count", "Max", "Min", "Sum", "Avg":
		return true
	}
	return false
}
