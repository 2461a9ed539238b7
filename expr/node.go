// Package expr defines the predicate and projection trees compiled into SQL.
//
// Nodes form a closed set: every node type is declared in this package and
// the compiler dispatches on them with a single type switch. Each node knows
// its result type, from which its semantic Kind is derived.
package expr

import (
	"reflect"
)

// Node is a predicate or projection tree node.
type Node interface {
	// Type returns the Go type of the node's result. It is nil for the
	// null literal and for members of a grouping key whose type is only
	// known to the compiler.
	Type() reflect.Type
	// Kind returns the semantic kind of the node's result.
	Kind() Kind

	node()
}

// Param is a bound source parameter, the "c" of a predicate over rows c.
// Parameters are identified by name within a chain.
type Param struct {
	Name string
	T    reflect.Type
}

// Member is a member access X.Name. Chained members form navigation paths.
type Member struct {
	X    Node
	Name string
	T    reflect.Type
}

// Literal is a constant. Literals of struct type are captured values whose
// members are evaluated eagerly.
type Literal struct {
	Value any
}

// Binary is a binary operation.
type Binary struct {
	Op Op
	X  Node
	Y  Node
}

// Unary is a logical or bitwise negation.
type Unary struct {
	X Node
}

// Conditional is a ternary Test ? Then : Else.
type Conditional struct {
	Test Node
	Then Node
	Else Node
}

// Call is a function or method call. Recv is nil for free functions
// such as aggregates.
type Call struct {
	Recv Node
	Name string
	Args []Node
	T    reflect.Type
}

// Binding assigns X to the member Member of an object initializer.
type Binding struct {
	Member string
	X      Node
}

// Init constructs an object of type T from member bindings.
type Init struct {
	T        reflect.Type
	Bindings []Binding
}

// Coalesce yields X unless it is null, in which case it yields Y.
type Coalesce struct {
	X Node
	Y Node
}

func (*Param) node()       {}
func (*Member) node()      {}
func (*Literal) node()     {}
func (*Binary) node()      {}
func (*Unary) node()       {}
func (*Conditional) node() {}
func (*Call) node()        {}
func (*Init) node()        {}
func (*Coalesce) node()    {}

var boolType = reflect.TypeFor[bool]()

func (p *Param) Type() reflect.Type { return p.T }
func (p *Param) Kind() Kind         { return KindOf(p.T) }

func (m *Member) Type() reflect.Type { return m.T }

func (m *Member) Kind() Kind {
	if m.T == nil {
		return KindInvalid
	}
	return KindOf(m.T)
}

func (l *Literal) Type() reflect.Type { return reflect.TypeOf(l.Value) }

func (l *Literal) Kind() Kind {
	if l.IsNull() {
		return KindNull
	}
	return KindOf(reflect.TypeOf(l.Value))
}

// IsNull reports whether the literal is nil or a nil pointer.
func (l *Literal) IsNull() bool {
	if l.Value == nil {
		return true
	}
	v := reflect.ValueOf(l.Value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func (b *Binary) Type() reflect.Type {
	if b.Op.IsComparison() || b.Op == OpAndAlso || b.Op == OpOrElse {
		return boolType
	}
	if t := b.X.Type(); t != nil {
		return t
	}
	return b.Y.Type()
}

func (b *Binary) Kind() Kind { return KindOf(b.Type()) }

func (u *Unary) Type() reflect.Type { return u.X.Type() }
func (u *Unary) Kind() Kind         { return u.X.Kind() }

func (c *Conditional) Type() reflect.Type {
	if t := c.Then.Type(); t != nil {
		return t
	}
	return c.Else.Type()
}

func (c *Conditional) Kind() Kind { return KindOf(c.Type()) }

func (c *Call) Type() reflect.Type { return c.T }
func (c *Call) Kind() Kind         { return KindOf(c.T) }

func (i *Init) Type() reflect.Type { return i.T }
func (i *Init) Kind() Kind         { return KindOf(i.T) }

// Binding returns the binding of the named member.
func (i *Init) Binding(member string) (Binding, bool) {
	for _, b := range i.Bindings {
		if b.Member == member {
			return b, true
		}
	}
	return Binding{}, false
}

func (c *Coalesce) Type() reflect.Type {
	if t := c.X.Type(); t != nil {
		return t
	}
	return c.Y.Type()
}

func (c *Coalesce) Kind() Kind { return KindOf(c.Type()) }

// Op is a binary operator.
type Op uint8

// Binary operators. AndAlso and OrElse are the short-circuit boolean
// operators; And, Or and Xor are bitwise on numbers and logical on bools.
const (
	OpEq Op = iota + 1
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpAndAlso
	OpOrElse
	OpAnd
	OpOr
	OpXor
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

var opNames = [...]string{
	OpEq:      "==",
	OpNe:      "!=",
	OpGt:      ">",
	OpGe:      ">=",
	OpLt:      "<",
	OpLe:      "<=",
	OpAndAlso: "&&",
	OpOrElse:  "||",
	OpAnd:     "&",
	OpOr:      "|",
	OpXor:     "^",
	OpAdd:     "+",
	OpSub:     "-",
	OpMul:     "*",
	OpDiv:     "/",
	OpMod:     "%",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "op(?)"
}

// IsComparison reports whether o compares its operands.
func (o Op) IsComparison() bool {
	return o >= OpEq && o <= OpLe
}
