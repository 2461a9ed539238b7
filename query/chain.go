// Package query builds operation chains and folds them into statement
// descriptors.
//
// A chain is an immutable list of operations. Every builder call returns a
// new chain holding a copy of its prefix, so one prefix may be continued in
// any number of directions:
//
//	c := expr.P[Client]("c")
//	base := query.From[Client]()
//	active := base.Where(expr.M(c, "Active"))
//	locked := base.Where(expr.Not(expr.M(c, "Active")))
//
// Normalize walks a chain once and produces the Descriptor consumed by the
// compiler.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/xframe/expr"
)

// Op identifies an operation of a chain.
type Op uint8

// Chain operations.
const (
	OpSource Op = iota + 1
	OpWhere
	OpHaving
	OpSelect
	OpJoin
	OpGroupJoin
	OpSelectMany
	OpOrderBy
	OpOrderByDescending
	OpThenBy
	OpThenByDescending
	OpSkip
	OpTake
	OpDistinct
	OpGroupBy
	OpUnion
	OpAny
	OpFirst
	OpSingle
	OpCount
	OpMax
	OpMin
	OpAvg
	OpSum
	OpInsert
	OpUpdate
	OpDelete
)

var opNames = [...]string{
	OpSource:            "Source",
	OpWhere:             "Where",
	OpHaving:            "Having",
	OpSelect:            "Select",
	OpJoin:              "Join",
	OpGroupJoin:         "GroupJoin",
	OpSelectMany:        "SelectMany",
	OpOrderBy:           "OrderBy",
	OpOrderByDescending: "OrderByDescending",
	OpThenBy:            "ThenBy",
	OpThenByDescending:  "ThenByDescending",
	OpSkip:              "Skip",
	OpTake:              "Take",
	OpDistinct:          "Distinct",
	OpGroupBy:           "GroupBy",
	OpUnion:             "Union",
	OpAny:               "Any",
	OpFirst:             "First",
	OpSingle:            "Single",
	OpCount:             "Count",
	OpMax:               "Max",
	OpMin:               "Min",
	OpAvg:               "Avg",
	OpSum:               "Sum",
	OpInsert:            "Insert",
	OpUpdate:            "Update",
	OpDelete:            "Delete",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// IsAggregate reports whether o is one of the aggregate operations.
func (o Op) IsAggregate() bool {
	return o >= OpCount && o <= OpSum
}

// IsJoin reports whether o adds a source to the statement.
func (o Op) IsJoin() bool {
	return o == OpJoin || o == OpGroupJoin || o == OpSelectMany
}

// KeyPair is one equality of a join condition.
type KeyPair struct {
	Outer expr.Node
	Inner expr.Node
}

// Operation is one step of a chain.
type Operation struct {
	Op Op
	// Expr is the predicate, selector, sort key, group key or update
	// assignment of the step.
	Expr expr.Node
	// Result is the result selector of a join or the element selector
	// of a grouping.
	Result expr.Node
	// On holds the key pairs of a correlated join.
	On []KeyPair
	// Params holds the outer and inner parameters of a cross join.
	Params []*expr.Param
	// N is the row count of Skip and Take.
	N int
	// Source is the element type of a source or the inner side of a join.
	Source reflect.Type
	// Inner is the operand of Union, the rows of an insert-select, or the
	// inner query of a join.
	Inner *Chain
	// Value holds the entity, or slice of entities, of an entity write.
	Value any
	// Elem is the element type of the chain after this step.
	Elem reflect.Type
}

// Chain is an immutable sequence of operations. The zero value is not
// usable; chains start from From or NewChain.
type Chain struct {
	ops []Operation
}

// NewChain returns a chain reading rows of elem.
func NewChain(elem reflect.Type) *Chain {
	return &Chain{ops: []Operation{{Op: OpSource, Source: elem, Elem: elem}}}
}

// Append returns a new chain with op added. If op.Elem is nil the element
// type is carried over. c is left untouched.
func (c *Chain) Append(op Operation) *Chain {
	if op.Elem == nil {
		op.Elem = c.Elem()
	}
	ops := make([]Operation, len(c.ops), len(c.ops)+1)
	copy(ops, c.ops)
	return &Chain{ops: append(ops, op)}
}

// Steps returns a copy of the operations.
func (c *Chain) Steps() []Operation { return slices.Clone(c.ops) }

// Len returns the number of operations.
func (c *Chain) Len() int { return len(c.ops) }

// Last returns the final operation.
func (c *Chain) Last() Operation { return c.ops[len(c.ops)-1] }

// Elem returns the element type produced by the chain.
func (c *Chain) Elem() reflect.Type { return c.Last().Elem }

// Source returns the element type of the first source.
func (c *Chain) Source() reflect.Type { return c.ops[0].Source }

// Fingerprint returns a digest identifying the chain. Chains with equal
// operations and equal trees share a fingerprint.
func (c *Chain) Fingerprint() string {
	var b strings.Builder
	c.describe(&b)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// String describes the chain, one operation per line.
func (c *Chain) String() string {
	var b strings.Builder
	c.describe(&b)
	return b.String()
}

func (c *Chain) describe(b *strings.Builder) {
	for i, op := range c.ops {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(op.Op.String())
		b.WriteByte('(')
		var args []string
		if op.Source != nil {
			args = append(args, op.Source.String())
		}
		if op.Expr != nil {
			args = append(args, expr.Format(op.Expr))
		}
		for _, k := range op.On {
			args = append(args, expr.Format(k.Outer)+" = "+expr.Format(k.Inner))
		}
		for _, p := range op.Params {
			args = append(args, p.Name)
		}
		if op.Result != nil {
			args = append(args, expr.Format(op.Result))
		}
		if op.Op == OpSkip || op.Op == OpTake {
			args = append(args, strconv.Itoa(op.N))
		}
		if op.Value != nil {
			args = append(args, expr.Format(expr.V(op.Value)))
		}
		b.WriteString(strings.Join(args, ", "))
		b.WriteByte(')')
		if op.Inner != nil {
			b.WriteString(" {\n")
			op.Inner.describe(b)
			b.WriteString("\n}")
		}
	}
}
