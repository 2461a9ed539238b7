package query

import (
	"github.com/syssam/xframe/expr"
)

// Normalize folds c into a statement descriptor.
//
// Steps are read left to right. Once a Take, or a Skip followed by anything
// other than Take, has been seen, the remaining steps form an outer
// statement reading from the one built so far. Predicates given before a
// GroupBy filter rows, those given after it filter groups. Statements
// without a projection select every mapped column of their element type.
func Normalize(c *Chain) *Descriptor {
	return parse(c.ops, 0)
}

func parse(ops []Operation, start int) *Descriptor {
	var (
		d             = &Descriptor{Kind: KindSelect}
		where, having []expr.Node
		write         *Operation
		outer         = -1
	)
	for i := start; i < len(ops); i++ {
		op := ops[i]
		if d.Take > 0 || (d.Skip > 0 && op.Op != OpTake) {
			outer = i
			break
		}
		if op.Op != OpAny && !op.Op.IsAggregate() {
			d.Elem = op.Elem
		}
		switch op.Op {
		case OpSource:
			if d.Source == nil {
				d.Source = op.Source
			}
		case OpWhere:
			if d.GroupBy != nil {
				having = append(having, op.Expr)
			} else {
				where = append(where, op.Expr)
			}
		case OpHaving:
			having = append(having, op.Expr)
		case OpSelect:
			d.Projection = op.Expr
		case OpJoin, OpGroupJoin, OpSelectMany:
			d.Projection = op.Result
			d.Joins = append(d.Joins, JoinClause{
				Op:     op.Op,
				Source: op.Source,
				On:     op.On,
				Params: op.Params,
				Inner:  op.Inner,
			})
		case OpOrderBy, OpThenBy:
			d.OrderBy = append(d.OrderBy, Order{Key: op.Expr})
		case OpOrderByDescending, OpThenByDescending:
			d.OrderBy = append(d.OrderBy, Order{Key: op.Expr, Desc: true})
		case OpSkip:
			d.Skip = op.N
		case OpTake:
			d.Take = op.N
		case OpDistinct:
			d.Distinct = true
		case OpGroupBy:
			d.GroupBy = &Grouping{Key: op.Expr, Element: op.Result}
		case OpUnion:
			d.Union = append(d.Union, Normalize(op.Inner))
		case OpAny:
			d.Any = true
			where = appendPredicate(where, op.Expr)
		case OpFirst, OpSingle:
			d.Take = 1
			where = appendPredicate(where, op.Expr)
		case OpCount:
			d.Aggregate = &Aggregate{Op: op.Op}
			where = appendPredicate(where, op.Expr)
		case OpMax, OpMin, OpAvg, OpSum:
			d.Aggregate = &Aggregate{Op: op.Op, Selector: op.Expr}
		case OpInsert, OpUpdate, OpDelete:
			write = &ops[i]
		}
	}
	d.Where = conjunction(where)
	d.Having = conjunction(having)
	if d.Projection == nil && d.Aggregate == nil && write == nil {
		d.Projection = &expr.Param{T: d.Elem}
	}
	if write != nil {
		return writeDescriptor(d, write)
	}
	if outer >= 0 {
		o := parse(ops, outer)
		sel := o
		if o.Kind != KindSelect && o.Query != nil {
			sel = o.Query
		}
		sel.Subquery = d
		return o
	}
	return d
}

func writeDescriptor(d *Descriptor, op *Operation) *Descriptor {
	w := &Descriptor{
		Source: d.Source,
		Elem:   d.Source,
		Entity: op.Value,
		Set:    op.Expr,
	}
	switch op.Op {
	case OpInsert:
		w.Kind = KindInsert
		if op.Inner != nil {
			w.Query = Normalize(op.Inner)
		}
	case OpUpdate:
		w.Kind = KindUpdate
	case OpDelete:
		w.Kind = KindDelete
	}
	if op.Value == nil && w.Query == nil {
		w.Query = d
	}
	return w
}

func appendPredicate(preds []expr.Node, pred expr.Node) []expr.Node {
	if pred == nil {
		return preds
	}
	return append(preds, pred)
}

func conjunction(preds []expr.Node) expr.Node {
	if len(preds) == 0 {
		return nil
	}
	for i, p := range preds {
		preds[i] = expr.Explicit(p, false)
	}
	return expr.And(preds[0], preds[1:]...)
}
