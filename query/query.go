package query

import (
	"reflect"

	"github.com/syssam/xframe/expr"
)

// Query is a typed view of a chain producing rows of T.
type Query[T any] struct {
	chain *Chain
}

// From starts a query over the table of T.
func From[T any]() Query[T] {
	return Query[T]{chain: NewChain(reflect.TypeFor[T]())}
}

// Of wraps an existing chain. The chain must produce rows of T.
func Of[T any](c *Chain) Query[T] { return Query[T]{chain: c} }

// Chain returns the underlying chain.
func (q Query[T]) Chain() *Chain { return q.chain }

func (q Query[T]) with(op Operation) Query[T] {
	return Query[T]{chain: q.chain.Append(op)}
}

// Where filters rows. After GroupBy the predicate filters groups.
func (q Query[T]) Where(pred expr.Node) Query[T] {
	return q.with(Operation{Op: OpWhere, Expr: pred})
}

// Having filters groups.
func (q Query[T]) Having(pred expr.Node) Query[T] {
	return q.with(Operation{Op: OpHaving, Expr: pred})
}

// OrderBy sorts rows by key, ascending.
func (q Query[T]) OrderBy(key expr.Node) Query[T] {
	return q.with(Operation{Op: OpOrderBy, Expr: key})
}

// OrderByDescending sorts rows by key, descending.
func (q Query[T]) OrderByDescending(key expr.Node) Query[T] {
	return q.with(Operation{Op: OpOrderByDescending, Expr: key})
}

// ThenBy adds an ascending sort key.
func (q Query[T]) ThenBy(key expr.Node) Query[T] {
	return q.with(Operation{Op: OpThenBy, Expr: key})
}

// ThenByDescending adds a descending sort key.
func (q Query[T]) ThenByDescending(key expr.Node) Query[T] {
	return q.with(Operation{Op: OpThenByDescending, Expr: key})
}

// Skip bypasses the first n rows. The query must be ordered.
func (q Query[T]) Skip(n int) Query[T] {
	return q.with(Operation{Op: OpSkip, N: n})
}

// Take limits the result to n rows.
func (q Query[T]) Take(n int) Query[T] {
	return q.with(Operation{Op: OpTake, N: n})
}

// Distinct removes duplicate rows.
func (q Query[T]) Distinct() Query[T] {
	return q.with(Operation{Op: OpDistinct})
}

// Union appends the rows of other. Both sides must project the same
// columns in the same order.
func (q Query[T]) Union(other Query[T]) Query[T] {
	return q.with(Operation{Op: OpUnion, Inner: other.chain})
}

// First limits the result to the first row matching the optional predicate.
func (q Query[T]) First(pred ...expr.Node) Query[T] {
	return q.with(Operation{Op: OpFirst, Expr: fold(pred)})
}

// Single is First for queries expected to match one row.
func (q Query[T]) Single(pred ...expr.Node) Query[T] {
	return q.with(Operation{Op: OpSingle, Expr: fold(pred)})
}

var (
	boolType  = reflect.TypeFor[bool]()
	intType   = reflect.TypeFor[int]()
	floatType = reflect.TypeFor[float64]()
)

// Any tests whether a row matching the optional predicate exists.
func (q Query[T]) Any(pred ...expr.Node) *Chain {
	return q.chain.Append(Operation{Op: OpAny, Expr: fold(pred), Elem: boolType})
}

// Count counts the rows matching the optional predicate.
func (q Query[T]) Count(pred ...expr.Node) *Chain {
	return q.chain.Append(Operation{Op: OpCount, Expr: fold(pred), Elem: intType})
}

// Max returns the largest value of selector.
func (q Query[T]) Max(selector expr.Node) *Chain {
	return q.chain.Append(Operation{Op: OpMax, Expr: selector, Elem: selector.Type()})
}

// Min returns the smallest value of selector.
func (q Query[T]) Min(selector expr.Node) *Chain {
	return q.chain.Append(Operation{Op: OpMin, Expr: selector, Elem: selector.Type()})
}

// Sum adds the values of selector.
func (q Query[T]) Sum(selector expr.Node) *Chain {
	return q.chain.Append(Operation{Op: OpSum, Expr: selector, Elem: selector.Type()})
}

// Avg averages the values of selector.
func (q Query[T]) Avg(selector expr.Node) *Chain {
	return q.chain.Append(Operation{Op: OpAvg, Expr: selector, Elem: floatType})
}

// GroupBy groups rows by key. The optional element selector shapes the
// rows aggregated within each group. Members of the key are referenced
// from later steps with expr.Key.
func (q Query[T]) GroupBy(key expr.Node, element ...expr.Node) Query[expr.Grouping] {
	op := Operation{Op: OpGroupBy, Expr: key, Elem: reflect.TypeFor[expr.Grouping]()}
	if len(element) > 0 {
		op.Result = element[0]
	}
	return Query[expr.Grouping]{chain: q.chain.Append(op)}
}

// Update assigns the bindings of set to every row of the query's source
// table matched by the query.
func (q Query[T]) Update(set expr.Node) *Chain {
	return q.chain.Append(Operation{Op: OpUpdate, Expr: set})
}

// Delete removes every row of the query's source table matched by the
// query.
func (q Query[T]) Delete() *Chain {
	return q.chain.Append(Operation{Op: OpDelete})
}

// Select projects every row through projection.
func Select[R, T any](q Query[T], projection expr.Node) Query[R] {
	return Query[R]{chain: q.chain.Append(Operation{
		Op:   OpSelect,
		Expr: projection,
		Elem: reflect.TypeFor[R](),
	})}
}

// Keys is the condition of a correlated join.
type Keys []KeyPair

// On returns the condition outer == inner.
func On(outer, inner expr.Node) Keys {
	return Keys{{Outer: outer, Inner: inner}}
}

// And adds an equality to a composite condition.
func (k Keys) And(outer, inner expr.Node) Keys {
	return append(k[:len(k):len(k)], KeyPair{Outer: outer, Inner: inner})
}

func join[R, T, I any](op Op, outer Query[T], inner Query[I], on Keys, params []*expr.Param, result expr.Node) Query[R] {
	o := Operation{
		Op:     op,
		On:     on,
		Params: params,
		Result: result,
		Source: inner.chain.Source(),
		Elem:   reflect.TypeFor[R](),
	}
	if inner.chain.Len() > 1 {
		o.Inner = inner.chain
	}
	return Query[R]{chain: outer.chain.Append(o)}
}

// Join correlates outer with the table of inner. Rows without a match on
// either side are dropped. The result selector shapes the joined rows.
func Join[R, T, I any](outer Query[T], inner Query[I], on Keys, result expr.Node) Query[R] {
	return join[R](OpJoin, outer, inner, on, nil, result)
}

// LeftJoin is Join keeping outer rows without a match.
func LeftJoin[R, T, I any](outer Query[T], inner Query[I], on Keys, result expr.Node) Query[R] {
	return join[R](OpGroupJoin, outer, inner, on, nil, result)
}

// CrossJoin pairs every row of outer with every row of inner. a and b are
// the parameters result refers to the outer and inner rows by.
func CrossJoin[R, T, I any](outer Query[T], inner Query[I], a, b *expr.Param, result expr.Node) Query[R] {
	return join[R](OpSelectMany, outer, inner, nil, []*expr.Param{a, b}, result)
}

// Insert adds entity, or every element of a slice of entities, to the
// table of T.
func Insert[T any](entity T) *Chain {
	return NewChain(reflect.TypeFor[T]()).Append(Operation{Op: OpInsert, Value: entity})
}

// InsertSlice adds entities to the table of T.
func InsertSlice[T any](entities []T) *Chain {
	return NewChain(reflect.TypeFor[T]()).Append(Operation{Op: OpInsert, Value: entities})
}

// InsertSelect copies the rows of q into the table of T. The projection of
// q names the target columns.
func InsertSelect[T any](q Query[T]) *Chain {
	return NewChain(reflect.TypeFor[T]()).Append(Operation{Op: OpInsert, Inner: q.chain})
}

// UpdateEntity writes every column of entity, matching the row by key.
func UpdateEntity[T any](entity T) *Chain {
	return NewChain(reflect.TypeFor[T]()).Append(Operation{Op: OpUpdate, Value: entity})
}

// DeleteEntity removes the row matching the key of entity.
func DeleteEntity[T any](entity T) *Chain {
	return NewChain(reflect.TypeFor[T]()).Append(Operation{Op: OpDelete, Value: entity})
}

func fold(preds []expr.Node) expr.Node {
	if len(preds) == 0 {
		return nil
	}
	return expr.And(preds[0], preds[1:]...)
}
