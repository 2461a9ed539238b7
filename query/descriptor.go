package query

import (
	"reflect"

	"github.com/syssam/xframe/expr"
)

// Kind is the kind of statement a descriptor compiles to.
type Kind uint8

// Statement kinds.
const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// JoinClause is a source added to a statement by a join step.
type JoinClause struct {
	Op     Op
	Source reflect.Type
	On     []KeyPair
	Params []*expr.Param
	// Inner is set when the inner side is more than a bare table.
	Inner *Chain
}

// Order is one sort key.
type Order struct {
	Key  expr.Node
	Desc bool
}

// Grouping holds the key and element selectors of a GroupBy.
type Grouping struct {
	Key     expr.Node
	Element expr.Node
}

// Aggregate is an aggregate applied over the rows of a statement.
// Selector is nil for Count.
type Aggregate struct {
	Op       Op
	Selector expr.Node
}

// Descriptor is the normalized form of one statement.
type Descriptor struct {
	Kind Kind
	// Source is the element type of the FROM table. It is nil when the
	// statement reads from Subquery.
	Source reflect.Type
	// Elem is the element type of the statement's rows.
	Elem reflect.Type

	Projection expr.Node
	Where      expr.Node
	Having     expr.Node
	Joins      []JoinClause
	OrderBy    []Order
	GroupBy    *Grouping
	Skip       int
	Take       int
	Distinct   bool
	Any        bool
	Aggregate  *Aggregate
	// Subquery is the statement this one reads from as a derived table.
	Subquery *Descriptor
	Union    []*Descriptor

	// Entity is the entity, or slice of entities, of an entity write.
	Entity any
	// Set is the member assignment of an expression update.
	Set expr.Node
	// Query is the filtering statement of an update or delete, or the
	// rows of an insert-select.
	Query *Descriptor
}

// Bulk reports whether an insert carries a slice of entities.
func (d *Descriptor) Bulk() bool {
	if d.Kind != KindInsert || d.Entity == nil {
		return false
	}
	return reflect.TypeOf(d.Entity).Kind() == reflect.Slice
}
