// Package compiler turns normalized statement descriptors into SQL text for
// one dialect.
//
// Compilation runs per statement level: the sources of a level get aliases
// t0..tn, navigations crossed by members get LEFT JOINs numbered after
// them, and the select list records which member every column feeds so
// the materializer can rebuild objects from the rows.
//
//	comp, err := compiler.New(compiler.WithDialect("postgres"))
//	if err != nil {
//		return err
//	}
//	c := expr.P[Client]("c")
//	st, err := comp.Compile(query.From[Client]().Where(expr.Gt(expr.M(c, "Qty"), expr.V(5))).Chain())
//
// Literals are rendered inline; the compiled text carries no parameters.
package compiler

import (
	"fmt"
	"reflect"

	"github.com/syssam/xframe/materialize"
	"github.com/syssam/xframe/query"
	"github.com/syssam/xframe/schema"
)

// DefaultBatchSize is the number of rows written by one bulk INSERT.
const DefaultBatchSize = 200

// Statement is a compiled statement.
type Statement struct {
	Kind query.Kind
	Text string
	// Elem is the type of the values the statement's rows rebuild.
	Elem reflect.Type `msgpack:"-"`
	// Projection describes the columns of a SELECT. It is nil for
	// existence tests and aggregates.
	Projection *materialize.Projection
	// Scalar is set when the statement yields a single value.
	Scalar bool
	// Identity names the member receiving the generated identity of an
	// insert. The value is returned by the statement itself unless
	// IdentityQuery is set, in which case IdentityQuery reads it on the
	// same connection.
	Identity      string
	IdentityQuery string
	// Batches is the number of INSERT statements joined into Text.
	Batches int
}

// Compiler compiles descriptors for one flavor. It holds no per-statement
// state and is safe for concurrent use.
type Compiler struct {
	flavor    *Flavor
	registry  *schema.Registry
	batchSize int
}

// Option configures a Compiler.
type Option func(*Compiler) error

// WithDialect selects a built-in flavor by dialect or driver name.
func WithDialect(name string) Option {
	return func(c *Compiler) error {
		f, err := FlavorOf(name)
		if err != nil {
			return err
		}
		c.flavor = f
		return nil
	}
}

// WithFlavor sets the flavor.
func WithFlavor(f *Flavor) Option {
	return func(c *Compiler) error {
		if f == nil {
			return fmt.Errorf("compiler: nil flavor")
		}
		c.flavor = f
		return nil
	}
}

// WithRegistry sets the registry entity metadata is read from.
func WithRegistry(r *schema.Registry) Option {
	return func(c *Compiler) error {
		if r == nil {
			return fmt.Errorf("compiler: nil registry")
		}
		c.registry = r
		return nil
	}
}

// WithBatchSize sets the number of rows per bulk INSERT.
func WithBatchSize(n int) Option {
	return func(c *Compiler) error {
		if n <= 0 {
			return fmt.Errorf("compiler: batch size must be positive, got %d", n)
		}
		c.batchSize = n
		return nil
	}
}

// New returns a compiler. It defaults to the SQL Server flavor and the
// default registry.
func New(opts ...Option) (*Compiler, error) {
	c := &Compiler{
		flavor:    SQLServer,
		registry:  schema.Default(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Flavor returns the flavor of c.
func (c *Compiler) Flavor() *Flavor { return c.flavor }

// Registry returns the registry of c.
func (c *Compiler) Registry() *schema.Registry { return c.registry }

func (c *Compiler) entity(t reflect.Type) (*schema.Entity, error) {
	e, err := c.registry.Entity(t)
	if err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}
	return e, nil
}

// Compile normalizes chain and compiles the resulting descriptor.
func (c *Compiler) Compile(chain *query.Chain) (*Statement, error) {
	st, err := c.CompileDescriptor(query.Normalize(chain))
	if err != nil {
		return nil, err
	}
	if st.Kind == query.KindSelect && !st.Scalar {
		st.Elem = chain.Elem()
	}
	return st, nil
}

// CompileDescriptor compiles d.
func (c *Compiler) CompileDescriptor(d *query.Descriptor) (*Statement, error) {
	switch d.Kind {
	case query.KindInsert:
		return c.compileInsert(d)
	case query.KindUpdate:
		return c.compileUpdate(d)
	case query.KindDelete:
		return c.compileDelete(d)
	}
	b := newBuilder(c.flavor, 0)
	p, err := c.compileSelect(b, d)
	if err != nil {
		return nil, err
	}
	st := &Statement{
		Kind:       query.KindSelect,
		Text:       b.String(),
		Elem:       d.Elem,
		Projection: p,
	}
	switch {
	case d.Any:
		st.Scalar, st.Elem = true, reflect.TypeFor[bool]()
	case d.Aggregate != nil:
		st.Scalar, st.Elem = true, aggregateType(d.Aggregate)
	}
	return st, nil
}

func aggregateType(a *query.Aggregate) reflect.Type {
	switch {
	case a.Op == query.OpCount || a.Selector == nil:
		return reflect.TypeFor[int]()
	case a.Op == query.OpAvg:
		return reflect.TypeFor[float64]()
	default:
		return a.Selector.Type()
	}
}
