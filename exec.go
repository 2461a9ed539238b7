package xframe

import (
	"context"
	"fmt"
	"reflect"

	"github.com/syssam/xframe/compiler"
	"github.com/syssam/xframe/dialect"
	"github.com/syssam/xframe/dialect/sql"
	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/materialize"
	"github.com/syssam/xframe/query"
)

// All returns every row of q.
func All[T any](ctx context.Context, s *Session, q query.Query[T]) ([]T, error) {
	return rowsOf[T](ctx, s, q.Chain(), "all")
}

// First returns the first row of q matching pred. It returns a
// *NotFoundError when no row matches.
func First[T any](ctx context.Context, s *Session, q query.Query[T], pred ...expr.Node) (T, error) {
	var zero T
	rows, err := rowsOf[T](ctx, s, q.First(pred...).Chain(), "first")
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, NewNotFoundError(label(reflect.TypeFor[T]()))
	}
	return rows[0], nil
}

// Single returns the only row of q matching pred. It returns a
// *NotFoundError when no row matches and a *NotSingularError when more
// than one does.
func Single[T any](ctx context.Context, s *Session, q query.Query[T], pred ...expr.Node) (T, error) {
	var zero T
	for _, p := range pred {
		q = q.Where(p)
	}
	rows, err := rowsOf[T](ctx, s, q.Take(2).Chain(), "single")
	if err != nil {
		return zero, err
	}
	switch len(rows) {
	case 1:
		return rows[0], nil
	case 0:
		return zero, NewNotFoundError(label(reflect.TypeFor[T]()))
	default:
		return zero, NewNotSingularErrorWithCount(label(reflect.TypeFor[T]()), len(rows))
	}
}

// Count returns the number of rows of q matching pred.
func Count[T any](ctx context.Context, s *Session, q query.Query[T], pred ...expr.Node) (int, error) {
	return Scalar[int](ctx, s, q.Count(pred...))
}

// Any reports whether q has a row matching pred.
func Any[T any](ctx context.Context, s *Session, q query.Query[T], pred ...expr.Node) (bool, error) {
	return Scalar[bool](ctx, s, q.Any(pred...))
}

// Scalar runs a chain yielding one value, such as the chains returned by
// Query.Max or Query.Sum, and converts the value to R. An empty result or
// a NULL value yields the zero value of R.
func Scalar[R any](ctx context.Context, s *Session, chain *query.Chain) (R, error) {
	var zero R
	st, err := s.Compile(ctx, chain)
	if err != nil {
		return zero, NewQueryError(label(chain.Source()), "scalar", err)
	}
	if !st.Scalar {
		return zero, NewQueryError(label(chain.Source()), "scalar", fmt.Errorf("%w: row statement", ErrNotSupported))
	}
	values, err := fetch[R](ctx, s.driver, s.materializer, st.Text, nil)
	if err != nil {
		return zero, NewQueryError(label(chain.Source()), "scalar", err)
	}
	if len(values) == 0 {
		return zero, nil
	}
	return values[0], nil
}

// RawQuery runs text and rebuilds every row as T, matching columns to
// members and column names without regard to case.
func RawQuery[T any](ctx context.Context, s *Session, text string) ([]T, error) {
	rows, err := fetch[T](ctx, s.driver, s.materializer, text, nil)
	if err != nil {
		return nil, NewQueryError(label(reflect.TypeFor[T]()), "raw", err)
	}
	return rows, nil
}

// Exec runs a write chain immediately and returns the number of affected
// rows. Generated identities are not read back; use Create for that.
func Exec(ctx context.Context, s *Session, chain *query.Chain) (int64, error) {
	st, err := s.Compile(ctx, chain)
	if err != nil {
		return 0, NewMutationError(label(chain.Elem()), "exec", err)
	}
	if st.Kind == query.KindSelect {
		return 0, NewMutationError(label(chain.Elem()), "exec", fmt.Errorf("%w: select statement", ErrNotSupported))
	}
	var n int64
	if err := s.driver.Exec(ctx, st.Text, nil, &n); err != nil {
		return 0, NewMutationError(label(chain.Elem()), st.Kind.String(), constraint(err))
	}
	return n, nil
}

// Create inserts entity immediately and stores the generated identity, if
// the entity has one, into its identity member.
func Create[T any](ctx context.Context, s *Session, entity *T) error {
	name := label(reflect.TypeFor[T]())
	st, err := s.Compile(ctx, query.Insert(entity))
	if err != nil {
		return NewMutationError(name, "create", err)
	}
	if st.Identity == "" {
		if err := s.driver.Exec(ctx, st.Text, nil, nil); err != nil {
			return NewMutationError(name, "create", constraint(err))
		}
		return nil
	}
	id, err := s.identity(ctx, st)
	if err != nil {
		return NewMutationError(name, "create", constraint(err))
	}
	e, err := s.compiler.Registry().Entity(reflect.TypeFor[T]())
	if err != nil {
		return NewMutationError(name, "create", err)
	}
	f, _ := e.Field(st.Identity)
	if err := setIdentity(reflect.ValueOf(entity).Elem().FieldByIndex(f.Index), id); err != nil {
		return NewMutationError(name, "create", err)
	}
	return nil
}

// identity runs an insert and reads the identity it generated. Flavors
// reading it with a second statement run both in one transaction so they
// share a connection.
func (s *Session) identity(ctx context.Context, st *compiler.Statement) (int64, error) {
	if st.IdentityQuery == "" {
		return scanInt64(ctx, s.driver, st.Text)
	}
	tx, err := s.driver.Tx(ctx)
	if err != nil {
		return 0, err
	}
	if err := tx.Exec(ctx, st.Text, nil, nil); err != nil {
		return 0, s.rollback(tx, err)
	}
	id, err := scanInt64(ctx, tx, st.IdentityQuery)
	if err != nil {
		return 0, s.rollback(tx, err)
	}
	return id, tx.Commit()
}

func scanInt64(ctx context.Context, q dialect.ExecQuerier, text string) (int64, error) {
	rows := &sql.Rows{}
	if err := q.Query(ctx, text, nil, rows); err != nil {
		return 0, err
	}
	return sql.ScanInt64(rows)
}

func setIdentity(v reflect.Value, id int64) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.OverflowInt(id) {
			return fmt.Errorf("identity %d overflows %s", id, v.Type())
		}
		v.SetInt(id)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if id < 0 || v.OverflowUint(uint64(id)) {
			return fmt.Errorf("identity %d overflows %s", id, v.Type())
		}
		v.SetUint(uint64(id))
	default:
		return fmt.Errorf("identity member of type %s is not an integer", v.Type())
	}
	return nil
}

func rowsOf[T any](ctx context.Context, s *Session, chain *query.Chain, op string) ([]T, error) {
	st, err := s.Compile(ctx, chain)
	if err != nil {
		return nil, NewQueryError(label(chain.Source()), op, err)
	}
	if st.Scalar || st.Kind != query.KindSelect {
		return nil, NewQueryError(label(chain.Source()), op, fmt.Errorf("%w: %s statement", ErrNotSupported, st.Kind))
	}
	rows, err := fetch[T](ctx, s.driver, s.materializer, st.Text, st.Projection)
	if err != nil {
		return nil, NewQueryError(label(chain.Source()), op, err)
	}
	return rows, nil
}

// fetch runs text and rebuilds its rows. A nil projection matches
// columns by name.
func fetch[T any](ctx context.Context, q dialect.ExecQuerier, m *materialize.Materializer, text string, p *materialize.Projection) ([]T, error) {
	rows := &sql.Rows{}
	if err := q.Query(ctx, text, nil, rows); err != nil {
		return nil, err
	}
	return materialize.All[T](m, rows, p)
}
