package materialize

import (
	"fmt"
	"reflect"
)

// Rows is the cursor the materializer reads from. *sql.Rows and the
// dialect/sql row wrappers implement it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// All reads every row of rows into values of T and closes rows. A nil
// projection matches columns to members by name.
func All[T any](m *Materializer, rows Rows, p *Projection) ([]T, error) {
	var out []T
	err := Each[T](m, rows, p, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// Each calls fn with every row of rows rebuilt as T and closes rows.
// Iteration stops at the first error.
func Each[T any](m *Materializer, rows Rows, p *Projection, fn func(T) error) (err error) {
	defer func() {
		if cerr := rows.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("materialize: columns: %w", err)
	}
	t := reflect.TypeFor[T]()
	var plan *Plan
	if p == nil {
		plan, err = m.RawPlan(t, columns)
	} else {
		plan, err = m.Plan(t, p)
	}
	if err != nil {
		return err
	}
	cells := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		clear(cells)
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("materialize: scan: %w", err)
		}
		v, err := plan.Build(cells)
		if err != nil {
			return err
		}
		if err := fn(v.Interface().(T)); err != nil {
			return err
		}
	}
	return rows.Err()
}
