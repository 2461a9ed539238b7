package query_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/internal/fixture"
	"github.com/syssam/xframe/query"
)

func TestChainForks(t *testing.T) {
	c := expr.P[fixture.Client]("c")
	base := query.From[fixture.Client]()
	a := base.Where(expr.Eq(expr.M(c, "ClientID"), expr.V(1)))
	b := base.Where(expr.Eq(expr.M(c, "ClientID"), expr.V(2)))
	d := base.Where(expr.Eq(expr.M(c, "ClientID"), expr.V(3))).OrderBy(expr.M(c, "ClientName"))

	assert.Equal(t, 1, base.Chain().Len())
	assert.Equal(t, 2, a.Chain().Len())
	assert.Equal(t, 2, b.Chain().Len())
	assert.Equal(t, 3, d.Chain().Len())
	assert.NotEqual(t, a.Chain().Fingerprint(), b.Chain().Fingerprint())

	steps := a.Chain().Steps()
	steps[1].Op = query.OpDelete
	assert.Equal(t, query.OpWhere, a.Chain().Last().Op, "steps are a copy")

	u := a.Union(b).Union(d)
	desc := query.Normalize(u.Chain())
	require.Len(t, desc.Union, 2)
	assert.Equal(t, "(c.ClientID == int(2))", expr.Format(desc.Union[0].Where))
	require.Len(t, desc.Union[1].OrderBy, 1)
}

func TestFingerprint(t *testing.T) {
	build := func() *query.Chain {
		c := expr.P[fixture.Client]("c")
		return query.From[fixture.Client]().
			Where(expr.Contains(expr.M(c, "ClientName"), expr.V("TAN"))).
			OrderBy(expr.M(c, "ClientID")).
			Skip(10).
			Take(5).
			Chain()
	}
	assert.Equal(t, build().Fingerprint(), build().Fingerprint())
	assert.Len(t, build().Fingerprint(), 64)
	assert.Contains(t, build().String(), `Where(c.ClientName.Contains("TAN"))`)
	assert.Contains(t, build().String(), "Skip(10)")

	other := query.From[fixture.Client]().Take(5).Chain()
	assert.NotEqual(t, build().Fingerprint(), other.Fingerprint())

	// Captured values are compared by content, pointees included.
	type window struct{ Min *int }
	c := expr.P[fixture.Client]("c")
	capture := func(n int) *query.Chain {
		w := window{Min: &n}
		return query.From[fixture.Client]().Where(expr.Gt(expr.M(c, "Qty"), expr.M(expr.V(w), "Min"))).Chain()
	}
	assert.NotEqual(t, capture(1).Fingerprint(), capture(2).Fingerprint())
	assert.Equal(t, capture(3).Fingerprint(), capture(3).Fingerprint())
}

func TestNormalizeDefaults(t *testing.T) {
	d := query.Normalize(query.From[fixture.Client]().Chain())
	assert.Equal(t, query.KindSelect, d.Kind)
	assert.Equal(t, reflect.TypeFor[fixture.Client](), d.Source)
	assert.Equal(t, reflect.TypeFor[fixture.Client](), d.Elem)
	p, ok := d.Projection.(*expr.Param)
	require.True(t, ok, "default projection selects the whole row")
	assert.Equal(t, reflect.TypeFor[fixture.Client](), p.T)
	assert.Nil(t, d.Where)
	assert.Nil(t, d.Subquery)
}

func TestNormalizePredicates(t *testing.T) {
	c := expr.P[fixture.Client]("c")
	q := query.From[fixture.Client]().
		Where(expr.M(c, "Active")).
		Where(expr.Not(expr.M(c, "Active"))).
		Where(expr.Gt(expr.M(c, "Qty"), expr.V(0)))
	d := query.Normalize(q.Chain())
	assert.Equal(t,
		"(((c.Active == bool(true)) && (c.Active == bool(false))) && (c.Qty > int(0)))",
		expr.Format(d.Where))
}

func TestNormalizeGroupBy(t *testing.T) {
	c := expr.P[fixture.Client]("c")
	g := expr.Group("g")
	grouped := query.From[fixture.Client]().
		Where(expr.Gt(expr.M(c, "Qty"), expr.V(0))).
		GroupBy(expr.M(c, "ClientID")).
		Where(expr.Gt(expr.Count(g), expr.V(1)))
	sel := query.Select[fixture.ClientSummary](grouped, expr.New[fixture.ClientSummary](
		expr.Bind("ClientID", expr.Key(g)),
		expr.Bind("Total", expr.Count(g)),
	))
	d := query.Normalize(sel.Chain())
	require.NotNil(t, d.GroupBy)
	assert.Equal(t, "c.ClientID", expr.Format(d.GroupBy.Key))
	assert.Equal(t, "(c.Qty > int(0))", expr.Format(d.Where))
	assert.Equal(t, "(Count(g) > int(1))", expr.Format(d.Having))
	assert.Equal(t, reflect.TypeFor[fixture.ClientSummary](), d.Elem)
}

func TestNormalizePagingBoundary(t *testing.T) {
	c := expr.P[fixture.Client]("c")
	q := query.From[fixture.Client]().
		Where(expr.Eq(expr.M(c, "State"), expr.V(fixture.StateOK))).
		OrderBy(expr.M(c, "ClientID")).
		Skip(1).
		Take(1).
		Where(expr.Gt(expr.M(c, "Qty"), expr.V(5)))
	d := query.Normalize(q.Chain())

	assert.Nil(t, d.Source, "outer statement reads the derived table")
	assert.Equal(t, "(c.Qty > int(5))", expr.Format(d.Where))
	require.NotNil(t, d.Subquery)
	inner := d.Subquery
	assert.Equal(t, 1, inner.Skip)
	assert.Equal(t, 1, inner.Take)
	assert.Equal(t, "(c.State == fixture.State(1))", expr.Format(inner.Where))
	require.Len(t, inner.OrderBy, 1)
	assert.IsType(t, &expr.Param{}, d.Projection)
}

func TestNormalizeBoundaryRules(t *testing.T) {
	c := expr.P[fixture.Client]("c")
	key := expr.M(c, "ClientID")
	tests := []struct {
		name  string
		q     query.Query[fixture.Client]
		outer bool
	}{
		{"take", query.From[fixture.Client]().Take(5).OrderBy(key), true},
		{"skip then take", query.From[fixture.Client]().OrderBy(key).Skip(5).Take(5), false},
		{"skip then where", query.From[fixture.Client]().OrderBy(key).Skip(5).Where(expr.M(c, "Active")), true},
		{"distinct", query.From[fixture.Client]().Distinct().Where(expr.M(c, "Active")), false},
		{"first after take", query.From[fixture.Client]().Take(5).First(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := query.Normalize(tt.q.Chain())
			assert.Equal(t, tt.outer, d.Subquery != nil)
		})
	}
}

func TestNormalizeTerminals(t *testing.T) {
	c := expr.P[fixture.Client]("c")
	active := expr.M(c, "Active")

	d := query.Normalize(query.From[fixture.Client]().Any(active))
	assert.True(t, d.Any)
	assert.Equal(t, "(c.Active == bool(true))", expr.Format(d.Where))
	assert.Equal(t, reflect.TypeFor[fixture.Client](), d.Elem)

	d = query.Normalize(query.From[fixture.Client]().First(active).Chain())
	assert.Equal(t, 1, d.Take)
	assert.NotNil(t, d.Where)

	d = query.Normalize(query.From[fixture.Client]().Count(active))
	require.NotNil(t, d.Aggregate)
	assert.Equal(t, query.OpCount, d.Aggregate.Op)
	assert.Nil(t, d.Projection)
	assert.NotNil(t, d.Where)

	d = query.Normalize(query.From[fixture.Client]().Distinct().Min(expr.M(c, "Qty")))
	require.NotNil(t, d.Aggregate)
	assert.Equal(t, query.OpMin, d.Aggregate.Op)
	assert.True(t, d.Distinct)
	assert.Nil(t, d.Subquery)
}

func TestNormalizeJoins(t *testing.T) {
	a := expr.P[fixture.ClientAccount]("a")
	c := expr.P[fixture.Client]("c")
	s := expr.P[fixture.CloudServer]("s")

	joined := query.Join[fixture.ClientSummary](
		query.From[fixture.ClientAccount](),
		query.From[fixture.Client](),
		query.On(expr.M(a, "ClientID"), expr.M(c, "ClientID")),
		expr.New[fixture.ClientSummary](expr.Bind("ClientID", expr.M(a, "ClientID"))),
	)
	crossed := query.CrossJoin[fixture.ClientSummary](
		joined,
		query.From[fixture.CloudServer](),
		c, s,
		expr.New[fixture.ClientSummary](expr.Bind("ClientName", expr.M(s, "CloudServerName"))),
	)
	d := query.Normalize(crossed.Chain())
	require.Len(t, d.Joins, 2)
	assert.Equal(t, query.OpJoin, d.Joins[0].Op)
	assert.Equal(t, reflect.TypeFor[fixture.Client](), d.Joins[0].Source)
	assert.Nil(t, d.Joins[0].Inner)
	assert.Equal(t, query.OpSelectMany, d.Joins[1].Op)
	assert.Equal(t, []*expr.Param{c, s}, d.Joins[1].Params)
	assert.Equal(t, `new fixture.ClientSummary{ClientName: s.CloudServerName}`, expr.Format(d.Projection))

	composite := query.On(expr.M(a, "ClientID"), expr.M(c, "ClientID")).And(expr.M(a, "Qty"), expr.M(c, "Qty"))
	assert.Len(t, composite, 2)

	filtered := query.LeftJoin[fixture.ClientSummary](
		query.From[fixture.ClientAccount](),
		query.From[fixture.Client]().Where(expr.M(c, "Active")),
		query.On(expr.M(a, "ClientID"), expr.M(c, "ClientID")),
		expr.New[fixture.ClientSummary](),
	)
	d = query.Normalize(filtered.Chain())
	assert.Equal(t, query.OpGroupJoin, d.Joins[0].Op)
	assert.NotNil(t, d.Joins[0].Inner)
}

func TestNormalizeWrites(t *testing.T) {
	c := expr.P[fixture.Client]("c")

	d := query.Normalize(query.Insert(fixture.Thin{ThinID: 1}))
	assert.Equal(t, query.KindInsert, d.Kind)
	assert.False(t, d.Bulk())
	assert.Nil(t, d.Query)

	d = query.Normalize(query.InsertSlice([]fixture.Thin{{ThinID: 1}, {ThinID: 2}}))
	assert.True(t, d.Bulk())

	src := query.Select[fixture.Thin](query.From[fixture.Client](), expr.New[fixture.Thin](
		expr.Bind("ThinID", expr.M(c, "ClientID")),
	))
	d = query.Normalize(query.InsertSelect(src))
	require.NotNil(t, d.Query)
	assert.Equal(t, reflect.TypeFor[fixture.Thin](), d.Source)
	assert.Equal(t, reflect.TypeFor[fixture.Client](), d.Query.Source)

	d = query.Normalize(query.UpdateEntity(fixture.Thin{ThinID: 1}))
	assert.Equal(t, query.KindUpdate, d.Kind)
	assert.NotNil(t, d.Entity)

	set := expr.New[fixture.Client](expr.Bind("Remark", expr.V("x")))
	d = query.Normalize(query.From[fixture.Client]().Where(expr.M(c, "Active")).Update(set))
	assert.Equal(t, query.KindUpdate, d.Kind)
	assert.Same(t, set, d.Set)
	require.NotNil(t, d.Query)
	assert.NotNil(t, d.Query.Where)
	assert.Nil(t, d.Query.Projection)

	d = query.Normalize(query.From[fixture.Client]().Where(expr.M(c, "Active")).Delete())
	assert.Equal(t, query.KindDelete, d.Kind)
	require.NotNil(t, d.Query)
	assert.Equal(t, "DELETE", d.Kind.String())

	d = query.Normalize(query.DeleteEntity(&fixture.Thin{ThinID: 1}))
	assert.Equal(t, query.KindDelete, d.Kind)
	assert.Nil(t, d.Query)
}
