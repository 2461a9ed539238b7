package xframe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/xframe"
	"github.com/syssam/xframe/dialect"
	"github.com/syssam/xframe/dialect/sql"
	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/internal/fixture"
	"github.com/syssam/xframe/query"
	"github.com/syssam/xframe/schema"
)

var sqliteSchema = []string{
	`CREATE TABLE "Sys_CloudServer" (
		"CloudServerID" INTEGER PRIMARY KEY,
		"CloudServerCode" TEXT NOT NULL,
		"CloudServerName" TEXT NOT NULL
	)`,
	`CREATE TABLE "Bas_Client" (
		"ClientID" INTEGER PRIMARY KEY,
		"ClientCode" TEXT NOT NULL UNIQUE,
		"ClientName" TEXT NOT NULL,
		"Remark" TEXT NOT NULL,
		"State" INTEGER NOT NULL,
		"ActiveDate" DATETIME,
		"Qty" INTEGER NOT NULL,
		"CloudServerID" INTEGER NOT NULL,
		"Active" INTEGER NOT NULL
	)`,
	`CREATE TABLE "Sys_ThinIdentity" (
		"ThinID" INTEGER PRIMARY KEY AUTOINCREMENT,
		"ThinName" TEXT NOT NULL
	)`,
}

func openSQLite(t *testing.T) *xframe.Session {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	// Every connection to :memory: opens a database of its own.
	drv.DB().SetMaxOpenConns(1)
	for _, ddl := range sqliteSchema {
		_, err := drv.DB().Exec(ddl)
		require.NoError(t, err)
	}
	s, err := xframe.NewSession(drv, xframe.WithRegistry(schema.NewRegistry()))
	require.NoError(t, err)
	return s
}

type serverCount struct {
	CloudServerID int
	Total         int
}

func TestSQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	c := expr.P[fixture.Client]("c")
	clients := query.From[fixture.Client]()
	active := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, xframe.InsertBulk(ctx, s, []fixture.CloudServer{
		{CloudServerID: 1, CloudServerCode: "S1", CloudServerName: "One"},
		{CloudServerID: 2, CloudServerCode: "S2", CloudServerName: "Two"},
	}))
	require.NoError(t, xframe.InsertBulk(ctx, s, []fixture.Client{
		{ClientID: 1, ClientCode: "A", ClientName: "Alpha", State: fixture.StateOK, ActiveDate: &active, Qty: 5, CloudServerID: 1, Active: true},
		{ClientID: 2, ClientCode: "B", ClientName: "Beta", Qty: 0, CloudServerID: 1},
		{ClientID: 3, ClientCode: "C", ClientName: "Gamma", Qty: 9, CloudServerID: 2, Active: true},
	}))
	_, err := s.SubmitChanges(ctx)
	require.NoError(t, err)
	require.Empty(t, s.Pending())

	t.Run("Read", func(t *testing.T) {
		n, err := xframe.Count(ctx, s, clients)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		rows, err := xframe.All(ctx, s, clients.
			Where(expr.Eq(expr.M(c, "CloudServer", "CloudServerCode"), expr.V("S1"))).
			OrderBy(expr.M(c, "ClientID")))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "A", rows[0].ClientCode)
		assert.Equal(t, fixture.StateOK, rows[0].State)
		assert.True(t, rows[0].Active)
		require.NotNil(t, rows[0].ActiveDate)
		assert.True(t, active.Equal(*rows[0].ActiveDate))
		assert.Equal(t, "B", rows[1].ClientCode)
		assert.False(t, rows[1].Active)
		assert.Nil(t, rows[1].ActiveDate)
		assert.Nil(t, rows[1].CloudServer, "navigations are not loaded by entity queries")

		page, err := xframe.All(ctx, s, clients.OrderBy(expr.M(c, "ClientID")).Skip(1).Take(1))
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, 2, page[0].ClientID)

		first, err := xframe.First(ctx, s, clients, expr.StartsWith(expr.M(c, "ClientName"), expr.V("Ga")))
		require.NoError(t, err)
		assert.Equal(t, "C", first.ClientCode)

		_, err = xframe.First(ctx, s, clients, expr.Eq(expr.M(c, "ClientCode"), expr.V("Z")))
		assert.True(t, xframe.IsNotFound(err))

		_, err = xframe.Single(ctx, s, clients, expr.M(c, "Active"))
		assert.True(t, xframe.IsNotSingular(err))
	})

	t.Run("Projection", func(t *testing.T) {
		q := query.Select[fixture.ClientSummary](clients.OrderBy(expr.M(c, "ClientID")), expr.New[fixture.ClientSummary](
			expr.Bind("ClientID", expr.M(c, "ClientID")),
			expr.Bind("ClientName", expr.M(c, "ClientName")),
			expr.Bind("Server", expr.M(c, "CloudServer")),
		))
		rows, err := xframe.All(ctx, s, q)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		require.NotNil(t, rows[2].Server)
		assert.Equal(t, fixture.CloudServer{CloudServerID: 2, CloudServerCode: "S2", CloudServerName: "Two"}, *rows[2].Server)
		assert.Equal(t, "Gamma", rows[2].ClientName)
	})

	t.Run("Aggregates", func(t *testing.T) {
		ok, err := xframe.Any(ctx, s, clients, expr.Gt(expr.M(c, "Qty"), expr.V(100)))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = xframe.Any(ctx, s, clients, expr.M(c, "Active"))
		require.NoError(t, err)
		assert.True(t, ok)

		top, err := xframe.Scalar[int](ctx, s, clients.Max(expr.M(c, "Qty")))
		require.NoError(t, err)
		assert.Equal(t, 9, top)

		sum, err := xframe.Scalar[int](ctx, s, clients.Sum(expr.M(c, "Qty")))
		require.NoError(t, err)
		assert.Equal(t, 14, sum)

		g := expr.Group("g")
		grouped := query.Select[serverCount](clients.GroupBy(expr.M(c, "CloudServerID")), expr.New[serverCount](
			expr.Bind("CloudServerID", expr.Key(g)),
			expr.Bind("Total", expr.Count(g)),
		)).OrderBy(expr.Key(g))
		counts, err := xframe.All(ctx, s, grouped)
		require.NoError(t, err)
		assert.Equal(t, []serverCount{{1, 2}, {2, 1}}, counts)
	})

	t.Run("Write", func(t *testing.T) {
		set := expr.New[fixture.Client](expr.Bind("Qty", expr.Add(expr.M(c, "Qty"), expr.V(1))))
		require.NoError(t, xframe.UpdateWhere(ctx, s, clients.Where(expr.Eq(expr.M(c, "CloudServer", "CloudServerCode"), expr.V("S1"))), set))
		n, err := s.SubmitChanges(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		sum, err := xframe.Scalar[int](ctx, s, clients.Sum(expr.M(c, "Qty")))
		require.NoError(t, err)
		assert.Equal(t, 16, sum)

		require.NoError(t, xframe.DeleteWhere(ctx, s, clients.Where(expr.Not(expr.M(c, "Active")))))
		n, err = s.SubmitChanges(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		left, err := xframe.Count(ctx, s, clients)
		require.NoError(t, err)
		assert.Equal(t, 2, left)

		deleted, err := xframe.Exec(ctx, s, clients.Where(expr.Eq(expr.M(c, "ClientCode"), expr.V("Z"))).Delete())
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("Constraint", func(t *testing.T) {
		require.NoError(t, xframe.Insert(ctx, s, fixture.Client{ClientID: 10, ClientCode: "A", ClientName: "Dup", CloudServerID: 1}))
		_, err := s.SubmitChanges(ctx)
		require.Error(t, err)
		assert.True(t, xframe.IsMutationError(err))
		assert.True(t, xframe.IsConstraintError(err))
		assert.Len(t, s.Pending(), 1)
		s.Discard()

		n, err := xframe.Count(ctx, s, clients, expr.Eq(expr.M(c, "ClientID"), expr.V(10)))
		require.NoError(t, err)
		assert.Zero(t, n, "the failed batch is rolled back")
	})

	t.Run("Create", func(t *testing.T) {
		a := &fixture.ThinIdentity{ThinName: "a"}
		require.NoError(t, xframe.Create(ctx, s, a))
		b := &fixture.ThinIdentity{ThinName: "b"}
		require.NoError(t, xframe.Create(ctx, s, b))
		assert.Equal(t, 1, a.ThinID)
		assert.Equal(t, 2, b.ThinID)

		rows, err := xframe.RawQuery[fixture.ThinIdentity](ctx, s, `SELECT thinid, THINNAME FROM "Sys_ThinIdentity" ORDER BY 1`)
		require.NoError(t, err)
		assert.Equal(t, []fixture.ThinIdentity{{ThinID: 1, ThinName: "a"}, {ThinID: 2, ThinName: "b"}}, rows)
	})
}
