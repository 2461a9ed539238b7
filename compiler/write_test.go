package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/xframe/compiler"
	"github.com/syssam/xframe/dialect"
	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/internal/fixture"
	"github.com/syssam/xframe/query"
)

func TestInsertEntity(t *testing.T) {
	st := compile(t, dialect.SQLServer, query.Insert(fixture.Thin{ThinID: 1, ThinName: "a'b"}))
	assert.Equal(t, "INSERT INTO [Sys_Thin]\n([ThinID], [ThinName])\nVALUES\n(1, N'a''b')", st.Text)
	assert.Equal(t, query.KindInsert, st.Kind)
	assert.Empty(t, st.Identity)

	tests := []struct {
		dialect  string
		text     string
		identity string
	}{
		{dialect.SQLServer, "INSERT INTO [Sys_ThinIdentity]\n([ThinName])\nVALUES\n(N'x')\nSELECT CAST(SCOPE_IDENTITY() AS INT)", ""},
		{dialect.Postgres, "INSERT INTO \"Sys_ThinIdentity\"\n(\"ThinName\")\nVALUES\n('x')\nRETURNING \"ThinID\"", ""},
		{dialect.MySQL, "INSERT INTO `Sys_ThinIdentity`\n(`ThinName`)\nVALUES\n('x')", "SELECT LAST_INSERT_ID()"},
		{dialect.SQLite, "INSERT INTO \"Sys_ThinIdentity\"\n(\"ThinName\")\nVALUES\n('x')", "SELECT LAST_INSERT_ROWID()"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			st := compile(t, tt.dialect, query.Insert(&fixture.ThinIdentity{ThinName: "x"}))
			assert.Equal(t, tt.text, st.Text)
			assert.Equal(t, "ThinID", st.Identity)
			assert.Equal(t, tt.identity, st.IdentityQuery)
		})
	}
}

func TestInsertLiterals(t *testing.T) {
	name := "n"
	st := compile(t, dialect.Postgres, query.Insert(fixture.Demo{
		DemoCode:  "c",
		DemoName:  &name,
		DemoBool:  true,
		DemoBytes: []byte{0xab},
	}))
	assert.Contains(t, st.Text, "('c', 'n', TRUE, 0, '0001-01-01 00:00:00', 0, 0, '00000000-0000-0000-0000-000000000000', 0, 0, NULL, '\\xab'::bytea)")
	assert.NotContains(t, st.Text, "\"DemoID\"")
}

func TestInsertBulk(t *testing.T) {
	rows := []fixture.Thin{{ThinID: 1, ThinName: "a"}, {ThinID: 2, ThinName: "b"}, {ThinID: 3, ThinName: "c"}}
	c := newCompiler(t, dialect.SQLServer, compiler.WithBatchSize(2))
	st, err := c.Compile(query.InsertSlice(rows))
	require.NoError(t, err)
	want := `INSERT INTO [Sys_Thin]
([ThinID], [ThinName])
VALUES
(1, N'a'),
(2, N'b');
INSERT INTO [Sys_Thin]
([ThinID], [ThinName])
VALUES
(3, N'c')`
	assert.Equal(t, want, st.Text)
	assert.Equal(t, 2, st.Batches)

	st = compile(t, dialect.SQLServer, query.InsertSlice(rows))
	assert.Equal(t, 1, st.Batches)
	assert.Equal(t, 1, strings.Count(st.Text, "INSERT INTO"))

	_, err = c.Compile(query.InsertSlice([]fixture.Thin{}))
	assert.True(t, compiler.IsNotSupported(err))
}

func TestInsertSelect(t *testing.T) {
	ti := expr.P[fixture.ThinIdentity]("ti")
	src := query.Select[fixture.Thin](query.From[fixture.ThinIdentity]().Where(expr.Gt(expr.M(ti, "ThinID"), expr.V(10))),
		expr.New[fixture.Thin](
			expr.Bind("ThinID", expr.M(ti, "ThinID")),
			expr.Bind("ThinName", expr.M(ti, "ThinName")),
		))
	st := compile(t, dialect.SQLServer, query.InsertSelect(src))
	want := `INSERT INTO [Sys_Thin]
([ThinID], [ThinName])
SELECT
t0.[ThinID] AS [ThinID],
t0.[ThinName] AS [ThinName]
FROM [Sys_ThinIdentity] t0
WHERE t0.[ThinID] > 10`
	assert.Equal(t, want, st.Text)

	th := expr.P[fixture.ThinIdentity]("th")
	copyAll := query.From[fixture.ThinIdentity]().Where(expr.Eq(expr.M(th, "ThinName"), expr.V("a")))
	st = compile(t, dialect.Postgres, query.InsertSelect(copyAll))
	assert.Equal(t, "INSERT INTO \"Sys_ThinIdentity\"\n(\"ThinName\")\nSELECT\nt0.\"ThinName\" AS \"ThinName\"\nFROM \"Sys_ThinIdentity\" t0\nWHERE t0.\"ThinName\" = 'a'", st.Text)
}

func TestUpdateEntity(t *testing.T) {
	e := fixture.Thin{ThinID: 1, ThinName: "x"}
	tests := []struct {
		dialect string
		text    string
	}{
		{dialect.SQLServer, "UPDATE t0 SET\nt0.[ThinName] = N'x'\nFROM [Sys_Thin] t0\nWHERE t0.[ThinID] = 1"},
		{dialect.MySQL, "UPDATE `Sys_Thin` t0 SET\nt0.`ThinName` = 'x'\nWHERE t0.`ThinID` = 1"},
		{dialect.Postgres, "UPDATE \"Sys_Thin\" AS t0 SET\n\"ThinName\" = 'x'\nWHERE t0.\"ThinID\" = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			st := compile(t, tt.dialect, query.UpdateEntity(e))
			assert.Equal(t, tt.text, st.Text)
			assert.Equal(t, query.KindUpdate, st.Kind)
		})
	}

	acc := compile(t, dialect.SQLServer, query.UpdateEntity(fixture.ClientAccount{ClientID: 1, AccountID: "A", AccountCode: "c", Qty: 2}))
	assert.True(t, strings.HasSuffix(acc.Text, "WHERE t0.[ClientID] = 1 AND t0.[AccountID] = N'A'"))
	assert.Contains(t, acc.Text, "UPDATE t0 SET\nt0.[AccountCode] = N'c',\nt0.[Qty] = 2\n")

	_, err := newCompiler(t, dialect.SQLServer).Compile(query.UpdateEntity(fixture.Keyless{Name: "a"}))
	var kerr *compiler.MissingKeyError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, "Keyless", kerr.Entity)
	assert.True(t, compiler.IsMissingKey(err))

	_, err = newCompiler(t, dialect.SQLServer).Compile(query.UpdateEntity(onlyKey{ID: 1}))
	assert.ErrorIs(t, err, compiler.ErrEmptyUpdate)
}

func TestDeleteEntity(t *testing.T) {
	st := compile(t, dialect.SQLServer, query.DeleteEntity(&fixture.Thin{ThinID: 4}))
	assert.Equal(t, "DELETE t0 FROM [Sys_Thin] t0\nWHERE t0.[ThinID] = 4", st.Text)
	st = compile(t, dialect.SQLite, query.DeleteEntity(fixture.Thin{ThinID: 4}))
	assert.Equal(t, "DELETE FROM \"Sys_Thin\" AS t0\nWHERE t0.\"ThinID\" = 4", st.Text)

	_, err := newCompiler(t, dialect.MySQL).Compile(query.DeleteEntity(fixture.Keyless{}))
	assert.ErrorIs(t, err, compiler.ErrMissingKey)
}

func TestUpdateQuery(t *testing.T) {
	c := expr.P[fixture.Client]("c")
	set := expr.New[fixture.Client](expr.Bind("Qty", expr.Add(expr.M(c, "Qty"), expr.V(1))))
	simple := query.From[fixture.Client]().Where(expr.Eq(expr.M(c, "ClientCode"), expr.V("A"))).Update(set)

	st := compile(t, dialect.SQLServer, simple)
	assert.Equal(t, "UPDATE t0 SET\nt0.[Qty] = t0.[Qty] + 1\nFROM [Bas_Client] t0\nWHERE t0.[ClientCode] = N'A'", st.Text)
	st = compile(t, dialect.Postgres, simple)
	assert.Equal(t, "UPDATE \"Bas_Client\" AS t0 SET\n\"Qty\" = t0.\"Qty\" + 1\nWHERE t0.\"ClientCode\" = 'A'", st.Text)

	nav := query.From[fixture.Client]().
		Where(expr.Eq(expr.M(c, "CloudServer", "CloudServerCode"), expr.V("S1"))).
		Update(set)
	st = compile(t, dialect.SQLServer, nav)
	assert.Equal(t, `UPDATE t0 SET
t0.[Qty] = t0.[Qty] + 1
FROM [Bas_Client] t0
LEFT JOIN [Sys_CloudServer] t1 ON t1.[CloudServerID] = t0.[CloudServerID]
WHERE t1.[CloudServerCode] = N'S1'`, st.Text)

	st = compile(t, dialect.MySQL, nav)
	assert.Equal(t, "UPDATE `Bas_Client` t0\n"+
		"LEFT JOIN `Sys_CloudServer` t1 ON t1.`CloudServerID` = t0.`CloudServerID`\n"+
		"SET\n"+
		"t0.`Qty` = t0.`Qty` + 1\n"+
		"WHERE t1.`CloudServerCode` = 'S1'", st.Text)

	st = compile(t, dialect.Postgres, nav)
	assert.Equal(t, `UPDATE "Bas_Client" AS t0 SET
"Qty" = t0."Qty" + 1
WHERE t0."ClientID" IN (
    SELECT t0."ClientID"
    FROM "Bas_Client" t0
    LEFT JOIN "Sys_CloudServer" t1 ON t1."CloudServerID" = t0."CloudServerID"
    WHERE t1."CloudServerCode" = 'S1'
)`, st.Text)
}

func TestUpdateQueryCompositeKey(t *testing.T) {
	a := expr.P[fixture.ClientAccount]("a")
	q := query.From[fixture.ClientAccount]().
		Where(expr.M(a, "Client", "Active")).
		Update(expr.New[fixture.ClientAccount](expr.Bind("Qty", expr.V(0))))
	st := compile(t, dialect.SQLite, q)
	assert.Contains(t, st.Text, "WHERE (t0.\"ClientID\", t0.\"AccountID\") IN (\n    SELECT t0.\"ClientID\", t0.\"AccountID\"\n")
	assert.Contains(t, st.Text, "\n    WHERE t1.\"Active\" = 1\n)")
}

func TestUpdateQueryErrors(t *testing.T) {
	c := expr.P[fixture.Client]("c")
	base := query.From[fixture.Client]()
	comp := newCompiler(t, dialect.Postgres)

	_, err := comp.Compile(base.Update(expr.New[fixture.Client]()))
	assert.ErrorIs(t, err, compiler.ErrEmptyUpdate)

	_, err = comp.Compile(base.Update(expr.V(1)))
	assert.True(t, compiler.IsNotSupported(err))

	_, err = comp.Compile(base.Update(expr.New[fixture.Client](expr.Bind("Remark", expr.M(c, "CloudServer", "CloudServerName")))))
	assert.True(t, compiler.IsNotSupported(err), "assignments cannot cross navigations")

	_, err = comp.Compile(base.Update(expr.New[fixture.Client](expr.Bind("CloudServer", expr.Null()))))
	assert.ErrorIs(t, err, compiler.ErrUnknownMember)

	_, err = comp.Compile(base.Take(5).Update(expr.New[fixture.Client](expr.Bind("Qty", expr.V(0)))))
	assert.True(t, compiler.IsNotSupported(err))

	k := expr.P[fixture.Keyless]("k")
	_, err = comp.Compile(query.From[fixture.Keyless]().
		Where(expr.Eq(expr.M(k, "Name"), expr.V("a"))).
		Update(expr.New[fixture.Keyless](expr.Bind("Value", expr.V(1)))))
	assert.NoError(t, err, "a keyless table is updated in place when no join is needed")
}

func TestDeleteQuery(t *testing.T) {
	c := expr.P[fixture.Client]("c")
	st := compile(t, dialect.SQLServer, query.From[fixture.Client]().Where(expr.Eq(expr.M(c, "Qty"), expr.V(0))).Delete())
	assert.Equal(t, "DELETE t0 FROM [Bas_Client] t0\nWHERE t0.[Qty] = 0", st.Text)
	assert.Equal(t, query.KindDelete, st.Kind)

	nav := query.From[fixture.Client]().Where(expr.Eq(expr.M(c, "CloudServer", "CloudServerCode"), expr.V("S1"))).Delete()
	st = compile(t, dialect.MySQL, nav)
	assert.Equal(t, "DELETE t0 FROM `Bas_Client` t0\nLEFT JOIN `Sys_CloudServer` t1 ON t1.`CloudServerID` = t0.`CloudServerID`\nWHERE t1.`CloudServerCode` = 'S1'", st.Text)

	st = compile(t, dialect.SQLite, nav)
	assert.Equal(t, `DELETE FROM "Bas_Client" AS t0
WHERE t0."ClientID" IN (
    SELECT t0."ClientID"
    FROM "Bas_Client" t0
    LEFT JOIN "Sys_CloudServer" t1 ON t1."CloudServerID" = t0."CloudServerID"
    WHERE t1."CloudServerCode" = 'S1'
)`, st.Text)

	st = compile(t, dialect.Postgres, query.From[fixture.Client]().Delete())
	assert.Equal(t, `DELETE FROM "Bas_Client" AS t0`, st.Text)
}
