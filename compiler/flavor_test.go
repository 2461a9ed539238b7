package compiler_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/xframe/compiler"
	"github.com/syssam/xframe/internal/fixture"
)

func TestFlavorOf(t *testing.T) {
	for name, want := range map[string]*compiler.Flavor{
		"mssql":      compiler.SQLServer,
		"SQLServer":  compiler.SQLServer,
		"pgx":        compiler.Postgres,
		"postgresql": compiler.Postgres,
		"mariadb":    compiler.MySQL,
		"sqlite3":    compiler.SQLite,
	} {
		f, err := compiler.FlavorOf(name)
		require.NoError(t, err, name)
		assert.Same(t, want, f, name)
	}
	_, err := compiler.FlavorOf("oracle")
	assert.EqualError(t, err, `compiler: unknown dialect "oracle"`)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "[Bas_Client]", compiler.SQLServer.Quote("Bas_Client"))
	assert.Equal(t, `"Bas_Client"`, compiler.Postgres.Quote("Bas_Client"))
	assert.Equal(t, "`Bas_Client`", compiler.MySQL.Quote("Bas_Client"))
	assert.Equal(t, `"Bas_Client"`, compiler.SQLite.Quote("Bas_Client"))
}

func TestLiteral(t *testing.T) {
	id := uuid.MustParse("9f4c1f7e-5d2b-4a8e-9c57-6a1d0b3e2f10")
	n := 7
	tests := []struct {
		name   string
		flavor *compiler.Flavor
		value  any
		want   string
	}{
		{"nil", compiler.SQLServer, nil, "NULL"},
		{"nil pointer", compiler.Postgres, (*int)(nil), "NULL"},
		{"pointer", compiler.Postgres, &n, "7"},
		{"national string", compiler.SQLServer, "a'b", "N'a''b'"},
		{"string", compiler.Postgres, "a'b", "'a''b'"},
		{"backslash", compiler.MySQL, `a\b'`, `'a\\b'''`},
		{"backslash kept", compiler.SQLite, `a\b`, `'a\b'`},
		{"bool numeric", compiler.SQLServer, true, "1"},
		{"bool keyword", compiler.Postgres, false, "FALSE"},
		{"int", compiler.SQLServer, int64(-42), "-42"},
		{"uint", compiler.SQLServer, uint8(255), "255"},
		{"float", compiler.MySQL, 1.5, "1.5"},
		{"float32", compiler.MySQL, float32(0.25), "0.25"},
		{"enum", compiler.SQLite, fixture.StateOK, "1"},
		{"time", compiler.SQLServer, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "'2024-01-02 03:04:05'"},
		{"time fraction", compiler.Postgres, time.Date(2024, 1, 2, 3, 4, 5, 500000000, time.UTC), "'2024-01-02 03:04:05.5'"},
		{"uuid", compiler.SQLServer, id, "'9f4c1f7e-5d2b-4a8e-9c57-6a1d0b3e2f10'"},
		{"bytes hex", compiler.SQLServer, []byte{0xab, 0x01}, "0xAB01"},
		{"bytes bytea", compiler.Postgres, []byte{0xab}, `'\xab'::bytea`},
		{"bytes blob", compiler.MySQL, []byte{0xab}, "X'ab'"},
		{"nil bytes", compiler.SQLite, []byte(nil), "NULL"},
		{"list", compiler.SQLServer, []int{1, 2, 3}, "1,2,3"},
		{"string list", compiler.Postgres, []string{"a", "b"}, "'a','b'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flavor.Literal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := compiler.SQLServer.Literal(struct{ A int }{1})
	assert.True(t, compiler.IsNotSupported(err))
}

func TestConcatAndBool(t *testing.T) {
	assert.Equal(t, "(a + b)", compiler.SQLServer.Concat("a", "b"))
	assert.Equal(t, "(a || b || c)", compiler.Postgres.Concat("a", "b", "c"))
	assert.Equal(t, "CONCAT(a, b)", compiler.MySQL.Concat("a", "b"))
	assert.Equal(t, "TRUE", compiler.Postgres.Bool(true))
	assert.Equal(t, "0", compiler.SQLite.Bool(false))
	assert.Equal(t, "postgres", compiler.Postgres.Name())
	assert.Equal(t, "sqlserver", compiler.SQLServer.String())
}
