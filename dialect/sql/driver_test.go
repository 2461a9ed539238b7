package sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/syssam/xframe/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		dialect string
	}{
		{"SQLServer", "mssql", dialect.SQLServer},
		{"Postgres", "postgresql", dialect.Postgres},
		{"MySQL", dialect.MySQL, dialect.MySQL},
		{"SQLite", "sqlite3", dialect.SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.input, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, "postgres", DriverName("postgresql"))
	assert.Equal(t, "mysql", DriverName("mariadb"))
	assert.Equal(t, "sqlite", DriverName("sqlite3"))
	assert.Equal(t, "sqlserver", DriverName("mssql"))
	assert.Equal(t, "oracle", DriverName("oracle"))
}

// TestDriverQuery tests query operations.
func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.SQLServer, db)

	t.Run("inline_literals", func(t *testing.T) {
		mock.ExpectQuery(`SELECT t0\.\[ClientId\] AS \[ClientId\] FROM \[Client\] t0`).
			WillReturnRows(sqlmock.NewRows([]string{"ClientId"}).
				AddRow(1).
				AddRow(2))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT t0.[ClientId] AS [ClientId] FROM [Client] t0", nil, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_with_args", func(t *testing.T) {
		mock.ExpectQuery("SELECT name FROM users WHERE id = ?").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alice"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT name FROM users WHERE id = ?", []any{1}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		expectedErr := errors.New("database error")
		mock.ExpectQuery("SELECT").WillReturnError(expectedErr)

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT", nil, rows)
		require.ErrorIs(t, err, expectedErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_target", func(t *testing.T) {
		var n int
		err := drv.Query(context.Background(), "SELECT 1", nil, &n)
		require.Error(t, err)
	})

	t.Run("invalid_args", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", "nope", &Rows{})
		require.Error(t, err)
	})
}

// TestDriverExec tests execute operations.
func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.SQLServer, db)

	t.Run("simple_exec", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO \[Client\]`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := drv.Exec(context.Background(), "INSERT INTO [Client] ([ClientCode]) VALUES (N'c1')", nil, nil)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rows_affected", func(t *testing.T) {
		mock.ExpectExec(`DELETE t0 FROM \[Client\] t0`).
			WillReturnResult(sqlmock.NewResult(0, 3))

		var n int64
		err := drv.Exec(context.Background(), "DELETE t0 FROM [Client] t0 WHERE t0.[Qty] > 1", nil, &n)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("result", func(t *testing.T) {
		mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 2))

		var res sql.Result
		err := drv.Exec(context.Background(), "UPDATE t0 SET t0.[Qty] = 1 FROM [Client] t0", nil, &res)
		require.NoError(t, err)
		affected, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(2), affected)
	})

	t.Run("exec_error", func(t *testing.T) {
		expectedErr := errors.New("constraint violation")
		mock.ExpectExec("DELETE").WillReturnError(expectedErr)

		err := drv.Exec(context.Background(), "DELETE FROM users", nil, nil)
		require.ErrorIs(t, err, expectedErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_target", func(t *testing.T) {
		mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 0))
		var s string
		err := drv.Exec(context.Background(), "DELETE FROM users", nil, &s)
		require.Error(t, err)
	})
}

// TestDriverTransaction tests transaction operations.
func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("successful_commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)

		err = tx.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test')", nil, nil)
		require.NoError(t, err)

		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)

		err = tx.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test')", nil, nil)
		require.Error(t, err)

		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin_error", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("busy"))

		_, err := drv.Tx(context.Background())
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNopTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.SQLite, db)
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))

	tx := dialect.NopTx(drv)
	require.NoError(t, tx.Exec(context.Background(), "DELETE FROM t", nil, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanInt64(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.SQLServer, db)

	t.Run("value", func(t *testing.T) {
		mock.ExpectQuery("SELECT CAST").
			WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(42))

		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT CAST(SCOPE_IDENTITY() AS INT)", nil, rows))
		n, err := ScanInt64(rows)
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	t.Run("null", func(t *testing.T) {
		mock.ExpectQuery("SELECT MAX").
			WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(nil))

		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT MAX(t0.[Qty]) FROM [Client] t0", nil, rows))
		n, err := ScanInt64(rows)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("no_rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{""}))

		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT COUNT(1) FROM [Client] t0", nil, rows))
		_, err := ScanInt64(rows)
		require.ErrorIs(t, err, sql.ErrNoRows)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestContextCancellation tests that context cancellation is respected.
func TestContextCancellation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock.ExpectQuery("SELECT").WillReturnError(context.Canceled)
	rows := &Rows{}
	err = drv.Query(ctx, "SELECT 1", nil, rows)
	assert.Error(t, err)
}

// BenchmarkDriver benchmarks driver operations.
func BenchmarkDriver(b *testing.B) {
	db, mock, err := sqlmock.New()
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()

	drv := OpenDB(dialect.SQLServer, db)

	b.Run("Query_Simple", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
			rows := &Rows{}
			_ = drv.Query(context.Background(), "SELECT 1", nil, rows)
			rows.Close()
		}
	})

	b.Run("Exec_Simple", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
			_ = drv.Exec(context.Background(), "INSERT INTO t VALUES (1)", nil, nil)
		}
	})
}
