// Package dialect provides the database dialect abstraction for xframe.
//
// This package names the supported dialects and defines the narrow
// interfaces through which compiled statements are executed. The query
// compiler itself never performs I/O; it produces statement text that is
// handed to a Driver.
//
// # Supported Dialects
//
//   - SQLServer: Microsoft SQL Server (reference dialect)
//   - Postgres: PostgreSQL
//   - MySQL: MySQL/MariaDB
//   - SQLite: SQLite
//
// # Dialect Constants
//
//	dialect.SQLServer = "sqlserver"
//	dialect.Postgres  = "postgres"
//	dialect.MySQL     = "mysql"
//	dialect.SQLite    = "sqlite"
//
// Normalize maps driver names and common aliases ("mssql", "postgresql",
// "sqlite3", ...) onto these constants.
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
//	type Tx interface {
//	    ExecQuerier
//	    Commit() error
//	    Rollback() error
//	}
//
// # Usage
//
//	import (
//	    "github.com/syssam/xframe/dialect"
//	    "github.com/syssam/xframe/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver wrapper, statistics and debug drivers
//   - dialect/sql/sqlerr: classification of constraint violation errors
package dialect
