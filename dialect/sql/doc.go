// Package sql runs compiled statements through database/sql.
//
// A Driver wraps a *sql.DB and implements dialect.Driver. Statements are
// passed as complete text with their literals inlined, so args is always
// nil:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://localhost/app")
//	if err != nil {
//		return err
//	}
//	var affected int64
//	err = drv.Exec(ctx, text, nil, &affected)
//
//	rows := &sql.Rows{}
//	err = drv.Query(ctx, text, nil, rows)
//
// # Statistics and Logging
//
// StatsDriver counts statements by leading keyword, measures their
// duration and reports those slower than a threshold that can be changed
// while statements run:
//
//	stats, err := sql.OpenWithStats(dialect.SQLite, "file:app.db",
//		sql.WithSlowThreshold(50*time.Millisecond),
//		sql.WithSlowQueryLog(logger),
//	)
//	...
//	fmt.Println(stats.QueryStats().Stats())
//
// DebugDriver logs every statement and transaction boundary at debug level
// through a *slog.Logger.
//
// # Driver Names
//
// DriverName maps dialect names to the database/sql driver names of
// github.com/lib/pq, github.com/go-sql-driver/mysql and modernc.org/sqlite.
// No SQL Server driver is bundled; register one as "sqlserver" before
// calling Open with that dialect.
//
// Constraint violations reported by any of these drivers are classified
// by package sqlerr.
package sql
