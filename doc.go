// Package xframe compiles typed query chains into SQL for SQL Server,
// PostgreSQL, MySQL and SQLite, runs them, and rebuilds the result rows as
// Go values.
//
// A Session binds a compiler to a driver. Reads run immediately:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//		return err
//	}
//	s, err := xframe.NewSession(drv)
//	if err != nil {
//		return err
//	}
//	o := expr.P[SaleOrder]("o")
//	orders, err := xframe.All(ctx, s, query.From[SaleOrder]().
//		Where(expr.Eq(expr.M(o, "Client", "ClientName"), expr.V("TAN"))).
//		OrderByDescending(expr.M(o, "OrderID")).
//		Take(10))
//
// Writes are queued and sent together by SubmitChanges, inside one
// transaction, in batches of statements joined by ";\n". MySQL connections
// need multiStatements=true in their DSN for batches of more than one
// statement.
//
// Literals are written into the statement text. Statements therefore carry
// no parameters, and every distinct literal yields a distinct statement.
package xframe
