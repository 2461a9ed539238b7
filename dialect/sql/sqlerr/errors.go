// Package sqlerr classifies driver errors returned while executing
// compiled statements.
package sqlerr

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// Kind is the class of a constraint violation.
type Kind uint8

// Constraint violation kinds.
const (
	None Kind = iota
	Unique
	ForeignKey
	Check
	NotNull
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Unique:
		return "unique"
	case ForeignKey:
		return "foreign key"
	case Check:
		return "check"
	case NotNull:
		return "not null"
	default:
		return "none"
	}
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// SQLite extended result codes for constraint violations.
const (
	sqliteConstraintCheck      = 275
	sqliteConstraintForeignKey = 787
	sqliteConstraintNotNull    = 1299
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// SQL Server error numbers for constraint violations.
const (
	mssqlInsertNull      = 515
	mssqlConstraint      = 547 // FOREIGN KEY and CHECK share this number
	mssqlUniqueIndex     = 2601
	mssqlUniqueViolation = 2627
)

// errorNumberer is implemented by SQL Server drivers (mssql.Error).
type errorNumberer interface {
	SQLErrorNumber() int32
}

// Classify reports the kind of constraint violation behind err, or None.
func Classify(err error) Kind {
	if err == nil {
		return None
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return Unique
		case pgForeignKeyViolation:
			return ForeignKey
		case pgCheckViolation:
			return Check
		case pgNotNullViolation:
			return NotNull
		}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return Unique
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKey
		case mysqlCheckConstraintViolate:
			return Check
		case mysqlBadNull:
			return NotNull
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return Unique
		case sqliteConstraintForeignKey:
			return ForeignKey
		case sqliteConstraintCheck:
			return Check
		case sqliteConstraintNotNull:
			return NotNull
		}
	}
	if e, ok := asError[errorNumberer](err); ok {
		switch e.SQLErrorNumber() {
		case mssqlUniqueViolation, mssqlUniqueIndex:
			return Unique
		case mssqlConstraint:
			if strings.Contains(err.Error(), "CHECK constraint") {
				return Check
			}
			return ForeignKey
		case mssqlInsertNull:
			return NotNull
		}
	}
	return classifyMessage(err.Error())
}

// classifyMessage is the fallback for drivers that expose no typed error.
func classifyMessage(msg string) Kind {
	switch {
	case containsAny(msg,
		"Error 1062",                 // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
		"Violation of UNIQUE KEY",    // SQL Server
		"Violation of PRIMARY KEY",   // SQL Server
		"Cannot insert duplicate key",
	):
		return Unique
	case containsAny(msg,
		"Error 1451",
		"Error 1452",
		"violates foreign key constraint",
		"FOREIGN KEY constraint failed",
		"conflicted with the FOREIGN KEY constraint",
		"conflicted with the REFERENCE constraint",
	):
		return ForeignKey
	case containsAny(msg,
		"Error 3819",
		"violates check constraint",
		"CHECK constraint failed",
		"conflicted with the CHECK constraint",
	):
		return Check
	case containsAny(msg,
		"Error 1048",
		"violates not-null constraint",
		"NOT NULL constraint failed",
		"Cannot insert the value NULL",
	):
		return NotNull
	}
	return None
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return Classify(err) != None
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return Classify(err) == Unique
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return Classify(err) == ForeignKey
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	return Classify(err) == Check
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
