package compiler

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/xframe/dialect"
)

// writeStyle selects how multi-table updates and deletes are written.
type writeStyle uint8

const (
	// writeFrom is "DELETE t0 FROM [T] t0 JOIN ..." and
	// "UPDATE t0 SET ... FROM [T] t0 JOIN ...".
	writeFrom writeStyle = iota
	// writeJoin is "DELETE t0 FROM T t0 JOIN ..." and
	// "UPDATE T t0 JOIN ... SET ...".
	writeJoin
	// writeKeyed matches the target rows by key against a subquery.
	writeKeyed
)

// Flavor holds everything that differs between SQL dialects.
type Flavor struct {
	name string

	quoteOpen, quoteClose string
	national              bool
	backslash             bool
	boolTrue, boolFalse   string
	coalesce              string
	length                string
	concat                string // infix operator, or "" for CONCAT()
	stringType            string
	substring             string
	top                   bool
	unboundedLimit        string // LIMIT value for an offset without take
	exists                [2]string
	anyColumn             string
	identity              func(f *Flavor, column string) (suffix, query string)
	write                 writeStyle
	bytes                 func(b []byte) string
}

// Built-in flavors.
var (
	SQLServer = &Flavor{
		name:       dialect.SQLServer,
		quoteOpen:  "[",
		quoteClose: "]",
		national:   true,
		boolTrue:   "1",
		boolFalse:  "0",
		coalesce:   "ISNULL",
		length:     "LEN",
		concat:     "+",
		stringType: "VARCHAR",
		substring:  "SUBSTRING",
		top:        true,
		exists:     [2]string{"IF EXISTS(", ") SELECT 1 ELSE SELECT 0"},
		anyColumn:  "TOP 1 1",
		identity: func(*Flavor, string) (string, string) {
			return "SELECT CAST(SCOPE_IDENTITY() AS INT)", ""
		},
		write: writeFrom,
		bytes: func(b []byte) string { return "0x" + strings.ToUpper(hex.EncodeToString(b)) },
	}
	Postgres = &Flavor{
		name:       dialect.Postgres,
		quoteOpen:  `"`,
		quoteClose: `"`,
		boolTrue:   "TRUE",
		boolFalse:  "FALSE",
		coalesce:   "COALESCE",
		length:     "LENGTH",
		concat:     "||",
		stringType: "VARCHAR",
		substring:  "SUBSTRING",
		exists:     [2]string{"SELECT CASE WHEN EXISTS(", ") THEN 1 ELSE 0 END"},
		anyColumn:  "1",
		identity: func(f *Flavor, column string) (string, string) {
			return "RETURNING " + f.Quote(column), ""
		},
		write: writeKeyed,
		bytes: func(b []byte) string { return `'\x` + hex.EncodeToString(b) + `'::bytea` },
	}
	MySQL = &Flavor{
		name:           dialect.MySQL,
		quoteOpen:      "`",
		quoteClose:     "`",
		backslash:      true,
		boolTrue:       "1",
		boolFalse:      "0",
		coalesce:       "IFNULL",
		length:         "CHAR_LENGTH",
		stringType:     "CHAR",
		substring:      "SUBSTRING",
		unboundedLimit: "18446744073709551615",
		exists:         [2]string{"SELECT CASE WHEN EXISTS(", ") THEN 1 ELSE 0 END"},
		anyColumn:      "1",
		identity: func(*Flavor, string) (string, string) {
			return "", "SELECT LAST_INSERT_ID()"
		},
		write: writeJoin,
		bytes: func(b []byte) string { return "X'" + hex.EncodeToString(b) + "'" },
	}
	SQLite = &Flavor{
		name:           dialect.SQLite,
		quoteOpen:      `"`,
		quoteClose:     `"`,
		boolTrue:       "1",
		boolFalse:      "0",
		coalesce:       "IFNULL",
		length:         "LENGTH",
		concat:         "||",
		stringType:     "TEXT",
		substring:      "SUBSTR",
		unboundedLimit: "-1",
		exists:         [2]string{"SELECT CASE WHEN EXISTS(", ") THEN 1 ELSE 0 END"},
		anyColumn:      "1",
		identity: func(*Flavor, string) (string, string) {
			return "", "SELECT LAST_INSERT_ROWID()"
		},
		write: writeKeyed,
		bytes: func(b []byte) string { return "X'" + hex.EncodeToString(b) + "'" },
	}
)

// FlavorOf returns the built-in flavor of a dialect name. Driver names and
// common aliases are accepted.
func FlavorOf(name string) (*Flavor, error) {
	switch dialect.Normalize(name) {
	case dialect.SQLServer:
		return SQLServer, nil
	case dialect.Postgres:
		return Postgres, nil
	case dialect.MySQL:
		return MySQL, nil
	case dialect.SQLite:
		return SQLite, nil
	}
	return nil, fmt.Errorf("compiler: unknown dialect %q", name)
}

// Name returns the dialect name of the flavor.
func (f *Flavor) Name() string { return f.name }

func (f *Flavor) String() string { return f.name }

// Quote returns name as a quoted identifier.
func (f *Flavor) Quote(name string) string {
	return f.quoteOpen + name + f.quoteClose
}

// StringLiteral returns s as a string literal.
func (f *Flavor) StringLiteral(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	if f.backslash {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	if f.national {
		return "N'" + s + "'"
	}
	return "'" + s + "'"
}

// Bool returns the literal of b.
func (f *Flavor) Bool(b bool) string {
	if b {
		return f.boolTrue
	}
	return f.boolFalse
}

// Concat joins rendered string operands.
func (f *Flavor) Concat(parts ...string) string {
	if f.concat == "" {
		return "CONCAT(" + strings.Join(parts, ", ") + ")"
	}
	return "(" + strings.Join(parts, " "+f.concat+" ") + ")"
}

// DateLayout is the layout times are rendered with.
const DateLayout = "2006-01-02 15:04:05.999999999"

var valuerType = reflect.TypeFor[driver.Valuer]()

// Literal renders v inline. Nil values and nil pointers render NULL,
// slices other than []byte render a comma separated list.
func (f *Flavor) Literal(v any) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	switch x := v.(type) {
	case string:
		return f.StringLiteral(x), nil
	case bool:
		return f.Bool(x), nil
	case time.Time:
		return "'" + x.Format(DateLayout) + "'", nil
	case uuid.UUID:
		return "'" + x.String() + "'", nil
	case []byte:
		if x == nil {
			return "NULL", nil
		}
		return f.bytes(x), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return f.Literal(rv.Elem().Interface())
	}
	if rv.Type().Implements(valuerType) {
		return f.valuer(v.(driver.Valuer))
	}
	switch rv.Kind() {
	case reflect.String:
		return f.StringLiteral(rv.String()), nil
	case reflect.Bool:
		return f.Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "NULL", nil
		}
		items := make([]string, rv.Len())
		for i := range items {
			s, err := f.Literal(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		return strings.Join(items, ","), nil
	}
	return "", unsupported(rv.Type().String(), "literal")
}

func (f *Flavor) valuer(v driver.Valuer) (string, error) {
	dv, err := v.Value()
	if err != nil {
		return "", fmt.Errorf("compiler: literal value: %w", err)
	}
	return f.Literal(dv)
}

// limit returns the row limit suffix for take rows after skip.
func (f *Flavor) limit(skip, take int) string {
	if f.top {
		s := "OFFSET " + strconv.Itoa(skip) + " ROWS"
		if take > 0 {
			s += " FETCH NEXT " + strconv.Itoa(take) + " ROWS ONLY"
		}
		return s
	}
	switch {
	case take > 0 && skip > 0:
		return "LIMIT " + strconv.Itoa(take) + " OFFSET " + strconv.Itoa(skip)
	case take > 0:
		return "LIMIT " + strconv.Itoa(take)
	case f.unboundedLimit != "":
		return "LIMIT " + f.unboundedLimit + " OFFSET " + strconv.Itoa(skip)
	default:
		return "OFFSET " + strconv.Itoa(skip)
	}
}
