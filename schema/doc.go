// Package schema reflects entity structs into the metadata the query
// compiler and the materializer depend on: table name, mapped columns,
// key and identity columns, and foreign-key navigations.
//
// Entities are plain structs annotated with the `xf` tag:
//
//	type Order struct {
//	    OrderID  int       `xf:",key,identity"`
//	    ClientID int
//	    Code     string    `xf:"OrderCode"`
//	    Note     string    `xf:"-"`
//	    Client   *Client   `xf:",fk=ClientID:ClientID"`
//	}
//
// The first tag element renames the column. Options:
//
//   - key: the member is part of the primary key
//   - identity: the column is generated by the database on insert
//   - nomap (or a bare "-"): the member is not mapped to a column
//   - fk=Inner[+Inner...]:Outer[+Outer...]: the member is a to-one
//     navigation joined on the listed member pairs
//
// A struct implementing TableName() string controls its table name;
// otherwise the type name is used, pluralized when the registry is built
// with WithPluralTables.
//
// Metadata is computed once per type and cached by a Registry. Lookups are
// safe for concurrent use; concurrent misses on the same type are
// collapsed into a single reflection pass.
package schema
