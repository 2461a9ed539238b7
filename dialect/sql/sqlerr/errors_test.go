package sqlerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

type mssqlError struct {
	number int32
	msg    string
}

func (e mssqlError) Error() string         { return e.msg }
func (e mssqlError) SQLErrorNumber() int32 { return e.number }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, None},
		{"plain", errors.New("connection reset"), None},
		{"pq_unique", &pq.Error{Code: "23505"}, Unique},
		{"pq_fk", &pq.Error{Code: "23503"}, ForeignKey},
		{"pq_check", &pq.Error{Code: "23514"}, Check},
		{"pq_not_null", &pq.Error{Code: "23502"}, NotNull},
		{"mysql_duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, Unique},
		{"mysql_fk_parent", &mysql.MySQLError{Number: 1451}, ForeignKey},
		{"mysql_fk_child", &mysql.MySQLError{Number: 1452}, ForeignKey},
		{"mysql_check", &mysql.MySQLError{Number: 3819}, Check},
		{"mssql_primary_key", mssqlError{2627, "Violation of PRIMARY KEY constraint 'PK_Client'"}, Unique},
		{"mssql_unique_index", mssqlError{2601, "Cannot insert duplicate key row"}, Unique},
		{"mssql_fk", mssqlError{547, "The DELETE statement conflicted with the REFERENCE constraint"}, ForeignKey},
		{"mssql_check", mssqlError{547, "The INSERT statement conflicted with the CHECK constraint"}, Check},
		{"sqlite_message", errors.New("UNIQUE constraint failed: Client.ClientId"), Unique},
		{"sqlite_fk_message", errors.New("FOREIGN KEY constraint failed"), ForeignKey},
		{"not_null_message", errors.New("NOT NULL constraint failed: Client.ClientCode"), NotNull},
		{"wrapped", fmt.Errorf("submit: %w", &pq.Error{Code: "23505"}), Unique},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	unique := &pq.Error{Code: "23505"}
	assert.True(t, IsConstraintError(unique))
	assert.True(t, IsUniqueConstraintError(unique))
	assert.False(t, IsForeignKeyConstraintError(unique))
	assert.False(t, IsCheckConstraintError(unique))

	fk := &mysql.MySQLError{Number: 1452}
	assert.True(t, IsForeignKeyConstraintError(fk))
	assert.False(t, IsConstraintError(errors.New("timeout")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "unique", Unique.String())
	assert.Equal(t, "foreign key", ForeignKey.String())
	assert.Equal(t, "check", Check.String())
	assert.Equal(t, "not null", NotNull.String())
	assert.Equal(t, "none", None.String())
}
