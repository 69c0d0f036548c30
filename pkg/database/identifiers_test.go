package database_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
)

func TestIdentifiers(t *testing.T) {
	tests := []struct {
		name        string
		ids         database.Identifiers
		table       string
		column      string
		placeholder string
	}{
		{
			name:        "bare",
			ids:         database.Identifiers{},
			table:       "Users",
			column:      "UserName",
			placeholder: ":Id",
		},
		{
			name:        "double quotes with prefix and schema",
			ids:         database.Identifiers{EscapeChar: `"`, Prefix: "Asp", Schema: "dbo"},
			table:       `"dbo"."AspUsers"`,
			column:      `"UserName"`,
			placeholder: ":Id",
		},
		{
			name:        "backtick",
			ids:         database.Identifiers{EscapeChar: "`"},
			table:       "`Users`",
			column:      "`UserName`",
			placeholder: ":Id",
		},
		{
			name:        "bracket pair",
			ids:         database.Identifiers{EscapeChar: "[]", Schema: "identity"},
			table:       "[identity].[Users]",
			column:      "[UserName]",
			placeholder: ":Id",
		},
		{
			name:        "guid converter",
			ids:         database.Identifiers{EscapeChar: `"`, GuidConverter: "CHAR_TO_UUID"},
			table:       `"Users"`,
			column:      `"UserName"`,
			placeholder: "CHAR_TO_UUID(:Id)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			c.Assert(tt.ids.TableName("Users"), qt.Equals, tt.table)
			c.Assert(tt.ids.ColumnName("UserName"), qt.Equals, tt.column)
			c.Assert(tt.ids.Placeholder("Id"), qt.Equals, tt.placeholder)
		})
	}
}

func TestIdentifiersColumns(t *testing.T) {
	c := qt.New(t)
	ids := database.Identifiers{EscapeChar: `"`}

	c.Assert(ids.Columns("", "Id", "Name"), qt.Equals, `"Id", "Name"`)
	c.Assert(ids.Columns("r", "Id", "Name"), qt.Equals, `r."Id", r."Name"`)
}

func TestIdentifiersSelectOne(t *testing.T) {
	tests := []struct {
		dialect  database.Dialect
		expected string
	}{
		{dialect: database.DialectFirebird, expected: "select first 1 a from t where b = :b"},
		{dialect: database.DialectSQLServer, expected: "select top 1 a from t where b = :b"},
		{dialect: database.DialectPostgres, expected: "select a from t where b = :b limit 1"},
		{dialect: database.DialectSQLite, expected: "select a from t where b = :b limit 1"},
		{dialect: "", expected: "select a from t where b = :b limit 1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			c := qt.New(t)
			ids := database.Identifiers{Dialect: tt.dialect}
			c.Assert(ids.SelectOne("a", "from t where b = :b"), qt.Equals, tt.expected)
		})
	}
}
