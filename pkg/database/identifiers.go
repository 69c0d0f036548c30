package database

import "strings"

// Dialect names the SQL flavour a statement is rendered for.
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectMySQL     Dialect = "mysql"
	DialectSQLite    Dialect = "sqlite"
	DialectSQLServer Dialect = "sqlserver"
	DialectFirebird  Dialect = "firebird"
)

// Identifiers renders table names, column names and parameter markers for a
// given quoting configuration. The zero value renders bare names.
//
// EscapeChar is either a single character used on both sides ("\"" or "`")
// or an open/close pair such as "[]".
type Identifiers struct {
	EscapeChar    string
	Prefix        string
	Schema        string
	GuidConverter string
	Dialect       Dialect
}

// TableName returns the qualified, quoted and prefixed name of a table.
func (i Identifiers) TableName(name string) string {
	table := i.quote(i.Prefix + name)
	if i.Schema == "" {
		return table
	}
	return i.quote(i.Schema) + "." + table
}

// ColumnName returns the quoted name of a column.
func (i Identifiers) ColumnName(name string) string {
	return i.quote(name)
}

// Column returns an alias-qualified quoted column, e.g. u."Id".
func (i Identifiers) Column(alias, name string) string {
	return alias + "." + i.quote(name)
}

// Columns quotes every name, qualifies it with alias when set, and joins
// the result with commas.
func (i Identifiers) Columns(alias string, names ...string) string {
	cols := make([]string, len(names))
	for n, name := range names {
		if alias == "" {
			cols[n] = i.quote(name)
			continue
		}
		cols[n] = i.Column(alias, name)
	}
	return strings.Join(cols, ", ")
}

// Placeholder returns the named parameter marker for name. GUID values are
// wrapped in the configured converter, e.g. CHAR_TO_UUID(:Id).
func (i Identifiers) Placeholder(name string) string {
	if i.GuidConverter == "" {
		return ":" + name
	}
	return i.GuidConverter + "(:" + name + ")"
}

// SelectOne renders a query returning at most one row. rest starts with the
// FROM clause.
func (i Identifiers) SelectOne(columns, rest string) string {
	switch i.Dialect {
	case DialectFirebird:
		return "select first 1 " + columns + " " + rest
	case DialectSQLServer:
		return "select top 1 " + columns + " " + rest
	default:
		return "select " + columns + " " + rest + " limit 1"
	}
}

func (i Identifiers) quote(name string) string {
	if i.EscapeChar == "" {
		return name
	}
	open := i.EscapeChar[:1]
	closing := i.EscapeChar[len(i.EscapeChar)-1:]
	return open + name + closing
}

// defaultEscape returns the identifier quote most engines of the dialect accept.
func defaultEscape(d Dialect) string {
	switch d {
	case DialectMySQL:
		return "`"
	case DialectSQLServer:
		return "[]"
	default:
		return `"`
	}
}
