// Package dbms provides DBMS-specific SQL syntax and query knowledge base.
package dbms

import "regexp"

// DBMS provides database-specific SQL syntax and capabilities.
type DBMS interface {
	Name() string

	// String operations
	Concatenate(parts ...string) string
	Substring(expr string, start, length int) string
	Length(expr string) string
	ASCII(expr string) string
	Char(code int) string

	// Version and identity
	VersionQuery() string
	CurrentUserQuery() string
	CurrentDBQuery() string
	HostnameQuery() string

	// Enumeration queries
	ListDatabasesQuery() string
	ListTablesQuery(database string) string
	ListColumnsQuery(database, table string) string
	CountRowsQuery(database, table string) string
	DumpQuery(database, table string, columns []string, offset, limit int) string

	// Error-based payloads
	ErrorPayloads() []PayloadTemplate

	// ChunkLength returns the maximum number of characters this DBMS can
	// embed in a single error message before truncating, or 0 if the DBMS
	// does not truncate error-based output (single-shot retrieval).
	ChunkLength() int

	// NullAndCastField wraps a projected column so that a NULL value
	// degrades to a single space instead of breaking string concatenation
	// in the error payload.
	NullAndCastField(field string) string

	// Unescape rewrites quoted string literals inside expr into a
	// quote-free representation (typically a hex literal) so the
	// expression survives naive quote-stripping filters on the way in.
	Unescape(expr string) string

	// CountQuery returns a COUNT(...) expression over the given column list.
	CountQuery(expr string) string

	// DummyTable returns the DBMS's pseudo-table for scalar SELECTs without
	// a real FROM clause (e.g. "DUAL" on Oracle), or "" if none exists.
	DummyTable() string

	// LimitClause describes how to recognise and rewrite this DBMS's
	// row-limiting syntax. A zero-value Regexp means the DBMS has no
	// LIMIT/OFFSET syntax the row planner can rewrite.
	LimitClause() LimitDialect

	// RowLimitQuery returns the clause to append to a LIMIT-stripped
	// expression so it selects exactly one row at 0-based offset. Returns
	// "" for dialects with no such rewindable clause (e.g. Oracle, whose
	// row expansion relies on the expression's own ROWNUM).
	RowLimitQuery(offset int) string

	// Time-based
	SleepFunction(seconds int) string
	HeavyQuery() string

	// Boolean constructs
	IfThenElse(condition, trueExpr, falseExpr string) string

	// Quoting and comments
	QuoteString(s string) string
	CommentSequence() string
	InlineComment() string

	// File operations
	FileReadQuery(path string) string

	// Capabilities
	Capabilities() Capabilities
}

// LimitDialect describes a DBMS's row-limiting clause for the row planner
// (spec §4.5). Regexp, when non-nil, must define named capture groups
// "start" and "stop". SupportsTop enables recognising MSSQL/Sybase-style
// "TOP N" as an alternative to a LIMIT-style clause.
type LimitDialect struct {
	Regexp      *regexp.Regexp
	HasStart    bool   // false means startLimit is always 0 regardless of the "start" group
	Marker      string // literal substring marking where to truncate the expression (e.g. " LIMIT ")
	SupportsTop bool
}

// Capabilities describes what a DBMS supports.
type Capabilities struct {
	StackedQueries bool
	ErrorBased     bool
	UnionBased     bool
	FileRead       bool
	FileWrite      bool
	OSCommand      bool
	OutOfBand      bool
	Subqueries     bool
	CaseWhen       bool
	LimitOffset    bool
}

// PayloadTemplate is a parameterized error-based payload.
type PayloadTemplate struct {
	Name     string
	Template string // Use {{.Query}} as placeholder for the expression to extract
	Columns  int
	DBMS     string
}

// Registry returns a DBMS implementation by name.
// It accepts common name variants (e.g. "MySQL", "mysql", "PostgreSQL", "postgres").
// Returns nil if the name is not recognized.
func Registry(name string) DBMS {
	switch name {
	case "MySQL", "mysql":
		return &MySQL{}
	case "PostgreSQL", "postgres", "postgresql":
		return &PostgreSQL{}
	case "MSSQL", "mssql", "sqlserver", "MSSQLServer", "Sybase", "sybase":
		return &MSSQL{}
	case "Oracle", "oracle":
		return &Oracle{}
	case "SQLite", "sqlite", "sqlite3":
		return &SQLite{}
	default:
		return nil
	}
}
