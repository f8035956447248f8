package dialect

// Dialect abstracts database-specific SQL for scanning a staging schema
// that holds backup tables and streaming their rows.
type Dialect interface {
	// Metadata Queries (Schema Introspection)
	GetTablesQuery(schema string) string
	GetColumnsQuery(schema string) string

	// Row Access
	SelectQuery(schema, table string, columns []string) string
	CountQuery(schema, table string) string
	QuoteIdent(name string) string
	Placeholder(index int) string // Returns ?, $1, @p1, :1 etc.

	// Helpers
	NormalizeType(sqlType string) string
	GetSchemaName(input string) string
	GetLimitRowQuery(query string, limit int) string
}
