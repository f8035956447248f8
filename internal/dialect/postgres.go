package dialect

import (
	"fmt"
	"strings"
)

type PostgresDialect struct{}

func (d *PostgresDialect) GetTablesQuery(schema string) string {
	return fmt.Sprintf(`SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = %s AND TABLE_TYPE = 'BASE TABLE'`, d.Placeholder(0))
}

func (d *PostgresDialect) GetColumnsQuery(schema string) string {
	// Postgres specific: UDT_NAME is often better than DATA_TYPE,
	// so both are returned and the scanner can pick.
	return fmt.Sprintf(`SELECT c.table_name, c.column_name, c.data_type, c.udt_name, c.is_nullable
FROM information_schema.columns c
WHERE c.table_schema = %s
ORDER BY c.table_name, c.ordinal_position`, d.Placeholder(0))
}

func (d *PostgresDialect) SelectQuery(schema, table string, columns []string) string {
	cols := QuoteIdentList(columns, d.QuoteIdent)
	return fmt.Sprintf("SELECT %s FROM %s.%s", cols, d.QuoteIdent(d.GetSchemaName(schema)), d.QuoteIdent(table))
}

func (d *PostgresDialect) CountQuery(schema, table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", d.QuoteIdent(d.GetSchemaName(schema)), d.QuoteIdent(table))
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int4", "int2":
		return "int"
	case "int8":
		return "bigint"
	case "float4":
		return "float"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	case "varchar":
		return "varchar"
	default:
		return t
	}
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

func (d *PostgresDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
