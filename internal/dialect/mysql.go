package dialect

import (
	"fmt"
	"strings"
)

type MysqlDialect struct{}

func (d *MysqlDialect) GetTablesQuery(schema string) string {
	return fmt.Sprintf(`SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = %s AND TABLE_TYPE = 'BASE TABLE'`, d.Placeholder(0))
}

func (d *MysqlDialect) GetColumnsQuery(schema string) string {
	return fmt.Sprintf(`SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = %s ORDER BY TABLE_NAME, ORDINAL_POSITION`, d.Placeholder(0))
}

func (d *MysqlDialect) SelectQuery(schema, table string, columns []string) string {
	cols := QuoteIdentList(columns, d.QuoteIdent)
	if schema == "" {
		return fmt.Sprintf("SELECT %s FROM %s", cols, d.QuoteIdent(table))
	}
	return fmt.Sprintf("SELECT %s FROM %s.%s", cols, d.QuoteIdent(schema), d.QuoteIdent(table))
}

func (d *MysqlDialect) CountQuery(schema, table string) string {
	if schema == "" {
		return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", d.QuoteIdent(schema), d.QuoteIdent(table))
}

func (d *MysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	return DefaultNormalizeType(sqlType)
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

func (d *MysqlDialect) GetLimitRowQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
