package source

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"org-restore/internal/dialect"
	"org-restore/internal/model"
)

// DatabaseReader reads snapshot rows out of a staging schema where each
// backup object lives in its own table. Columns prefixed with _ref_ or
// _rel_ are bookkeeping columns written by the backup side and are not
// part of the record.
type DatabaseReader struct {
	db      *sql.DB
	dialect dialect.Dialect
	schema  string
	logger  *zap.Logger

	columns map[string][]string // table (upper) -> column names in order
}

// NewDatabaseReader creates a reader over db using the dialect for the
// given driver name ("postgres", "mysql", "sqlserver", "oracle").
func NewDatabaseReader(db *sql.DB, driver, schema string, logger *zap.Logger) *DatabaseReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseReader{
		db:      db,
		dialect: dialect.GetDialect(driver),
		schema:  schema,
		logger:  logger,
	}
}

func (r *DatabaseReader) Objects(ctx context.Context) ([]model.BackupObjectDescriptor, error) {
	if err := r.scanColumns(ctx); err != nil {
		return nil, err
	}

	target := r.dialect.GetSchemaName(r.schema)
	rows, err := r.db.QueryContext(ctx, r.dialect.GetTablesQuery(target), target)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	var objects []model.BackupObjectDescriptor
	for _, name := range names {
		// Only tables with an Id column hold restorable records.
		if !r.hasIDColumn(name) {
			r.logger.Debug("skipping table without Id column", zap.String("table", name))
			continue
		}
		count, err := r.countRows(ctx, name)
		if err != nil {
			r.logger.Warn("failed to count rows", zap.String("table", name), zap.Error(err))
			continue
		}
		objects = append(objects, model.BackupObjectDescriptor{
			Name:           name,
			RecordCount:    count,
			SourceLocation: fmt.Sprintf("%s.%s", target, name),
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (r *DatabaseReader) ReadAll(ctx context.Context, objectName string) ([]model.SourceRecord, error) {
	return r.readRows(ctx, objectName, 0)
}

// ReadSample reads at most limit records, using the dialect's row
// limiting so only the sampled rows leave the database.
func (r *DatabaseReader) ReadSample(ctx context.Context, objectName string, limit int) ([]model.SourceRecord, error) {
	return r.readRows(ctx, objectName, limit)
}

func (r *DatabaseReader) readRows(ctx context.Context, objectName string, limit int) ([]model.SourceRecord, error) {
	if err := r.scanColumns(ctx); err != nil {
		return nil, err
	}

	all, ok := r.columns[strings.ToUpper(objectName)]
	if !ok {
		return nil, fmt.Errorf("no backup table for object %s", objectName)
	}

	idIdx := -1
	cols := make([]string, 0, len(all))
	for _, c := range all {
		if isBookkeepingColumn(c) {
			continue
		}
		if strings.EqualFold(c, "Id") {
			idIdx = len(cols)
		}
		cols = append(cols, c)
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("backup table %s has no Id column", objectName)
	}

	query := r.dialect.SelectQuery(r.schema, objectName, cols)
	if limit > 0 {
		query = r.dialect.GetLimitRowQuery(query, limit)
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", objectName, err)
	}
	defer rows.Close()

	var records []model.SourceRecord
	values := make([]sql.NullString, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", objectName, err)
		}
		rec := model.SourceRecord{Fields: make([]model.Field, 0, len(cols)-1)}
		for i, col := range cols {
			if i == idIdx {
				rec.ID = values[i].String
				continue
			}
			rec.Fields = append(rec.Fields, model.Field{Name: col, Value: values[i].String})
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", objectName, err)
	}
	return records, nil
}

// scanColumns loads the column inventory of the staging schema once.
func (r *DatabaseReader) scanColumns(ctx context.Context) error {
	if r.columns != nil {
		return nil
	}

	target := r.dialect.GetSchemaName(r.schema)
	rows, err := r.db.QueryContext(ctx, r.dialect.GetColumnsQuery(target), target)
	if err != nil {
		return fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string][]string)
	for rows.Next() {
		var tName, cName, dType, cType, isNull sql.NullString
		if err := rows.Scan(&tName, &cName, &dType, &cType, &isNull); err != nil {
			return fmt.Errorf("failed to scan column (table: %s): %w", tName.String, err)
		}
		if !tName.Valid || !cName.Valid {
			continue
		}
		// Binary columns cannot round-trip through string field values.
		if isBinaryType(r.dialect.NormalizeType(dType.String)) {
			r.logger.Debug("skipping binary column",
				zap.String("table", tName.String),
				zap.String("column", cName.String),
				zap.String("type", dType.String))
			continue
		}
		key := strings.ToUpper(tName.String)
		columns[key] = append(columns[key], cName.String)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating columns: %w", err)
	}

	r.columns = columns
	return nil
}

func (r *DatabaseReader) hasIDColumn(table string) bool {
	for _, c := range r.columns[strings.ToUpper(table)] {
		if strings.EqualFold(c, "Id") {
			return true
		}
	}
	return false
}

func (r *DatabaseReader) countRows(ctx context.Context, table string) (int, error) {
	var count int
	query := r.dialect.CountQuery(r.schema, table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// isBookkeepingColumn reports whether the column is a backup-side helper
// column rather than record data.
func isBookkeepingColumn(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "_ref_") || strings.HasPrefix(lower, "_rel_")
}

// isBinaryType reports whether a dialect-normalized column type holds
// raw bytes.
func isBinaryType(normalized string) bool {
	t := strings.ToLower(normalized)
	if strings.Contains(t, "blob") || strings.Contains(t, "binary") {
		return true
	}
	switch t {
	case "bytea", "image", "raw", "long raw", "bfile":
		return true
	}
	return false
}
