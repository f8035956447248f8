package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"org-restore/internal/model"
)

// CSVReader reads a directory of per-object CSV exports. Each file is
// named <Object>.csv, the header row carries the field names and one
// data row is one record.
type CSVReader struct {
	dir    string
	logger *zap.Logger
}

// NewCSVReader creates a reader over dir. The directory must exist.
func NewCSVReader(dir string, logger *zap.Logger) (*CSVReader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("backup path %s is not a directory", dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVReader{dir: dir, logger: logger}, nil
}

func (r *CSVReader) Objects(ctx context.Context) ([]model.BackupObjectDescriptor, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup directory %s: %w", r.dir, err)
	}

	var objects []model.BackupObjectDescriptor
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(r.dir, entry.Name())
		count, err := r.countRows(path)
		if err != nil {
			r.logger.Warn("skipping unreadable backup file", zap.String("file", path), zap.Error(err))
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		objects = append(objects, model.BackupObjectDescriptor{
			Name:           name,
			RecordCount:    count,
			SourceLocation: path,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (r *CSVReader) ReadAll(ctx context.Context, objectName string) ([]model.SourceRecord, error) {
	return r.readRows(ctx, objectName, 0)
}

// ReadSample reads at most limit records without scanning the rest of
// the file.
func (r *CSVReader) ReadSample(ctx context.Context, objectName string, limit int) ([]model.SourceRecord, error) {
	return r.readRows(ctx, objectName, limit)
}

func (r *CSVReader) readRows(ctx context.Context, objectName string, limit int) ([]model.SourceRecord, error) {
	path := filepath.Join(r.dir, objectName+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	idIdx := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "Id") {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("%s has no Id column", path)
	}

	var records []model.SourceRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if limit > 0 && len(records) == limit {
			break
		}
		row, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		rec := model.SourceRecord{Fields: make([]model.Field, 0, len(header)-1)}
		for i, col := range header {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			if i == idIdx {
				rec.ID = value
				continue
			}
			rec.Fields = append(rec.Fields, model.Field{Name: strings.TrimSpace(col), Value: value})
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *CSVReader) countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	count := -1 // header does not count
	for {
		_, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		count++
	}
	if count < 0 {
		return 0, fmt.Errorf("empty file")
	}
	return count, nil
}
