package source

import (
	"context"

	"org-restore/internal/model"
)

// Reader streams snapshot records for restore. Implementations scan a
// backup location (CSV export directory or staging database schema),
// list the restorable objects and read each object's rows.
type Reader interface {
	// Objects lists the restorable objects found in the snapshot.
	Objects(ctx context.Context) ([]model.BackupObjectDescriptor, error)

	// ReadAll reads every record of one object. The "Id" column becomes
	// the record's source identifier and is excluded from the field set.
	ReadAll(ctx context.Context, objectName string) ([]model.SourceRecord, error)
}

// Sampler is implemented by readers that can read a bounded number of
// records cheaply. Analysis uses it to profile large objects without
// pulling every row.
type Sampler interface {
	ReadSample(ctx context.Context, objectName string, limit int) ([]model.SourceRecord, error)
}

var (
	_ Sampler = (*CSVReader)(nil)
	_ Sampler = (*DatabaseReader)(nil)
)
