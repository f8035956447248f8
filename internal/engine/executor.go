package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"org-restore/internal/graph"
	"org-restore/internal/model"
	"org-restore/internal/source"
	"org-restore/internal/transform"
)

// TargetAPI is the slice of the target client the executor needs.
type TargetAPI interface {
	Describe(ctx context.Context, objectName string) (*model.ObjectMetadata, error)
	WriteBatch(ctx context.Context, objectName string, mode model.RestoreMode, externalIDField string, records []model.TransformedRecord) ([]model.WriteResult, error)
}

// Executor drives one restore run: for each object, in dependency
// order, read, transform, resolve parent references against the
// identifier map, then submit in batches with bounded retry. The
// identifier map is run-scoped; a record's entry appears only after the
// target confirmed its write.
type Executor struct {
	reader      source.Reader
	target      TargetAPI
	transformer *transform.Engine
	rels        *graph.RelationshipManager
	logger      *zap.Logger

	// OnProgress receives a value snapshot after every batch.
	OnProgress func(model.RestoreProgress)
	// OnLog receives human-readable run events.
	OnLog func(string)
}

// NewExecutor wires an executor. rels may be nil when reference
// resolution is disabled for every run.
func NewExecutor(reader source.Reader, target TargetAPI, transformer *transform.Engine, rels *graph.RelationshipManager, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		reader:      reader,
		target:      target,
		transformer: transformer,
		rels:        rels,
		logger:      logger,
	}
}

// Restore processes the objects in the given order. The returned error
// is non-nil only when the run aborted (cancellation or stop-on-error);
// per-record failures are reported through the result.
func (e *Executor) Restore(ctx context.Context, objects []model.BackupObjectDescriptor, opts model.RestoreOptions) (*model.RestoreResult, error) {
	opts = normalizeOptions(opts)

	result := &model.RestoreResult{}
	idMap := model.IdentifierMap{}

	totalRecords := 0
	for _, obj := range objects {
		totalRecords += obj.RecordCount
	}
	processed := 0

	var abortErr error
	for i, obj := range objects {
		if abortErr != nil {
			result.AddObjectResult(model.ObjectResult{ObjectName: obj.Name, Skipped: true})
			continue
		}
		if err := ctx.Err(); err != nil {
			abortErr = err
			result.AddObjectResult(model.ObjectResult{ObjectName: obj.Name, Skipped: true})
			continue
		}

		e.log(fmt.Sprintf("Restoring %s (%d/%d)", obj.Name, i+1, len(objects)))
		or := e.restoreObject(ctx, obj, opts, idMap, &processed, totalRecords, result)
		result.AddObjectResult(or)

		if opts.StopOnError && (or.FailureCount > 0 || (or.Skipped && len(or.Errors) > 0)) {
			abortErr = fmt.Errorf("stopping after failures in %s", obj.Name)
			e.log(fmt.Sprintf("Aborting run: %v", abortErr))
		}
		if err := ctx.Err(); err != nil && abortErr == nil {
			abortErr = err
		}
	}

	result.Completed = abortErr == nil
	if abortErr != nil {
		return result, abortErr
	}
	return result, nil
}

func (e *Executor) restoreObject(ctx context.Context, obj model.BackupObjectDescriptor, opts model.RestoreOptions, idMap model.IdentifierMap, processed *int, totalRecords int, run *model.RestoreResult) model.ObjectResult {
	or := model.ObjectResult{ObjectName: obj.Name}

	records, err := e.reader.ReadAll(ctx, obj.Name)
	if err != nil {
		or.Skipped = true
		or.AddError(fmt.Sprintf("failed to read snapshot: %v", err))
		e.logger.Error("failed to read snapshot", zap.String("object", obj.Name), zap.Error(err))
		return or
	}
	or.TotalRecords = len(records)

	// Transform every record up front; the identifier map only matters
	// at reference-resolution and write time.
	var transformed []model.TransformedRecord
	for _, rec := range records {
		outcome := e.transformer.Apply(rec, obj.Name)
		switch outcome.Status {
		case transform.StatusDropped:
			or.SkippedCount++
		case transform.StatusFailed:
			or.FailureCount++
			or.AddError(outcome.Reason)
		default:
			transformed = append(transformed, outcome.Record)
		}
	}

	if opts.ValidateBeforeRestore {
		if err := e.validate(ctx, obj.Name, transformed); err != nil {
			or.Skipped = true
			or.AddError(err.Error())
			e.logger.Error("validation failed", zap.String("object", obj.Name), zap.Error(err))
			return or
		}
	}

	refFields := e.referenceFields(ctx, obj.Name)
	for i := range transformed {
		e.resolveReferences(&transformed[i], refFields, idMap, opts, obj.Name)
	}

	if opts.Mode == model.ModeUpdate {
		transformed = e.attachTargetIDs(transformed, idMap, &or)
	}

	if opts.DryRun {
		or.SuccessCount += len(transformed)
		*processed += len(records)
		e.progress(obj.Name, *processed, totalRecords, run, or)
		e.log(fmt.Sprintf("%s: dry run, %d records would be written", obj.Name, len(transformed)))
		return or
	}

	for start := 0; start < len(transformed); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			remaining := len(transformed) - start
			or.SkippedCount += remaining
			or.AddError(fmt.Sprintf("cancelled with %d records unprocessed", remaining))
			return or
		}

		end := start + opts.BatchSize
		if end > len(transformed) {
			end = len(transformed)
		}
		batch := transformed[start:end]

		results, err := e.submitBatch(ctx, obj.Name, opts, batch)
		if err != nil {
			// The whole call failed after retries; every record in the
			// batch counts as a failure.
			or.FailureCount += len(batch)
			or.AddError(fmt.Sprintf("batch of %d failed: %v", len(batch), err))
			e.logger.Error("batch failed", zap.String("object", obj.Name),
				zap.Int("size", len(batch)), zap.Error(err))
			if opts.StopOnError {
				*processed += len(batch)
				e.progress(obj.Name, *processed, totalRecords, run, or)
				return or
			}
		} else {
			for _, wr := range results {
				if wr.Success {
					or.SuccessCount++
					idMap.Add(wr.SourceID, wr.TargetID)
				} else {
					or.FailureCount++
					or.AddError(fmt.Sprintf("record %s: %s", wr.SourceID, wr.Error))
				}
			}
		}

		*processed += len(batch)
		e.progress(obj.Name, *processed, totalRecords, run, or)
	}

	e.log(fmt.Sprintf("%s: %d ok, %d failed, %d skipped",
		obj.Name, or.SuccessCount, or.FailureCount, or.SkippedCount))
	return or
}

// submitBatch writes one batch, retrying transport-level failures with a
// linearly growing delay. Per-record rejections come back in the result
// list and are never retried.
func (e *Executor) submitBatch(ctx context.Context, objectName string, opts model.RestoreOptions, batch []model.TransformedRecord) ([]model.WriteResult, error) {
	attempts := opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		results, err := e.target.WriteBatch(ctx, objectName, opts.Mode, opts.ExternalIDField, batch)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if !model.IsTransport(err) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		delay := opts.RetryDelay * time.Duration(attempt)
		e.logger.Warn("transport failure, retrying",
			zap.String("object", objectName),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
}

// validate checks that every field the transformed records carry exists
// on the target object.
func (e *Executor) validate(ctx context.Context, objectName string, records []model.TransformedRecord) error {
	if len(records) == 0 {
		return nil
	}
	meta, err := e.target.Describe(ctx, objectName)
	if err != nil {
		return fmt.Errorf("failed to describe %s: %w", objectName, err)
	}

	missing := map[string]bool{}
	for _, f := range records[0].Fields {
		if strings.EqualFold(f.Name, "Id") {
			continue
		}
		if meta.Field(f.Name) == nil {
			missing[f.Name] = true
		}
	}
	if len(missing) > 0 {
		problems := make([]string, 0, len(missing))
		for f := range missing {
			problems = append(problems, fmt.Sprintf("field %s does not exist on target", f))
		}
		return &model.ValidationError{ObjectName: objectName, Problems: problems}
	}
	return nil
}

func (e *Executor) referenceFields(ctx context.Context, objectName string) map[string]string {
	if e.rels == nil {
		return nil
	}
	refs, err := e.rels.ReferenceFields(ctx, objectName)
	if err != nil {
		e.logger.Warn("reference resolution unavailable",
			zap.String("object", objectName), zap.Error(err))
		return nil
	}
	return refs
}

// resolveReferences rewrites parent lookups through the identifier map.
// User audit fields were already handled by the transformer.
func (e *Executor) resolveReferences(rec *model.TransformedRecord, refFields map[string]string, idMap model.IdentifierMap, opts model.RestoreOptions, objectName string) {
	for field, referenced := range refFields {
		if strings.EqualFold(referenced, "User") {
			continue
		}
		value, ok := rec.Get(field)
		if !ok || value == "" {
			continue
		}
		if targetID, found := idMap.Resolve(value); found {
			rec.Set(field, targetID)
			continue
		}
		if opts.ResolveRelationships {
			e.logger.Warn("unresolved reference cleared",
				zap.String("object", objectName),
				zap.String("record", rec.SourceID),
				zap.String("field", field),
				zap.String("value", value))
			rec.Set(field, "")
			continue
		}
		e.logger.Warn("unresolved reference left as-is",
			zap.String("object", objectName),
			zap.String("record", rec.SourceID),
			zap.String("field", field),
			zap.String("value", value))
	}
}

// attachTargetIDs prepares records for update mode: each needs the
// target identifier of an earlier insert in this run.
func (e *Executor) attachTargetIDs(records []model.TransformedRecord, idMap model.IdentifierMap, or *model.ObjectResult) []model.TransformedRecord {
	kept := records[:0]
	for _, rec := range records {
		targetID, ok := idMap.Resolve(rec.SourceID)
		if !ok {
			or.FailureCount++
			or.AddError(fmt.Sprintf("record %s: no target identifier for update", rec.SourceID))
			continue
		}
		rec.Set("Id", targetID)
		kept = append(kept, rec)
	}
	return kept
}

func (e *Executor) progress(objectName string, processed, total int, run *model.RestoreResult, current model.ObjectResult) {
	if e.OnProgress == nil {
		return
	}
	p := model.RestoreProgress{
		CurrentObject:    objectName,
		ProcessedRecords: processed,
		TotalRecords:     total,
		SuccessCount:     run.SuccessCount + current.SuccessCount,
		FailureCount:     run.FailureCount + current.FailureCount,
		SkippedCount:     run.SkippedCount + current.SkippedCount,
	}
	if total > 0 {
		p.PercentComplete = float64(processed) / float64(total) * 100
	}
	e.OnProgress(p)
}

func (e *Executor) log(msg string) {
	e.logger.Info(msg)
	if e.OnLog != nil {
		e.OnLog(msg)
	}
}

func normalizeOptions(opts model.RestoreOptions) model.RestoreOptions {
	if opts.BatchSize <= 0 || opts.BatchSize > model.DefaultBatchSize {
		opts.BatchSize = model.DefaultBatchSize
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Mode == "" {
		opts.Mode = model.ModeInsert
	}
	return opts
}
