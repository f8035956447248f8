package transform

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"org-restore/internal/model"
)

// Status is the outcome category of transforming one record.
type Status int

const (
	StatusTransformed Status = iota
	StatusDropped
	StatusFailed
)

// Outcome is the result of pushing one record through the pipeline.
// Record is only meaningful for StatusTransformed.
type Outcome struct {
	Status Status
	Record model.TransformedRecord
	Reason string // drop or failure detail
}

// Engine applies a mapping config to records. The pipeline order is
// fixed: field projection, value transformations, record-type
// resolution, user resolution, picklist resolution. A drop
// short-circuits the remaining stages.
type Engine struct {
	cfg           *Config
	runningUserID string
	logger        *zap.Logger

	regexps map[string]*regexp.Regexp
}

// userReferenceFields are the fields the user-resolution stage rewrites.
var userReferenceFields = []string{"OwnerId", "CreatedById", "LastModifiedById"}

// NewEngine creates an engine. runningUserID backs the USE_RUNNING_USER
// policy; when it is empty that policy keeps the source value instead.
func NewEngine(cfg *Config, runningUserID string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:           cfg,
		runningUserID: runningUserID,
		logger:        logger,
		regexps:       make(map[string]*regexp.Regexp),
	}
}

// Apply runs one record through the pipeline for the named object.
func (e *Engine) Apply(rec model.SourceRecord, objectName string) Outcome {
	oc := e.objectConfig(objectName)

	out := model.TransformedRecord{SourceID: rec.ID}
	excluded := make(map[string]bool, len(oc.FieldExclusions))
	for _, f := range oc.FieldExclusions {
		excluded[strings.ToLower(f)] = true
	}
	renames := make(map[string]string, len(oc.FieldRenames))
	for from, to := range oc.FieldRenames {
		renames[strings.ToLower(from)] = to
	}

	// Stage 1: projection.
	for _, f := range rec.Fields {
		key := strings.ToLower(f.Name)
		if excluded[key] {
			continue
		}
		name := f.Name
		if to, ok := renames[key]; ok {
			name = to
		}
		out.Fields = append(out.Fields, model.Field{Name: name, Value: f.Value})
	}

	// Stage 2: value transformations.
	for _, t := range oc.Transformations {
		value, ok := out.Get(t.Field)
		if !ok {
			continue
		}
		next, err := e.applyTransformation(t, value)
		if err != nil {
			return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("record %s: %v", rec.ID, err)}
		}
		out.Set(t.Field, next)
	}

	// Stage 3: record types.
	if value, ok := out.Get("RecordTypeId"); ok && value != "" {
		mapped, found := lookupMapping(value, oc.RecordTypeMappings, e.cfg.RecordTypeMappings)
		if found {
			out.Set("RecordTypeId", mapped)
		} else {
			behavior := pickBehavior(oc.UnmappedRecordTypeBehavior, e.cfg.UnmappedRecordTypeBehavior)
			res := e.resolveUnmapped(behavior, value, oc.DefaultRecordTypeID)
			if done := applyResolution(&out, "RecordTypeId", res); done != nil {
				return e.finishEarly(rec.ID, "RecordTypeId", value, *done)
			}
		}
	}

	// Stage 4: users.
	for _, field := range userReferenceFields {
		value, ok := out.Get(field)
		if !ok || value == "" {
			continue
		}
		mapped, found := lookupMapping(value, oc.UserMappings, e.cfg.UserMappings)
		if found {
			out.Set(field, mapped)
			continue
		}
		behavior := pickBehavior(oc.UnmappedUserBehavior, e.cfg.UnmappedUserBehavior)
		defaultValue := ""
		if behavior == UseRunningUser {
			if e.runningUserID == "" {
				// No running user to substitute; keeping the source value
				// beats blanking an ownership field.
				behavior = KeepOriginal
			} else {
				behavior, defaultValue = UseDefault, e.runningUserID
			}
		}
		res := e.resolveUnmapped(behavior, value, defaultValue)
		if done := applyResolution(&out, field, res); done != nil {
			return e.finishEarly(rec.ID, field, value, *done)
		}
	}

	// Stage 5: picklists.
	for field, mapping := range oc.PicklistMappings {
		value, ok := out.Get(field)
		if !ok || value == "" {
			continue
		}
		if mapped, found := mapping[value]; found {
			out.Set(field, mapped)
			continue
		}
		behavior := pickBehavior(oc.UnmappedPicklistBehavior, e.cfg.UnmappedPicklistBehavior)
		res := e.resolveUnmapped(behavior, value, oc.DefaultPicklistValues[field])
		if done := applyResolution(&out, field, res); done != nil {
			return e.finishEarly(rec.ID, field, value, *done)
		}
	}

	return Outcome{Status: StatusTransformed, Record: out}
}

func (e *Engine) objectConfig(objectName string) *ObjectConfig {
	if oc, ok := e.cfg.Objects[objectName]; ok {
		return oc
	}
	for name, oc := range e.cfg.Objects {
		if strings.EqualFold(name, objectName) {
			return oc
		}
	}
	return NewObjectConfig()
}

// pickBehavior prefers the object-level policy when one is set.
func pickBehavior(object, global UnmappedValueBehavior) UnmappedValueBehavior {
	if object != "" {
		return object
	}
	return global
}

func lookupMapping(value string, object, global map[string]string) (string, bool) {
	if mapped, ok := object[value]; ok {
		return mapped, true
	}
	if mapped, ok := global[value]; ok {
		return mapped, true
	}
	return "", false
}

// resolution is the verdict of the shared unmapped-value dispatch.
type resolution struct {
	value string
	clear bool
	drop  bool
	fail  bool
}

// resolveUnmapped is the single decision point for every unmapped
// category (record types, users, picklists). USE_RUNNING_USER is
// rewritten to USE_DEFAULT by the user stage before reaching here.
func (e *Engine) resolveUnmapped(behavior UnmappedValueBehavior, original, defaultValue string) resolution {
	switch behavior {
	case KeepOriginal:
		return resolution{value: original}
	case UseDefault:
		if defaultValue == "" {
			return resolution{clear: true}
		}
		return resolution{value: defaultValue}
	case SetNull:
		return resolution{clear: true}
	case SkipRecord:
		return resolution{drop: true}
	case FailRecord:
		return resolution{fail: true}
	default:
		return resolution{value: original}
	}
}

// applyResolution writes a keep/replace/clear verdict into the record
// and returns a non-nil status for drop/fail verdicts.
func applyResolution(out *model.TransformedRecord, field string, res resolution) *Status {
	switch {
	case res.drop:
		s := StatusDropped
		return &s
	case res.fail:
		s := StatusFailed
		return &s
	case res.clear:
		out.Set(field, "")
	default:
		out.Set(field, res.value)
	}
	return nil
}

func (e *Engine) finishEarly(recordID, field, value string, status Status) Outcome {
	reason := fmt.Sprintf("record %s: no mapping for %s value %q", recordID, field, value)
	if status == StatusDropped {
		e.logger.Debug("record skipped", zap.String("record", recordID),
			zap.String("field", field), zap.String("value", value))
	}
	return Outcome{Status: status, Reason: reason}
}

func (e *Engine) applyTransformation(t ValueTransformation, value string) (string, error) {
	if t.Condition != "" {
		re, err := e.compiled(t.Condition)
		if err != nil {
			return "", fmt.Errorf("bad condition for field %s: %w", t.Field, err)
		}
		if !re.MatchString(value) {
			return value, nil
		}
	}

	switch t.Type {
	case RegexReplace:
		re, err := e.compiled(t.Pattern)
		if err != nil {
			return "", fmt.Errorf("bad pattern for field %s: %w", t.Field, err)
		}
		return re.ReplaceAllString(value, t.Replacement), nil
	case StaticReplace:
		return t.Value, nil
	case Prefix:
		return t.Value + value, nil
	case Suffix:
		return value + t.Value, nil
	case Trim:
		return strings.TrimSpace(value), nil
	case Uppercase:
		return strings.ToUpper(value), nil
	case Lowercase:
		return strings.ToLower(value), nil
	case Lookup:
		if mapped, ok := t.LookupTable[value]; ok {
			return mapped, nil
		}
		return value, nil
	default:
		return "", fmt.Errorf("unknown transformation type %q for field %s", t.Type, t.Field)
	}
}

func (e *Engine) compiled(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.regexps[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.regexps[pattern] = re
	return re, nil
}
