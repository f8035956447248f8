package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"org-restore/internal/model"
)

// MetadataAPI is the slice of the target client the comparer needs.
type MetadataAPI interface {
	Describe(ctx context.Context, objectName string) (*model.ObjectMetadata, error)
	ActiveUsers(ctx context.Context) ([]model.UserInfo, error)
}

// Comparer reconciles a snapshot's schema against the target org.
// Describe results and the active user list are fetched once per run
// and cached.
type Comparer struct {
	api    MetadataAPI
	logger *zap.Logger

	describes map[string]*model.ObjectMetadata
	users     []model.UserInfo
	userIDs   map[string]bool
	usersOK   bool
}

// NewComparer creates a comparer over the given metadata API.
func NewComparer(api MetadataAPI, logger *zap.Logger) *Comparer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comparer{
		api:       api,
		logger:    logger,
		describes: make(map[string]*model.ObjectMetadata),
	}
}

// Describe returns the cached target metadata for an object, fetching it
// on first use.
func (c *Comparer) Describe(ctx context.Context, objectName string) (*model.ObjectMetadata, error) {
	key := strings.ToLower(objectName)
	if meta, ok := c.describes[key]; ok {
		return meta, nil
	}
	meta, err := c.api.Describe(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", objectName, err)
	}
	c.describes[key] = meta
	return meta, nil
}

// ActiveUsers returns the cached active user list, fetching it on first
// use.
func (c *Comparer) ActiveUsers(ctx context.Context) ([]model.UserInfo, error) {
	if c.usersOK {
		return c.users, nil
	}
	users, err := c.api.ActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	c.users = users
	c.userIDs = make(map[string]bool, len(users))
	for _, u := range users {
		c.userIDs[u.ID] = true
	}
	c.usersOK = true
	return c.users, nil
}

// SourceProfile is what a snapshot reveals about one object: the fields
// present, the picklist values observed per field, and the record-type
// and user identifiers the rows reference.
type SourceProfile struct {
	Fields         []string
	PicklistValues map[string][]string
	RecordTypeIDs  []string
	UserIDs        []string
}

// userReferenceFields are the audit/ownership fields whose values are
// user identifiers in the source org.
var userReferenceFields = []string{"OwnerId", "CreatedById", "LastModifiedById"}

// AnalyzeSource extracts a SourceProfile from snapshot records.
// picklistFields names the fields whose observed values should be
// collected for picklist reconciliation.
func AnalyzeSource(records []model.SourceRecord, picklistFields []string) SourceProfile {
	profile := SourceProfile{PicklistValues: make(map[string][]string)}
	if len(records) == 0 {
		return profile
	}

	profile.Fields = records[0].FieldNames()

	recordTypes := make(map[string]bool)
	users := make(map[string]bool)
	picklists := make(map[string]map[string]bool)
	for _, f := range picklistFields {
		picklists[strings.ToLower(f)] = make(map[string]bool)
	}

	for _, rec := range records {
		if rt, ok := rec.Get("RecordTypeId"); ok && rt != "" {
			recordTypes[rt] = true
		}
		for _, uf := range userReferenceFields {
			if id, ok := rec.Get(uf); ok && id != "" {
				users[id] = true
			}
		}
		for _, f := range rec.Fields {
			if seen, ok := picklists[strings.ToLower(f.Name)]; ok && f.Value != "" {
				seen[f.Value] = true
			}
		}
	}

	profile.RecordTypeIDs = sortedKeys(recordTypes)
	profile.UserIDs = sortedKeys(users)
	for _, f := range picklistFields {
		if seen := picklists[strings.ToLower(f)]; len(seen) > 0 {
			profile.PicklistValues[f] = sortedKeys(seen)
		}
	}
	return profile
}

// CompareObject reconciles one object's source profile against the
// target org. Field matching is case-insensitive. Every mismatch carries
// the full target option list so mapping suggestions can be derived.
func (c *Comparer) CompareObject(ctx context.Context, objectName string, profile SourceProfile) (*model.ObjectComparisonResult, error) {
	meta, err := c.Describe(ctx, objectName)
	if err != nil {
		return nil, err
	}

	result := model.NewObjectComparisonResult(objectName)
	result.TargetRecordTypes = meta.RecordTypes
	result.TargetPicklistValues = meta.PicklistValuesByField()

	for _, name := range profile.Fields {
		f := meta.Field(name)
		if f == nil {
			result.MissingFields = append(result.MissingFields, name)
			continue
		}
		if !f.Createable {
			result.NonCreateableFields = append(result.NonCreateableFields, name)
		}
	}

	targetRTs := make(map[string]bool, len(meta.RecordTypes))
	for _, rt := range meta.RecordTypes {
		targetRTs[rt.ID] = true
	}
	for _, id := range profile.RecordTypeIDs {
		if !targetRTs[id] {
			result.RecordTypeMismatches = append(result.RecordTypeMismatches, model.RecordTypeMismatch{
				SourceRecordTypeID: id,
				TargetOptions:      meta.RecordTypes,
			})
		}
	}

	for field, values := range profile.PicklistValues {
		f := meta.Field(field)
		if f == nil || len(f.PicklistValues) == 0 {
			continue
		}
		for _, v := range values {
			if !containsFold(f.PicklistValues, v) {
				result.PicklistMismatches = append(result.PicklistMismatches, model.PicklistMismatch{
					FieldName:     f.Name,
					SourceValue:   v,
					TargetOptions: f.PicklistValues,
				})
			}
		}
	}

	if len(profile.UserIDs) > 0 {
		users, err := c.ActiveUsers(ctx)
		if err != nil {
			return nil, err
		}
		result.TargetUsers = users
		for _, id := range profile.UserIDs {
			if !c.userIDs[id] {
				result.UserMismatches = append(result.UserMismatches, model.UserMismatch{SourceUserID: id})
			}
		}
	}

	sort.Slice(result.PicklistMismatches, func(i, j int) bool {
		a, b := result.PicklistMismatches[i], result.PicklistMismatches[j]
		if a.FieldName != b.FieldName {
			return a.FieldName < b.FieldName
		}
		return a.SourceValue < b.SourceValue
	})

	c.logger.Info("compared object",
		zap.String("object", objectName),
		zap.String("summary", result.Summary()))
	return result, nil
}

// CompareObjects reconciles several objects. A failure on one object is
// logged and the object skipped; the remaining objects still get
// compared.
func (c *Comparer) CompareObjects(ctx context.Context, profiles map[string]SourceProfile) (map[string]*model.ObjectComparisonResult, error) {
	results := make(map[string]*model.ObjectComparisonResult, len(profiles))

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := c.CompareObject(ctx, name, profiles[name])
		if err != nil {
			c.logger.Warn("skipping object: comparison failed",
				zap.String("object", name), zap.Error(err))
			continue
		}
		results[name] = result
	}
	return results, nil
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
