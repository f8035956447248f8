package schema_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"org-restore/internal/model"
	"org-restore/internal/schema"
)

type fakeAPI struct {
	meta          map[string]*model.ObjectMetadata
	users         []model.UserInfo
	describeCalls int
	userCalls     int
}

func (f *fakeAPI) Describe(ctx context.Context, objectName string) (*model.ObjectMetadata, error) {
	f.describeCalls++
	meta, ok := f.meta[objectName]
	if !ok {
		return nil, errors.New("no such object")
	}
	return meta, nil
}

func (f *fakeAPI) ActiveUsers(ctx context.Context) ([]model.UserInfo, error) {
	f.userCalls++
	return f.users, nil
}

func accountMeta() *model.ObjectMetadata {
	return &model.ObjectMetadata{
		ObjectName: "Account",
		Fields: []model.FieldInfo{
			{Name: "Name", Type: "string", Createable: true},
			{Name: "Industry", Type: "picklist", Createable: true,
				PicklistValues: []string{"Technology", "Finance", "Healthcare"}},
			{Name: "CreatedDate", Type: "datetime", Createable: false},
		},
		RecordTypes: []model.RecordTypeInfo{
			{ID: "012A", Name: "Customer", DeveloperName: "Customer", IsDefault: true},
		},
	}
}

func TestAnalyzeSource(t *testing.T) {
	records := []model.SourceRecord{
		{ID: "001A", Fields: []model.Field{
			{Name: "Name", Value: "Acme"},
			{Name: "Industry", Value: "Tech"},
			{Name: "RecordTypeId", Value: "012X"},
			{Name: "OwnerId", Value: "005A"},
		}},
		{ID: "001B", Fields: []model.Field{
			{Name: "Name", Value: "Globex"},
			{Name: "Industry", Value: "Finance"},
			{Name: "RecordTypeId", Value: "012X"},
			{Name: "OwnerId", Value: "005B"},
		}},
	}

	profile := schema.AnalyzeSource(records, []string{"Industry"})

	assert.Equal(t, []string{"Name", "Industry", "RecordTypeId", "OwnerId"}, profile.Fields)
	assert.Equal(t, []string{"012X"}, profile.RecordTypeIDs)
	assert.Equal(t, []string{"005A", "005B"}, profile.UserIDs)
	assert.Equal(t, []string{"Finance", "Tech"}, profile.PicklistValues["Industry"])
}

func TestCompareObject(t *testing.T) {
	api := &fakeAPI{
		meta:  map[string]*model.ObjectMetadata{"Account": accountMeta()},
		users: []model.UserInfo{{ID: "005A", Active: true}},
	}
	comparer := schema.NewComparer(api, nil)

	profile := schema.SourceProfile{
		Fields:         []string{"Name", "Industry", "LegacyField__c", "CreatedDate"},
		PicklistValues: map[string][]string{"Industry": {"Tech", "Finance"}},
		RecordTypeIDs:  []string{"012A", "012X"},
		UserIDs:        []string{"005A", "005GONE"},
	}
	result, err := comparer.CompareObject(context.Background(), "Account", profile)
	require.NoError(t, err)

	assert.Equal(t, []string{"LegacyField__c"}, result.MissingFields)
	assert.Equal(t, []string{"CreatedDate"}, result.NonCreateableFields)

	require.Len(t, result.RecordTypeMismatches, 1)
	assert.Equal(t, "012X", result.RecordTypeMismatches[0].SourceRecordTypeID)
	assert.Len(t, result.RecordTypeMismatches[0].TargetOptions, 1)

	require.Len(t, result.PicklistMismatches, 1)
	assert.Equal(t, "Industry", result.PicklistMismatches[0].FieldName)
	assert.Equal(t, "Tech", result.PicklistMismatches[0].SourceValue)
	assert.Equal(t, []string{"Technology", "Finance", "Healthcare"}, result.PicklistMismatches[0].TargetOptions)

	require.Len(t, result.UserMismatches, 1)
	assert.Equal(t, "005GONE", result.UserMismatches[0].SourceUserID)

	assert.True(t, result.HasMismatches())
	assert.Equal(t, []string{"Industry"}, result.PicklistMismatchFields())
}

func TestCompareObjectClean(t *testing.T) {
	api := &fakeAPI{meta: map[string]*model.ObjectMetadata{"Account": accountMeta()}}
	comparer := schema.NewComparer(api, nil)

	profile := schema.SourceProfile{
		Fields:         []string{"Name", "industry"}, // case must not matter
		PicklistValues: map[string][]string{"Industry": {"finance"}},
	}
	result, err := comparer.CompareObject(context.Background(), "Account", profile)
	require.NoError(t, err)

	assert.False(t, result.HasMismatches())
	assert.NotNil(t, result.MissingFields)
	assert.NotNil(t, result.PicklistMismatches)
}

func TestCompareObjectsContinuesOnFailure(t *testing.T) {
	api := &fakeAPI{meta: map[string]*model.ObjectMetadata{"Account": accountMeta()}}
	comparer := schema.NewComparer(api, nil)

	results, err := comparer.CompareObjects(context.Background(), map[string]schema.SourceProfile{
		"Account":  {Fields: []string{"Name"}},
		"Unknown1": {Fields: []string{"Name"}},
	})
	require.NoError(t, err)

	assert.Len(t, results, 1)
	assert.Contains(t, results, "Account")
}

func TestDescribeCaching(t *testing.T) {
	api := &fakeAPI{
		meta:  map[string]*model.ObjectMetadata{"Account": accountMeta()},
		users: []model.UserInfo{{ID: "005A"}},
	}
	comparer := schema.NewComparer(api, nil)

	profile := schema.SourceProfile{Fields: []string{"Name"}, UserIDs: []string{"005A"}}
	for i := 0; i < 3; i++ {
		_, err := comparer.CompareObject(context.Background(), "Account", profile)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, api.describeCalls)
	assert.Equal(t, 1, api.userCalls)
}
