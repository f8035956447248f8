package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"org-restore/internal/model"
	"org-restore/internal/transform"
)

func record(id string, fields ...model.Field) model.SourceRecord {
	return model.SourceRecord{ID: id, Fields: fields}
}

func f(name, value string) model.Field {
	return model.Field{Name: name, Value: value}
}

func TestApplyProjection(t *testing.T) {
	cfg := transform.NewConfig()
	oc := cfg.Object("Account")
	oc.FieldExclusions = append(oc.FieldExclusions, "LegacyField__c")
	oc.FieldRenames["OldName__c"] = "NewName__c"

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A",
		f("Name", "Acme"),
		f("LegacyField__c", "drop me"),
		f("OldName__c", "keep me"),
	), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	assert.Equal(t, "001A", out.Record.SourceID)

	_, hasLegacy := out.Record.Get("LegacyField__c")
	assert.False(t, hasLegacy)

	v, ok := out.Record.Get("NewName__c")
	require.True(t, ok)
	assert.Equal(t, "keep me", v)
}

func TestApplyValueTransformations(t *testing.T) {
	cfg := transform.NewConfig()
	oc := cfg.Object("Account")
	oc.Transformations = []transform.ValueTransformation{
		{Field: "Website", Type: transform.RegexReplace, Pattern: `^http://`, Replacement: "https://"},
		{Field: "Name", Type: transform.Prefix, Value: "[restored] "},
		{Field: "Tier", Type: transform.Lookup, LookupTable: map[string]string{"Gold": "Premium"}},
		{Field: "Code", Type: transform.Uppercase, Condition: `^[a-z]`},
	}

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A",
		f("Website", "http://acme.example"),
		f("Name", "Acme"),
		f("Tier", "Gold"),
		f("Code", "abc"),
	), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	got := func(name string) string {
		v, _ := out.Record.Get(name)
		return v
	}
	assert.Equal(t, "https://acme.example", got("Website"))
	assert.Equal(t, "[restored] Acme", got("Name"))
	assert.Equal(t, "Premium", got("Tier"))
	assert.Equal(t, "ABC", got("Code"))
}

func TestApplyConditionGate(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.Object("Account").Transformations = []transform.ValueTransformation{
		{Field: "Code", Type: transform.Uppercase, Condition: `^[0-9]`},
	}

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A", f("Code", "abc")), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	v, _ := out.Record.Get("Code")
	assert.Equal(t, "abc", v, "condition did not match, value must be untouched")
}

func TestApplyRecordTypeMapping(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.Object("Account").RecordTypeMappings["Old"] = "New"

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A", f("RecordTypeId", "Old")), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	v, _ := out.Record.Get("RecordTypeId")
	assert.Equal(t, "New", v)
}

func TestApplyRecordTypeUseDefault(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.UnmappedRecordTypeBehavior = transform.UseDefault
	cfg.Object("Account").DefaultRecordTypeID = "012DEFAULT"

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A", f("RecordTypeId", "012UNKNOWN")), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	v, _ := out.Record.Get("RecordTypeId")
	assert.Equal(t, "012DEFAULT", v)
}

func TestApplyRecordTypeUseDefaultWithoutDefaultClears(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.UnmappedRecordTypeBehavior = transform.UseDefault

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A", f("RecordTypeId", "012UNKNOWN")), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	v, _ := out.Record.Get("RecordTypeId")
	assert.Equal(t, "", v)
}

func TestApplySkipRecord(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.UnmappedPicklistBehavior = transform.SkipRecord
	cfg.Object("Account").PicklistMappings["Industry"] = map[string]string{"Tech": "Technology"}

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A", f("Industry", "Farming")), "Account")

	assert.Equal(t, transform.StatusDropped, out.Status)
	assert.Contains(t, out.Reason, "Industry")
}

func TestApplyFailRecord(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.UnmappedRecordTypeBehavior = transform.FailRecord

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A", f("RecordTypeId", "012UNKNOWN")), "Account")

	assert.Equal(t, transform.StatusFailed, out.Status)
	assert.Contains(t, out.Reason, "001A")
}

func TestApplyUseRunningUser(t *testing.T) {
	cfg := transform.NewConfig() // user behavior defaults to USE_RUNNING_USER

	engine := transform.NewEngine(cfg, "005RUNNER", nil)
	out := engine.Apply(record("001A",
		f("OwnerId", "005OLD"),
		f("CreatedById", "005OLD2"),
	), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	owner, _ := out.Record.Get("OwnerId")
	created, _ := out.Record.Get("CreatedById")
	assert.Equal(t, "005RUNNER", owner)
	assert.Equal(t, "005RUNNER", created)
}

func TestApplyUseRunningUserWithoutRunningUserKeepsValue(t *testing.T) {
	cfg := transform.NewConfig() // user behavior defaults to USE_RUNNING_USER

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A", f("OwnerId", "005OLD")), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	owner, _ := out.Record.Get("OwnerId")
	assert.Equal(t, "005OLD", owner, "no running user to substitute, source value must survive")
}

func TestApplyUserMappingWinsOverBehavior(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.UserMappings["005OLD"] = "005MAPPED"

	engine := transform.NewEngine(cfg, "005RUNNER", nil)
	out := engine.Apply(record("001A", f("OwnerId", "005OLD")), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	owner, _ := out.Record.Get("OwnerId")
	assert.Equal(t, "005MAPPED", owner)
}

func TestApplyPicklistMapping(t *testing.T) {
	cfg := transform.NewConfig()
	oc := cfg.Object("Account")
	oc.PicklistMappings["Industry"] = map[string]string{"Tech": "Technology"}

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A", f("Industry", "Tech")), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	v, _ := out.Record.Get("Industry")
	assert.Equal(t, "Technology", v)
}

func TestApplyPicklistKeepOriginal(t *testing.T) {
	cfg := transform.NewConfig() // picklist behavior defaults to KEEP_ORIGINAL
	cfg.Object("Account").PicklistMappings["Industry"] = map[string]string{"Tech": "Technology"}

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("001A", f("Industry", "Farming")), "Account")

	require.Equal(t, transform.StatusTransformed, out.Status)
	v, _ := out.Record.Get("Industry")
	assert.Equal(t, "Farming", v)
}

func TestApplyPicklistUseDefault(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.UnmappedPicklistBehavior = transform.UseDefault
	oc := cfg.Object("Case")
	oc.PicklistMappings["Status"] = map[string]string{"Working": "In Progress"}
	oc.DefaultPicklistValues["Status"] = "New"

	engine := transform.NewEngine(cfg, "", nil)
	out := engine.Apply(record("500A", f("Status", "Old")), "Case")

	require.Equal(t, transform.StatusTransformed, out.Status)
	v, _ := out.Record.Get("Status")
	assert.Equal(t, "New", v)
}

func TestApplyObjectBehaviorOverridesGlobal(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.UnmappedPicklistBehavior = transform.SkipRecord
	cfg.Object("Account").PicklistMappings["Industry"] = map[string]string{"Tech": "Technology"}
	contact := cfg.Object("Contact")
	contact.PicklistMappings["LeadSource"] = map[string]string{"Web": "Website"}
	contact.UnmappedPicklistBehavior = transform.KeepOriginal

	engine := transform.NewEngine(cfg, "", nil)

	// Account inherits the document-level SKIP_RECORD.
	dropped := engine.Apply(record("001A", f("Industry", "Farming")), "Account")
	assert.Equal(t, transform.StatusDropped, dropped.Status)

	// Contact's own policy applies instead.
	kept := engine.Apply(record("003C", f("LeadSource", "Referral")), "Contact")
	require.Equal(t, transform.StatusTransformed, kept.Status)
	v, _ := kept.Record.Get("LeadSource")
	assert.Equal(t, "Referral", v)
}

func TestApplyObjectUserBehaviorOverridesGlobal(t *testing.T) {
	cfg := transform.NewConfig()
	cfg.UnmappedUserBehavior = transform.SetNull
	cfg.Object("Case").UnmappedUserBehavior = transform.KeepOriginal

	engine := transform.NewEngine(cfg, "", nil)

	out := engine.Apply(record("500A", f("OwnerId", "005OLD")), "Case")
	require.Equal(t, transform.StatusTransformed, out.Status)
	owner, _ := out.Record.Get("OwnerId")
	assert.Equal(t, "005OLD", owner)

	cleared := engine.Apply(record("001A", f("OwnerId", "005OLD")), "Account")
	require.Equal(t, transform.StatusTransformed, cleared.Status)
	owner, _ = cleared.Record.Get("OwnerId")
	assert.Equal(t, "", owner)
}

func TestApplyObjectWithoutConfigPassesThrough(t *testing.T) {
	engine := transform.NewEngine(transform.NewConfig(), "", nil)
	out := engine.Apply(record("003C", f("Subject", "hello")), "Case")

	require.Equal(t, transform.StatusTransformed, out.Status)
	v, _ := out.Record.Get("Subject")
	assert.Equal(t, "hello", v)
}
