package model

import (
	"fmt"
	"strings"
)

// RecordTypeMismatch is a source record-type identifier with no match in
// the target, carrying the target's options for mapping suggestions.
type RecordTypeMismatch struct {
	SourceRecordTypeID string
	TargetOptions      []RecordTypeInfo
}

// PicklistMismatch is a source picklist value absent from the target
// field's active value set.
type PicklistMismatch struct {
	FieldName     string
	SourceValue   string
	TargetOptions []string
}

// UserMismatch is a source user identifier with no active target user.
type UserMismatch struct {
	SourceUserID string
}

// ObjectComparisonResult holds every reconciliation finding for one
// object. Mismatch slices are always non-nil; empty means no mismatch.
type ObjectComparisonResult struct {
	ObjectName           string
	MissingFields        []string
	NonCreateableFields  []string
	RecordTypeMismatches []RecordTypeMismatch
	PicklistMismatches   []PicklistMismatch
	UserMismatches       []UserMismatch

	TargetRecordTypes    []RecordTypeInfo
	TargetUsers          []UserInfo
	TargetPicklistValues map[string][]string
}

// NewObjectComparisonResult returns an empty result with initialized
// collections.
func NewObjectComparisonResult(objectName string) *ObjectComparisonResult {
	return &ObjectComparisonResult{
		ObjectName:           objectName,
		MissingFields:        []string{},
		NonCreateableFields:  []string{},
		RecordTypeMismatches: []RecordTypeMismatch{},
		PicklistMismatches:   []PicklistMismatch{},
		UserMismatches:       []UserMismatch{},
		TargetPicklistValues: map[string][]string{},
	}
}

// HasMismatches reports whether anything needs mapping before restore.
func (r *ObjectComparisonResult) HasMismatches() bool {
	return len(r.MissingFields) > 0 || len(r.RecordTypeMismatches) > 0 ||
		len(r.PicklistMismatches) > 0 || len(r.UserMismatches) > 0
}

// PicklistMismatchFields returns the distinct field names with picklist
// mismatches.
func (r *ObjectComparisonResult) PicklistMismatchFields() []string {
	seen := make(map[string]bool)
	var fields []string
	for _, pm := range r.PicklistMismatches {
		if !seen[pm.FieldName] {
			seen[pm.FieldName] = true
			fields = append(fields, pm.FieldName)
		}
	}
	return fields
}

// Summary renders a one-line mismatch summary for logs and reports.
func (r *ObjectComparisonResult) Summary() string {
	var parts []string
	if n := len(r.MissingFields); n > 0 {
		parts = append(parts, fmt.Sprintf("%d missing fields", n))
	}
	if n := len(r.NonCreateableFields); n > 0 {
		parts = append(parts, fmt.Sprintf("%d non-createable fields", n))
	}
	if n := len(r.PicklistMismatches); n > 0 {
		parts = append(parts, fmt.Sprintf("%d picklist mismatches", n))
	}
	if n := len(r.RecordTypeMismatches); n > 0 {
		parts = append(parts, fmt.Sprintf("%d record type mismatches", n))
	}
	if n := len(r.UserMismatches); n > 0 {
		parts = append(parts, fmt.Sprintf("%d user mismatches", n))
	}
	if len(parts) == 0 {
		return "no mismatches found"
	}
	return strings.Join(parts, ", ")
}
