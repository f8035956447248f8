package model

import "strings"

// BackupObjectDescriptor identifies one restorable object in a snapshot.
type BackupObjectDescriptor struct {
	Name           string
	RecordCount    int
	SourceLocation string
}

// Field is a single column of a record. Order matters: records keep the
// column order of the snapshot they were read from.
type Field struct {
	Name  string
	Value string
}

// SourceRecord is one row of the snapshot. ID is the stable source
// identifier ("Id" column). Immutable once read; transformations copy.
type SourceRecord struct {
	ID     string
	Fields []Field
}

// Get returns the value of the named field (case-insensitive).
func (r SourceRecord) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// FieldNames returns the field names in snapshot order.
func (r SourceRecord) FieldNames() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// TransformedRecord is a record that passed transformation and is ready
// for submission. SourceID carries the original identifier so write
// results can be correlated back into the IdentifierMap.
type TransformedRecord struct {
	SourceID string
	Fields   []Field
}

// Get returns the value of the named field (case-insensitive).
func (r TransformedRecord) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the named field's value, appending the field if absent.
func (r *TransformedRecord) Set(name, value string) {
	for i, f := range r.Fields {
		if strings.EqualFold(f.Name, name) {
			r.Fields[i].Value = value
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: value})
}

// IdentifierMap tracks source-to-target identifiers for one restore run.
// An entry exists only after the record's write was confirmed successful.
// Never persisted; discarded at run end.
type IdentifierMap map[string]string

// Resolve returns the target identifier for a source identifier.
func (m IdentifierMap) Resolve(sourceID string) (string, bool) {
	targetID, ok := m[sourceID]
	return targetID, ok
}

// Add records a confirmed source-to-target mapping.
func (m IdentifierMap) Add(sourceID, targetID string) {
	if sourceID != "" && targetID != "" {
		m[sourceID] = targetID
	}
}
