package model

import "strings"

// FieldInfo describes one field of a target object as returned by the
// describe endpoint.
type FieldInfo struct {
	Name             string
	Type             string
	Label            string
	Createable       bool
	Updateable       bool
	Required         bool
	ExternalID       bool
	Unique           bool
	NameField        bool
	ReferenceTo      []string
	RelationshipName string
	PicklistValues   []string
}

// IsReference reports whether the field is a lookup/master-detail field.
func (f FieldInfo) IsReference() bool {
	return f.Type == "reference" && len(f.ReferenceTo) > 0
}

// RecordTypeInfo is one record type available on a target object.
type RecordTypeInfo struct {
	ID            string
	Name          string
	DeveloperName string
	IsDefault     bool
}

// UserInfo is one user of the target org.
type UserInfo struct {
	ID       string
	Username string
	Name     string
	Email    string
	Active   bool
}

// ObjectMetadata is the describe result for one target object.
type ObjectMetadata struct {
	ObjectName  string
	Fields      []FieldInfo
	RecordTypes []RecordTypeInfo
}

// Field finds a field by name (case-insensitive). Returns nil if absent.
func (m *ObjectMetadata) Field(name string) *FieldInfo {
	for i := range m.Fields {
		if strings.EqualFold(m.Fields[i].Name, name) {
			return &m.Fields[i]
		}
	}
	return nil
}

// FieldNames returns all field names in describe order.
func (m *ObjectMetadata) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i := range m.Fields {
		names[i] = m.Fields[i].Name
	}
	return names
}

// ReferenceFields returns the lookup/master-detail fields.
func (m *ObjectMetadata) ReferenceFields() []FieldInfo {
	var refs []FieldInfo
	for _, f := range m.Fields {
		if f.IsReference() {
			refs = append(refs, f)
		}
	}
	return refs
}

// ExternalIDFields returns fields flagged as external identifiers.
func (m *ObjectMetadata) ExternalIDFields() []FieldInfo {
	var ext []FieldInfo
	for _, f := range m.Fields {
		if f.ExternalID {
			ext = append(ext, f)
		}
	}
	return ext
}

// DefaultRecordType returns the record type flagged as the default,
// or nil when the object has none.
func (m *ObjectMetadata) DefaultRecordType() *RecordTypeInfo {
	for i := range m.RecordTypes {
		if m.RecordTypes[i].IsDefault {
			return &m.RecordTypes[i]
		}
	}
	return nil
}

// PicklistValuesByField returns the active picklist value sets keyed by
// field name.
func (m *ObjectMetadata) PicklistValuesByField() map[string][]string {
	values := make(map[string][]string)
	for _, f := range m.Fields {
		if len(f.PicklistValues) > 0 {
			values[f.Name] = f.PicklistValues
		}
	}
	return values
}
