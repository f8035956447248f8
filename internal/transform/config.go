package transform

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"org-restore/internal/model"
)

// UnmappedValueBehavior decides what happens to a value with no mapping
// entry.
type UnmappedValueBehavior string

const (
	KeepOriginal   UnmappedValueBehavior = "KEEP_ORIGINAL"
	UseDefault     UnmappedValueBehavior = "USE_DEFAULT"
	SetNull        UnmappedValueBehavior = "SET_NULL"
	SkipRecord     UnmappedValueBehavior = "SKIP_RECORD"
	FailRecord     UnmappedValueBehavior = "FAIL"
	UseRunningUser UnmappedValueBehavior = "USE_RUNNING_USER" // user fields only
)

func validBehavior(b UnmappedValueBehavior, allowRunningUser bool) bool {
	switch b {
	case KeepOriginal, UseDefault, SetNull, SkipRecord, FailRecord:
		return true
	case UseRunningUser:
		return allowRunningUser
	}
	return false
}

// TransformationType selects a value transformation rule.
type TransformationType string

const (
	RegexReplace  TransformationType = "REGEX_REPLACE"
	StaticReplace TransformationType = "STATIC_REPLACE"
	Prefix        TransformationType = "PREFIX"
	Suffix        TransformationType = "SUFFIX"
	Trim          TransformationType = "TRIM"
	Uppercase     TransformationType = "UPPERCASE"
	Lowercase     TransformationType = "LOWERCASE"
	Lookup        TransformationType = "LOOKUP"
)

// ValueTransformation is one field-level rule. Condition, when set, is a
// regular expression the current value must match for the rule to fire.
type ValueTransformation struct {
	Field       string             `yaml:"field"`
	Type        TransformationType `yaml:"type"`
	Pattern     string             `yaml:"pattern,omitempty"`
	Replacement string             `yaml:"replacement,omitempty"`
	Value       string             `yaml:"value,omitempty"`
	LookupTable map[string]string  `yaml:"lookupTable"`
	Condition   string             `yaml:"condition,omitempty"`
}

// ObjectConfig holds the per-object mapping decisions. The unmapped
// behaviors, when set, override the document-level policy for this
// object only; empty means inherit.
type ObjectConfig struct {
	FieldExclusions       []string                     `yaml:"fieldExclusions"`
	FieldRenames          map[string]string            `yaml:"fieldRenames"`
	RecordTypeMappings    map[string]string            `yaml:"recordTypeMappings"`
	DefaultRecordTypeID   string                       `yaml:"defaultRecordTypeId"`
	PicklistMappings      map[string]map[string]string `yaml:"picklistMappings"`
	DefaultPicklistValues map[string]string            `yaml:"defaultPicklistValues"`
	UserMappings          map[string]string            `yaml:"userMappings"`
	Transformations       []ValueTransformation        `yaml:"transformations"`

	UnmappedRecordTypeBehavior UnmappedValueBehavior `yaml:"unmappedRecordTypeBehavior,omitempty"`
	UnmappedUserBehavior       UnmappedValueBehavior `yaml:"unmappedUserBehavior,omitempty"`
	UnmappedPicklistBehavior   UnmappedValueBehavior `yaml:"unmappedPicklistBehavior,omitempty"`
}

// NewObjectConfig returns an object config with initialized collections.
func NewObjectConfig() *ObjectConfig {
	return &ObjectConfig{
		FieldExclusions:       []string{},
		FieldRenames:          map[string]string{},
		RecordTypeMappings:    map[string]string{},
		PicklistMappings:      map[string]map[string]string{},
		DefaultPicklistValues: map[string]string{},
		UserMappings:          map[string]string{},
		Transformations:       []ValueTransformation{},
	}
}

// Config is the full mapping document for one source-to-target org pair.
// It is the only artifact a user edits between analyze and restore.
type Config struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	SourceOrg   string `yaml:"sourceOrg"`
	TargetOrg   string `yaml:"targetOrg"`

	RecordTypeMappings map[string]string `yaml:"recordTypeMappings"`
	UserMappings       map[string]string `yaml:"userMappings"`

	UnmappedRecordTypeBehavior UnmappedValueBehavior `yaml:"unmappedRecordTypeBehavior"`
	UnmappedUserBehavior       UnmappedValueBehavior `yaml:"unmappedUserBehavior"`
	UnmappedPicklistBehavior   UnmappedValueBehavior `yaml:"unmappedPicklistBehavior"`

	Objects map[string]*ObjectConfig `yaml:"objects"`
}

// NewConfig returns a config with initialized collections and the
// default unmapped-value policies.
func NewConfig() *Config {
	return &Config{
		RecordTypeMappings:         map[string]string{},
		UserMappings:               map[string]string{},
		UnmappedRecordTypeBehavior: UseDefault,
		UnmappedUserBehavior:       UseRunningUser,
		UnmappedPicklistBehavior:   KeepOriginal,
		Objects:                    map[string]*ObjectConfig{},
	}
}

// UsesRunningUser reports whether any policy in the document resolves
// unmapped users to the running user.
func (c *Config) UsesRunningUser() bool {
	if c.UnmappedUserBehavior == UseRunningUser {
		return true
	}
	for _, oc := range c.Objects {
		if oc.UnmappedUserBehavior == UseRunningUser {
			return true
		}
	}
	return false
}

// Object returns the config for an object, creating an empty one on
// first use.
func (c *Config) Object(name string) *ObjectConfig {
	if oc, ok := c.Objects[name]; ok {
		return oc
	}
	oc := NewObjectConfig()
	c.Objects[name] = oc
	return oc
}

// Save writes the config as YAML. The written document round-trips
// through Load unchanged, empty collections included.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return &model.ConfigError{Path: path, Err: fmt.Errorf("failed to marshal: %w", err)}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &model.ConfigError{Path: path, Err: err}
	}
	return nil
}

// Load reads a mapping document. Any failure is a model.ConfigError and
// fatal before a restore begins.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigError{Path: path, Err: err}
	}
	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &model.ConfigError{Path: path, Err: fmt.Errorf("failed to parse: %w", err)}
	}
	cfg.normalize()
	if err := cfg.validatePolicies(); err != nil {
		return nil, &model.ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// normalize replaces nil collections with empty ones and fills unset
// policies with their defaults, so loaded configs compare equal to
// constructed ones.
func (c *Config) normalize() {
	if c.RecordTypeMappings == nil {
		c.RecordTypeMappings = map[string]string{}
	}
	if c.UserMappings == nil {
		c.UserMappings = map[string]string{}
	}
	if c.Objects == nil {
		c.Objects = map[string]*ObjectConfig{}
	}
	if c.UnmappedRecordTypeBehavior == "" {
		c.UnmappedRecordTypeBehavior = UseDefault
	}
	if c.UnmappedUserBehavior == "" {
		c.UnmappedUserBehavior = UseRunningUser
	}
	if c.UnmappedPicklistBehavior == "" {
		c.UnmappedPicklistBehavior = KeepOriginal
	}
	for _, oc := range c.Objects {
		if oc.FieldExclusions == nil {
			oc.FieldExclusions = []string{}
		}
		if oc.FieldRenames == nil {
			oc.FieldRenames = map[string]string{}
		}
		if oc.RecordTypeMappings == nil {
			oc.RecordTypeMappings = map[string]string{}
		}
		if oc.PicklistMappings == nil {
			oc.PicklistMappings = map[string]map[string]string{}
		}
		if oc.DefaultPicklistValues == nil {
			oc.DefaultPicklistValues = map[string]string{}
		}
		if oc.UserMappings == nil {
			oc.UserMappings = map[string]string{}
		}
		if oc.Transformations == nil {
			oc.Transformations = []ValueTransformation{}
		}
		for i := range oc.Transformations {
			if oc.Transformations[i].LookupTable == nil {
				oc.Transformations[i].LookupTable = map[string]string{}
			}
		}
	}
}

func (c *Config) validatePolicies() error {
	if !validBehavior(c.UnmappedRecordTypeBehavior, false) {
		return fmt.Errorf("invalid unmappedRecordTypeBehavior %q", c.UnmappedRecordTypeBehavior)
	}
	if !validBehavior(c.UnmappedUserBehavior, true) {
		return fmt.Errorf("invalid unmappedUserBehavior %q", c.UnmappedUserBehavior)
	}
	if !validBehavior(c.UnmappedPicklistBehavior, false) {
		return fmt.Errorf("invalid unmappedPicklistBehavior %q", c.UnmappedPicklistBehavior)
	}
	for name, oc := range c.Objects {
		if oc.UnmappedRecordTypeBehavior != "" && !validBehavior(oc.UnmappedRecordTypeBehavior, false) {
			return fmt.Errorf("object %s: invalid unmappedRecordTypeBehavior %q", name, oc.UnmappedRecordTypeBehavior)
		}
		if oc.UnmappedUserBehavior != "" && !validBehavior(oc.UnmappedUserBehavior, true) {
			return fmt.Errorf("object %s: invalid unmappedUserBehavior %q", name, oc.UnmappedUserBehavior)
		}
		if oc.UnmappedPicklistBehavior != "" && !validBehavior(oc.UnmappedPicklistBehavior, false) {
			return fmt.Errorf("object %s: invalid unmappedPicklistBehavior %q", name, oc.UnmappedPicklistBehavior)
		}
	}
	return nil
}

// Validate checks the config against comparison results: every
// picklistMappings key must be a field the comparison actually flagged,
// otherwise the mapping would silently rewrite clean data.
func (c *Config) Validate(comparisons map[string]*model.ObjectComparisonResult) error {
	var problems []string
	for objectName, oc := range c.Objects {
		comparison := comparisonFor(comparisons, objectName)
		mismatched := map[string]bool{}
		if comparison != nil {
			for _, f := range comparison.PicklistMismatchFields() {
				mismatched[strings.ToLower(f)] = true
			}
		}
		fields := make([]string, 0, len(oc.PicklistMappings))
		for f := range oc.PicklistMappings {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			if !mismatched[strings.ToLower(f)] {
				problems = append(problems,
					fmt.Sprintf("%s: picklist mapping for field %s, but the comparison found no mismatch there", objectName, f))
			}
		}
	}
	if len(problems) > 0 {
		return &model.ConfigError{Err: fmt.Errorf("%s", strings.Join(problems, "; "))}
	}
	return nil
}

func comparisonFor(comparisons map[string]*model.ObjectComparisonResult, objectName string) *model.ObjectComparisonResult {
	if r, ok := comparisons[objectName]; ok {
		return r
	}
	for name, r := range comparisons {
		if strings.EqualFold(name, objectName) {
			return r
		}
	}
	return nil
}
