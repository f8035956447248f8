package graph

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"org-restore/internal/model"
)

// Describer is the slice of the target client this package needs.
type Describer interface {
	Describe(ctx context.Context, objectName string) (*model.ObjectMetadata, error)
}

// RelationshipManager resolves the lookup/master-detail structure of
// target objects from cached describe metadata.
type RelationshipManager struct {
	api    Describer
	logger *zap.Logger

	cache map[string]map[string]string
}

// NewRelationshipManager creates a manager over the given describer.
func NewRelationshipManager(api Describer, logger *zap.Logger) *RelationshipManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipManager{
		api:    api,
		logger: logger,
		cache:  make(map[string]map[string]string),
	}
}

// ReferenceFields returns the object's reference fields, keyed by field
// name with the referenced object as value. Polymorphic lookups resolve
// to their first target.
// Self-references are included; ordering decides what to do with them.
func (m *RelationshipManager) ReferenceFields(ctx context.Context, objectName string) (map[string]string, error) {
	key := strings.ToLower(objectName)
	if refs, ok := m.cache[key]; ok {
		return refs, nil
	}

	meta, err := m.api.Describe(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", objectName, err)
	}

	refs := make(map[string]string)
	for _, f := range meta.ReferenceFields() {
		refs[f.Name] = f.ReferenceTo[0]
		if len(f.ReferenceTo) > 1 {
			m.logger.Debug("polymorphic lookup resolved to first target",
				zap.String("object", objectName),
				zap.String("field", f.Name),
				zap.Strings("targets", f.ReferenceTo))
		}
	}

	m.cache[key] = refs
	return refs, nil
}
