package graph_test

import (
	"context"
	"testing"

	"org-restore/internal/graph"
	"org-restore/internal/model"
)

// fakeDescriber serves canned describe metadata.
type fakeDescriber struct {
	objects map[string][]model.FieldInfo
	calls   int
}

func (f *fakeDescriber) Describe(ctx context.Context, objectName string) (*model.ObjectMetadata, error) {
	f.calls++
	return &model.ObjectMetadata{
		ObjectName: objectName,
		Fields:     f.objects[objectName],
	}, nil
}

func ref(name, to string) model.FieldInfo {
	return model.FieldInfo{Name: name, Type: "reference", ReferenceTo: []string{to}}
}

func TestOrderForRestore_Chain(t *testing.T) {
	// Case -> Contact -> Account
	api := &fakeDescriber{objects: map[string][]model.FieldInfo{
		"Account": {},
		"Contact": {ref("AccountId", "Account")},
		"Case":    {ref("ContactId", "Contact"), ref("AccountId", "Account")},
	}}
	orderer := graph.NewOrderer(graph.NewRelationshipManager(api, nil), nil)

	order, err := orderer.OrderForRestore(context.Background(), []string{"Case", "Contact", "Account"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Account", "Contact", "Case"}
	for i, name := range want {
		if order.Sequence[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, order.Sequence[i])
		}
	}
	if len(order.DeferredEdges) != 0 {
		t.Errorf("expected no deferred edges, got %v", order.DeferredEdges)
	}
}

func TestOrderForRestore_AlphabeticalTieBreak(t *testing.T) {
	api := &fakeDescriber{objects: map[string][]model.FieldInfo{
		"Zebra": {}, "Apple": {}, "Mango": {},
	}}
	orderer := graph.NewOrderer(graph.NewRelationshipManager(api, nil), nil)

	order, err := orderer.OrderForRestore(context.Background(), []string{"Zebra", "Mango", "Apple"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Apple", "Mango", "Zebra"}
	for i, name := range want {
		if order.Sequence[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, order.Sequence[i])
		}
	}
}

func TestOrderForRestore_TwoCycle(t *testing.T) {
	// Department -> Employee -> Department
	api := &fakeDescriber{objects: map[string][]model.FieldInfo{
		"Department": {ref("ManagerId", "Employee")},
		"Employee":   {ref("DepartmentId", "Department")},
	}}
	orderer := graph.NewOrderer(graph.NewRelationshipManager(api, nil), nil)

	order, err := orderer.OrderForRestore(context.Background(), []string{"Employee", "Department"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order.Sequence) != 2 {
		t.Fatalf("expected both objects in sequence, got %v", order.Sequence)
	}
	if len(order.DeferredEdges) != 1 {
		t.Fatalf("expected exactly 1 deferred edge for a 2-cycle, got %v", order.DeferredEdges)
	}
	// The deferred edge must point at the object placed first.
	if order.DeferredEdges[0].To != order.Sequence[0] {
		t.Errorf("deferred edge %v does not match first placement %s",
			order.DeferredEdges[0], order.Sequence[0])
	}
}

func TestOrderForRestore_SelfReferenceIgnored(t *testing.T) {
	api := &fakeDescriber{objects: map[string][]model.FieldInfo{
		"Contact": {ref("ReportsToId", "Contact")},
	}}
	orderer := graph.NewOrderer(graph.NewRelationshipManager(api, nil), nil)

	order, err := orderer.OrderForRestore(context.Background(), []string{"Contact"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order.DeferredEdges) != 0 {
		t.Errorf("self-reference should not produce deferred edges, got %v", order.DeferredEdges)
	}
}

func TestOrderForRestore_OutOfSetReferencesIgnored(t *testing.T) {
	api := &fakeDescriber{objects: map[string][]model.FieldInfo{
		"Contact": {ref("AccountId", "Account")},
	}}
	orderer := graph.NewOrderer(graph.NewRelationshipManager(api, nil), nil)

	order, err := orderer.OrderForRestore(context.Background(), []string{"Contact"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order.Sequence) != 1 || order.Sequence[0] != "Contact" {
		t.Errorf("expected [Contact], got %v", order.Sequence)
	}
}

func TestValidateOrder(t *testing.T) {
	api := &fakeDescriber{objects: map[string][]model.FieldInfo{
		"Account": {},
		"Contact": {ref("AccountId", "Account")},
	}}
	orderer := graph.NewOrderer(graph.NewRelationshipManager(api, nil), nil)

	violations, err := orderer.ValidateOrder(context.Background(), []string{"Contact", "Account"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %v", violations)
	}
	if violations[0].From != "Account" || violations[0].To != "Contact" {
		t.Errorf("unexpected violation %v", violations[0])
	}

	violations, err = orderer.ValidateOrder(context.Background(), []string{"Account", "Contact"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
}

func TestReferenceFieldsCached(t *testing.T) {
	api := &fakeDescriber{objects: map[string][]model.FieldInfo{
		"Account": {ref("ParentId", "Account")},
	}}
	rels := graph.NewRelationshipManager(api, nil)

	for i := 0; i < 3; i++ {
		refs, err := rels.ReferenceFields(context.Background(), "Account")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if refs["ParentId"] != "Account" {
			t.Errorf("expected ParentId -> Account, got %v", refs)
		}
	}
	if api.calls != 1 {
		t.Errorf("expected 1 describe call, got %d", api.calls)
	}
}
