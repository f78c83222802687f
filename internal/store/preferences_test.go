package store

import (
	"testing"

	"github.com/dukerupert/freightdocs/internal/model"
)

func TestPreferencesUnsubscribeCategory(t *testing.T) {
	ps := NewPreferencesStore(setupTestDB(t))

	p, err := ps.GetByEmail("a@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p != nil {
		t.Fatalf("expected no preferences, got %+v", p)
	}
	if !p.Allows(model.EmailCategoryMissingDocuments) {
		t.Error("absent preferences should allow email")
	}

	p, err = ps.Unsubscribe("a@example.com", model.EmailCategoryMissingDocuments)
	if err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if p.Allows(model.EmailCategoryMissingDocuments) {
		t.Error("category should be disabled")
	}
	if !p.Allows(model.EmailCategoryLoadUpdates) {
		t.Error("other categories should stay enabled")
	}
}

func TestPreferencesUnsubscribeAll(t *testing.T) {
	ps := NewPreferencesStore(setupTestDB(t))

	if _, err := ps.Unsubscribe("a@example.com", model.EmailCategoryLoadUpdates); err != nil {
		t.Fatalf("unsubscribe category: %v", err)
	}
	p, err := ps.Unsubscribe("A@example.com", "")
	if err != nil {
		t.Fatalf("unsubscribe all: %v", err)
	}
	if p.EmailOptIn {
		t.Error("email_opt_in should be false")
	}
	if p.EmailCategories[model.EmailCategoryLoadUpdates] {
		t.Error("earlier category opt-out should be kept")
	}
	if p.Allows(model.EmailCategoryMissingDocuments) {
		t.Error("global opt-out should block every category")
	}
}
