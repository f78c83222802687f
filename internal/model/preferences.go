package model

import "time"

// Email categories a recipient can opt out of individually.
const (
	EmailCategoryMissingDocuments = "missing_documents"
	EmailCategoryLoadUpdates      = "load_updates"
)

var EmailCategoryNames = map[string]string{
	EmailCategoryMissingDocuments: "missing document reminders",
	EmailCategoryLoadUpdates:      "load status updates",
}

type UserPreferences struct {
	ID              int64           `json:"id"`
	Email           string          `json:"email"`
	EmailOptIn      bool            `json:"email_opt_in"`
	EmailCategories map[string]bool `json:"email_categories"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Allows reports whether email in the given category may be sent.
// Categories absent from the map default to enabled.
func (p *UserPreferences) Allows(category string) bool {
	if p == nil {
		return true
	}
	if !p.EmailOptIn {
		return false
	}
	if enabled, ok := p.EmailCategories[category]; ok {
		return enabled
	}
	return true
}
