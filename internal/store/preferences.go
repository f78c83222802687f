package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/freightdocs/internal/model"
)

type PreferencesStore struct {
	db *sql.DB
}

func NewPreferencesStore(db *sql.DB) *PreferencesStore {
	return &PreferencesStore{db: db}
}

const preferencesCols = `id, email, email_opt_in, email_categories, created_at, updated_at`

func scanPreferences(scanner interface{ Scan(...any) error }) (*model.UserPreferences, error) {
	var p model.UserPreferences
	var optIn int
	var categories string
	if err := scanner.Scan(&p.ID, &p.Email, &optIn, &categories, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.EmailOptIn = optIn != 0
	if err := json.Unmarshal([]byte(categories), &p.EmailCategories); err != nil {
		return nil, fmt.Errorf("decode email_categories: %w", err)
	}
	if p.EmailCategories == nil {
		p.EmailCategories = map[string]bool{}
	}
	return &p, nil
}

// GetByEmail returns stored preferences, or nil when the address has none.
func (s *PreferencesStore) GetByEmail(email string) (*model.UserPreferences, error) {
	row := s.db.QueryRow(`SELECT `+preferencesCols+` FROM user_preferences WHERE email = ?`, email)
	p, err := scanPreferences(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// Unsubscribe records an opt-out. An empty category turns off all email for
// the address; otherwise only that category is disabled.
func (s *PreferencesStore) Unsubscribe(email, category string) (*model.UserPreferences, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	optIn := 1
	categories := map[string]bool{}

	var storedOptIn int
	var storedCategories string
	err = tx.QueryRow(`SELECT email_opt_in, email_categories FROM user_preferences WHERE email = ?`, email).
		Scan(&storedOptIn, &storedCategories)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("read preferences: %w", err)
	default:
		optIn = storedOptIn
		if err := json.Unmarshal([]byte(storedCategories), &categories); err != nil {
			return nil, fmt.Errorf("decode email_categories: %w", err)
		}
		if categories == nil {
			categories = map[string]bool{}
		}
	}

	if category == "" {
		optIn = 0
	} else {
		categories[category] = false
	}

	catJSON, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("encode email_categories: %w", err)
	}
	now := time.Now().UTC()

	if _, err := tx.Exec(
		`INSERT INTO user_preferences (email, email_opt_in, email_categories, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		     email_opt_in = excluded.email_opt_in,
		     email_categories = excluded.email_categories,
		     updated_at = excluded.updated_at`,
		email, optIn, string(catJSON), now, now,
	); err != nil {
		return nil, fmt.Errorf("upsert preferences: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByEmail(email)
}
