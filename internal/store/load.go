package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/freightdocs/internal/model"
)

type LoadStore struct {
	db *sql.DB
}

func NewLoadStore(db *sql.DB) *LoadStore {
	return &LoadStore{db: db}
}

func scanLoad(scanner interface{ Scan(...any) error }) (*model.Load, error) {
	var l model.Load
	err := scanner.Scan(&l.ID, &l.TeamID, &l.Reference, &l.Origin, &l.Destination, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const loadCols = `id, team_id, reference, origin, destination, status, created_at, updated_at`

func (s *LoadStore) Create(teamID int64, reference, origin, destination string) (*model.Load, error) {
	result, err := s.db.Exec(
		`INSERT INTO loads (team_id, reference, origin, destination) VALUES (?, ?, ?, ?)`,
		teamID, reference, origin, destination,
	)
	if err != nil {
		return nil, fmt.Errorf("insert load: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *LoadStore) GetByID(id int64) (*model.Load, error) {
	row := s.db.QueryRow(`SELECT `+loadCols+` FROM loads WHERE id = ?`, id)
	l, err := scanLoad(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get load: %w", err)
	}
	return l, nil
}

func (s *LoadStore) ListByTeam(teamID int64) ([]model.Load, error) {
	rows, err := s.db.Query(
		`SELECT `+loadCols+` FROM loads WHERE team_id = ? ORDER BY created_at DESC, id DESC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}
	defer rows.Close()

	var loads []model.Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, fmt.Errorf("scan load: %w", err)
		}
		loads = append(loads, *l)
	}
	return loads, rows.Err()
}

func (s *LoadStore) UpdateStatus(id int64, status string) (*model.Load, error) {
	_, err := s.db.Exec(`UPDATE loads SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, fmt.Errorf("update load status: %w", err)
	}
	return s.GetByID(id)
}

// MissingDocumentTypes returns the required document types for which the load
// has no classified or processed document yet, in RequiredDocTypes order.
func (s *LoadStore) MissingDocumentTypes(loadID int64) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT type FROM documents
		 WHERE load_id = ? AND type IS NOT NULL AND status IN (?, ?)`,
		loadID, model.DocStatusClassified, model.DocStatusProcessed,
	)
	if err != nil {
		return nil, fmt.Errorf("list load document types: %w", err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan document type: %w", err)
		}
		have[t] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	missing := []string{}
	for _, t := range model.RequiredDocTypes {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return missing, nil
}
