package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/freightdocs/internal/model"
)

type TeamStore struct {
	db *sql.DB
}

func NewTeamStore(db *sql.DB) *TeamStore {
	return &TeamStore{db: db}
}

func scanTeam(scanner interface{ Scan(...any) error }) (*model.Team, error) {
	var t model.Team
	err := scanner.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTeamMember(scanner interface{ Scan(...any) error }) (*model.TeamMember, error) {
	var m model.TeamMember
	err := scanner.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const teamCols = `id, name, created_at, updated_at`
const teamMemberCols = `id, team_id, user_id, role, created_at, updated_at`

// CreateWithOwner creates a team and adds userID as its admin in one transaction.
func (s *TeamStore) CreateWithOwner(name string, userID int64) (*model.Team, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`INSERT INTO teams (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert team: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)`,
		id, userID, model.RoleAdmin,
	); err != nil {
		return nil, fmt.Errorf("add owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *TeamStore) Create(name string) (*model.Team, error) {
	result, err := s.db.Exec(`INSERT INTO teams (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert team: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TeamStore) GetByID(id int64) (*model.Team, error) {
	row := s.db.QueryRow(`SELECT `+teamCols+` FROM teams WHERE id = ?`, id)
	t, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

func (s *TeamStore) AddMember(teamID, userID int64, role string) (*model.TeamMember, error) {
	result, err := s.db.Exec(
		`INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)`,
		teamID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+teamMemberCols+` FROM team_members WHERE id = ?`, id)
	return scanTeamMember(row)
}

func (s *TeamStore) RemoveMember(teamID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM team_members WHERE team_id = ? AND user_id = ?`,
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *TeamStore) GetMember(teamID, userID int64) (*model.TeamMember, error) {
	row := s.db.QueryRow(
		`SELECT `+teamMemberCols+` FROM team_members WHERE team_id = ? AND user_id = ?`,
		teamID, userID,
	)
	m, err := scanTeamMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *TeamStore) ListMembers(teamID int64) ([]model.TeamMember, error) {
	rows, err := s.db.Query(
		`SELECT `+teamMemberCols+` FROM team_members WHERE team_id = ? ORDER BY created_at ASC, id ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.TeamMember
	for rows.Next() {
		m, err := scanTeamMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *TeamStore) ListTeamsForUser(userID int64) ([]model.Team, error) {
	rows, err := s.db.Query(
		`SELECT t.id, t.name, t.created_at, t.updated_at
		 FROM teams t
		 JOIN team_members tm ON t.id = tm.team_id
		 WHERE tm.user_id = ?
		 ORDER BY t.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list teams for user: %w", err)
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

func (s *TeamStore) UpdateMemberRole(teamID, userID int64, role string) (*model.TeamMember, error) {
	_, err := s.db.Exec(
		`UPDATE team_members SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE team_id = ? AND user_id = ?`,
		role, teamID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	return s.GetMember(teamID, userID)
}
