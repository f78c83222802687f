package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/freightdocs/internal/model"
)

// ErrAlreadyMember is returned by Accept when the user already belongs to the team.
var ErrAlreadyMember = errors.New("user is already a team member")

type InviteStore struct {
	db *sql.DB
}

func NewInviteStore(db *sql.DB) *InviteStore {
	return &InviteStore{db: db}
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.TeamInvite, error) {
	var inv model.TeamInvite
	var invitedBy sql.NullInt64

	err := scanner.Scan(
		&inv.ID, &inv.TeamID, &inv.Email, &inv.Role, &inv.Token,
		&invitedBy, &inv.ExpiresAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if invitedBy.Valid {
		inv.InvitedBy = &invitedBy.Int64
	}
	return &inv, nil
}

const inviteCols = `id, team_id, email, role, token, invited_by, expires_at, created_at`

// Create stores an invite. Earlier pending invites for the same team and email are replaced.
func (s *InviteStore) Create(teamID int64, email, role, token string, invitedBy *int64, expiresAt time.Time) (*model.TeamInvite, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM team_invites WHERE team_id = ? AND email = ?`, teamID, email); err != nil {
		return nil, fmt.Errorf("replace previous invites: %w", err)
	}

	var by sql.NullInt64
	if invitedBy != nil {
		by = sql.NullInt64{Int64: *invitedBy, Valid: true}
	}

	result, err := tx.Exec(
		`INSERT INTO team_invites (team_id, email, role, token, invited_by, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		teamID, email, role, token, by, expiresAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM team_invites WHERE id = ?`, id)
	return scanInvite(row)
}

// GetByToken returns the invite row for token regardless of expiry, or nil if absent.
func (s *InviteStore) GetByToken(token string) (*model.TeamInvite, error) {
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM team_invites WHERE token = ?`, token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by token: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) ListByTeam(teamID int64) ([]model.TeamInvite, error) {
	rows, err := s.db.Query(
		`SELECT `+inviteCols+` FROM team_invites WHERE team_id = ? ORDER BY created_at DESC, id DESC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var invites []model.TeamInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

// Accept adds userID to the invite's team with the invited role and deletes the
// invite, making the token single-use. If the user is already a member the invite
// is still consumed and ErrAlreadyMember is returned.
func (s *InviteStore) Accept(inv *model.TeamInvite, userID int64) (*model.TeamMember, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM team_invites WHERE id = ?`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("delete invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}

	var existing int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM team_members WHERE team_id = ? AND user_id = ?`,
		inv.TeamID, userID,
	).Scan(&existing); err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if existing > 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return nil, ErrAlreadyMember
	}

	result, err := tx.Exec(
		`INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)`,
		inv.TeamID, userID, inv.Role,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	member, err := scanTeamMember(tx.QueryRow(`SELECT `+teamMemberCols+` FROM team_members WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("read member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return member, nil
}

func (s *InviteStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM team_invites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}

func (s *InviteStore) DeleteExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM team_invites WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired invites: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
