package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/freightdocs/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedTeam creates a user and a team owned by that user.
func seedTeam(t *testing.T, db *sql.DB, email string) (teamID, userID int64) {
	t.Helper()
	u, err := NewUserStore(db).Create(email, "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	team, err := NewTeamStore(db).CreateWithOwner("Acme Freight", u.ID)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	return team.ID, u.ID
}
