package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/freightdocs/internal/model"
)

func TestInviteAccept(t *testing.T) {
	db := setupTestDB(t)
	teamID, ownerID := seedTeam(t, db, "owner@example.com")
	is := NewInviteStore(db)

	inv, err := is.Create(teamID, "new@example.com", model.RoleAdmin, "tok-1", &ownerID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	u, err := NewUserStore(db).Create("new@example.com", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	m, err := is.Accept(inv, u.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", m.Role, model.RoleAdmin)
	}

	got, err := is.GetByToken("tok-1")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("invite should be deleted after acceptance")
	}

	if _, err := is.Accept(inv, u.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second accept err = %v, want sql.ErrNoRows", err)
	}
}

func TestInviteAcceptAlreadyMember(t *testing.T) {
	db := setupTestDB(t)
	teamID, ownerID := seedTeam(t, db, "owner@example.com")
	is := NewInviteStore(db)

	inv, err := is.Create(teamID, "owner@example.com", model.RoleUser, "tok-2", &ownerID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := is.Accept(inv, ownerID); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("err = %v, want ErrAlreadyMember", err)
	}

	got, _ := is.GetByToken("tok-2")
	if got != nil {
		t.Error("invite should be consumed even when already a member")
	}
	m, _ := NewTeamStore(db).GetMember(teamID, ownerID)
	if m.Role != model.RoleAdmin {
		t.Errorf("existing role changed to %q", m.Role)
	}
}

func TestInviteCreateReplacesPrevious(t *testing.T) {
	db := setupTestDB(t)
	teamID, _ := seedTeam(t, db, "owner@example.com")
	is := NewInviteStore(db)

	if _, err := is.Create(teamID, "x@example.com", model.RoleUser, "old", nil, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := is.Create(teamID, "X@example.com", model.RoleManager, "new", nil, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create invite: %v", err)
	}

	invites, err := is.ListByTeam(teamID)
	if err != nil {
		t.Fatalf("list invites: %v", err)
	}
	if len(invites) != 1 || invites[0].Token != "new" {
		t.Errorf("invites = %+v, want only the newest", invites)
	}
}

func TestInviteDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	teamID, _ := seedTeam(t, db, "owner@example.com")
	is := NewInviteStore(db)

	now := time.Now()
	is.Create(teamID, "a@example.com", model.RoleUser, "expired", nil, now.Add(-time.Minute))
	is.Create(teamID, "b@example.com", model.RoleUser, "live", nil, now.Add(time.Hour))

	n, err := is.DeleteExpired(now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if inv, _ := is.GetByToken("live"); inv == nil {
		t.Error("live invite should survive")
	}
}
