package store

import "testing"

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(setupTestDB(t))
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Name != "Alice" {
		t.Errorf("name = %q, want %q", u.Name, "Alice")
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("alice@example.com", "Alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("ALICE@example.com", "Alice2"); err == nil {
		t.Fatal("expected error for duplicate email, got nil")
	}
}

func TestUserGetByEmailCaseInsensitive(t *testing.T) {
	us := setupUserTestDB(t)

	created, err := us.Create("alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	u, err := us.GetByEmail("Alice@Example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("got %+v, want user %d", u, created.ID)
	}
}

func TestUserGetNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByID(999)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil, got %+v", u)
	}
}

func TestUserGetOrCreate(t *testing.T) {
	us := setupUserTestDB(t)

	first, err := us.GetOrCreate("bob@example.com", "Bob")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	second, err := us.GetOrCreate("bob@example.com", "Robert")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %d != %d", first.ID, second.ID)
	}
	if second.Name != "Bob" {
		t.Errorf("name = %q, want %q", second.Name, "Bob")
	}
}
