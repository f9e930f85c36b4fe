package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

func TestFilterUsers(t *testing.T) {
	repo := NewUserRepository(NewDB())
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	mustCreateUser(t, repo, user.User{FirstName: "Zara", LastName: "One", Email: "zara@test.cd", Role: user.RoleStudent, IsApproved: true, CreatedAt: base})
	mustCreateUser(t, repo, user.User{FirstName: "Abel", LastName: "Two", Email: "abel@test.cd", Role: user.RoleStudent, IsApproved: true, CreatedAt: base.Add(time.Minute)})
	mustCreateUser(t, repo, user.User{FirstName: "Tess", LastName: "Owner", Email: "tess@test.cd", Role: user.RoleTeacher, IsApproved: true, CreatedAt: base.Add(2 * time.Minute)})
	mustCreateUser(t, repo, user.User{FirstName: "Uma", LastName: "Pending", Email: "uma@test.cd", Role: user.RoleTeacher, CreatedAt: base.Add(3 * time.Minute)})

	t.Run("role filter", func(t *testing.T) {
		users, err := repo.FilterUsers(ctx, user.QueryFilter{Role: user.RoleTeacher}, nil)
		if err != nil {
			t.Fatalf("FilterUsers() failed: %v", err)
		}
		if len(users) != 2 {
			t.Errorf("got %d teachers; want 2", len(users))
		}
	})

	t.Run("role and approval filter", func(t *testing.T) {
		approved := false
		users, err := repo.FilterUsers(ctx, user.QueryFilter{Role: user.RoleTeacher, IsApproved: &approved}, nil)
		if err != nil {
			t.Fatalf("FilterUsers() failed: %v", err)
		}
		if len(users) != 1 || users[0].FirstName != "Uma" {
			t.Errorf("users = %+v", users)
		}
	})

	t.Run("default ordering is oldest-first", func(t *testing.T) {
		users, _ := repo.FilterUsers(ctx, user.QueryFilter{}, nil)
		if len(users) != 4 || users[0].FirstName != "Zara" || users[3].FirstName != "Uma" {
			t.Errorf("users = %+v", users)
		}
	})

	t.Run("explicit ordering", func(t *testing.T) {
		users, _ := repo.FilterUsers(ctx, user.QueryFilter{}, []core.DBOrdering{{Field: "first_name", Ascending: true}})
		if users[0].FirstName != "Abel" {
			t.Errorf("ascending order off: %+v", users)
		}
		users, _ = repo.FilterUsers(ctx, user.QueryFilter{}, []core.DBOrdering{{Field: "first_name"}})
		if users[0].FirstName != "Zara" {
			t.Errorf("descending order off: %+v", users)
		}
	})

	t.Run("multi-key ordering", func(t *testing.T) {
		// two teachers share the role key; the email breaks the tie
		users, _ := repo.FilterUsers(ctx, user.QueryFilter{Role: user.RoleTeacher}, []core.DBOrdering{
			{Field: "role", Ascending: true},
			{Field: "email", Ascending: true},
		})
		if len(users) != 2 || users[0].Email != "tess@test.cd" {
			t.Errorf("multi-key order off: %+v", users)
		}
	})
}

func TestCreateUser_emailUniqueness(t *testing.T) {
	repo := NewUserRepository(NewDB())
	ctx := context.Background()

	usr := mustCreateUser(t, repo, user.User{FirstName: "A", LastName: "B", Email: "a@test.cd", Role: user.RoleStudent})
	if usr.ID == "" {
		t.Fatal("no ID assigned")
	}

	if _, err := repo.CreateUser(ctx, user.User{FirstName: "C", LastName: "D", Email: "a@test.cd", Role: user.RoleStudent}); err != user.ErrEmailExists {
		t.Errorf("CreateUser() error = %v, want ErrEmailExists", err)
	}

	if err := repo.CheckEmailUniqueness(ctx, "a@test.cd"); err != user.ErrEmailExists {
		t.Errorf("CheckEmailUniqueness() error = %v, want ErrEmailExists", err)
	}
	// the owner themselves may keep their email
	if err := repo.CheckEmailUniqueness(ctx, "a@test.cd", usr); err != nil {
		t.Errorf("CheckEmailUniqueness() with exclusion failed: %v", err)
	}
}

func mustCreateUser(t *testing.T, repo *userRepository, usr user.User) user.User {
	t.Helper()

	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
