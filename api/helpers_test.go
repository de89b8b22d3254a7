package api_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	dbfs "github.com/rtclab/traineetracker/db"
	dbpkg "github.com/rtclab/traineetracker/internal/db"
	"github.com/rtclab/traineetracker/internal/models"
	sqlite "github.com/rtclab/traineetracker/internal/repository/sqlite"
)

// newTestRepo opens a migrated private in-memory database for one test.
func newTestRepo(t *testing.T) (*sqlite.SQLiteRepo, *dbpkg.DB) {
	t.Helper()
	ctx := context.Background()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	d, err := dbpkg.New(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		d.Close()
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return sqlite.New(d, nil), d
}

// newStaffUser creates an active staff user with the bulk sign-off
// capability and returns the stored record.
func newStaffUser(t *testing.T, repo *sqlite.SQLiteRepo, username, passwordHash string) *models.User {
	t.Helper()
	ctx := context.Background()
	id, err := repo.CreateUser(ctx, &models.User{Username: username, PasswordHash: passwordHash, IsStaff: true, IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := repo.UpsertStaffProfile(ctx, &models.StaffProfile{UserID: id, Initials: "TS", CanSignOff: true}); err != nil {
		t.Fatalf("UpsertStaffProfile: %v", err)
	}
	u, err := repo.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	return u
}
