package sync

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	dbfs "github.com/rtclab/traineetracker/db"
	dbpkg "github.com/rtclab/traineetracker/internal/db"
	"github.com/rtclab/traineetracker/internal/models"
	sqlite "github.com/rtclab/traineetracker/internal/repository/sqlite"
	"github.com/rtclab/traineetracker/pkg/repository"
)

// spyAdvanced counts mirror writes so tests can assert the diff check keeps
// unchanged saves write-free.
type spyAdvanced struct {
	repository.AdvancedRepo
	creates int
	updates int
}

func (s *spyAdvanced) CreateAdvancedStaff(ctx context.Context, staff *models.AdvancedStaff) (int64, error) {
	s.creates++
	return s.AdvancedRepo.CreateAdvancedStaff(ctx, staff)
}

func (s *spyAdvanced) UpdateAdvancedStaff(ctx context.Context, staff *models.AdvancedStaff) error {
	s.updates++
	return s.AdvancedRepo.UpdateAdvancedStaff(ctx, staff)
}

func setupSync(t *testing.T) (*Synchronizer, *sqlite.SQLiteRepo, *spyAdvanced, func()) {
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
	repo := sqlite.New(d, nil)
	spy := &spyAdvanced{AdvancedRepo: repo}
	s := NewSynchronizer(repo, spy, repo, nil)
	s.SetEnabled(true)
	return s, repo, spy, func() { d.Close() }
}

func mustCohort(t *testing.T, repo *sqlite.SQLiteRepo) *models.Cohort {
	t.Helper()
	c := &models.Cohort{Name: "Fall 2025", Year: 2025, Semester: models.SemesterFall}
	if _, err := repo.CreateCohort(context.Background(), c); err != nil {
		t.Fatalf("CreateCohort: %v", err)
	}
	return c
}

func TestTraineeSavedCreatesMirror(t *testing.T) {
	s, repo, _, cleanup := setupSync(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCohort(t, repo)
	trainee := &models.Trainee{BadgeNumber: "#2501", FirstName: "Ada", LastName: "Lovelace", CohortID: cohort.ID, IsActive: true}
	if _, err := repo.CreateTrainee(ctx, trainee); err != nil {
		t.Fatalf("CreateTrainee: %v", err)
	}

	if err := s.TraineeSaved(ctx, trainee); err != nil {
		t.Fatalf("TraineeSaved: %v", err)
	}

	// mirror record carries the bare badge and the trainee role
	staff, err := repo.GetAdvancedStaffByBadge(ctx, "2501")
	if err != nil || staff == nil {
		t.Fatalf("expected mirrored staff, got %#v, %v", staff, err)
	}
	if staff.BadgeNumber != "2501" {
		t.Fatalf("expected bare badge, got %q", staff.BadgeNumber)
	}
	if staff.Role != models.RoleTrainee {
		t.Fatalf("expected role %q, got %q", models.RoleTrainee, staff.Role)
	}
	if staff.FirstName != "Ada" || staff.LastName != "Lovelace" || !staff.IsActive {
		t.Fatalf("mirror fields differ: %#v", staff)
	}
}

func TestTraineeSavedUpdatesOnlyOnChange(t *testing.T) {
	s, repo, spy, cleanup := setupSync(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCohort(t, repo)
	trainee := &models.Trainee{BadgeNumber: "#2501", FirstName: "Ada", LastName: "Lovelace", CohortID: cohort.ID, IsActive: true}
	if _, err := repo.CreateTrainee(ctx, trainee); err != nil {
		t.Fatalf("CreateTrainee: %v", err)
	}
	if err := s.TraineeSaved(ctx, trainee); err != nil {
		t.Fatalf("TraineeSaved: %v", err)
	}
	if spy.creates != 1 {
		t.Fatalf("expected 1 mirror create, got %d", spy.creates)
	}

	// an unchanged save writes nothing
	if err := s.TraineeSaved(ctx, trainee); err != nil {
		t.Fatalf("TraineeSaved: %v", err)
	}
	if spy.updates != 0 {
		t.Fatalf("unchanged save wrote %d updates", spy.updates)
	}

	// a changed save propagates
	trainee.LastName = "King"
	trainee.IsActive = false
	if err := s.TraineeSaved(ctx, trainee); err != nil {
		t.Fatalf("TraineeSaved: %v", err)
	}
	if spy.updates != 1 {
		t.Fatalf("expected 1 mirror update, got %d", spy.updates)
	}
	staff, err := repo.GetAdvancedStaffByBadge(ctx, "2501")
	if err != nil || staff == nil {
		t.Fatalf("GetAdvancedStaffByBadge: %#v, %v", staff, err)
	}
	if staff.LastName != "King" || staff.IsActive {
		t.Fatalf("update not mirrored: %#v", staff)
	}
}

func TestAdvancedStaffSavedCreatesTraineeInCurrentCohort(t *testing.T) {
	s, repo, _, cleanup := setupSync(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCohort(t, repo)
	s.now = func() time.Time { return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC) }

	staff := &models.AdvancedStaff{BadgeNumber: "2601", FirstName: "Grace", LastName: "Hopper", Role: models.RoleStaff, IsActive: true}
	if _, err := repo.CreateAdvancedStaff(ctx, staff); err != nil {
		t.Fatalf("CreateAdvancedStaff: %v", err)
	}
	if err := s.AdvancedStaffSaved(ctx, staff); err != nil {
		t.Fatalf("AdvancedStaffSaved: %v", err)
	}

	trainee, err := repo.GetTraineeByBadge(ctx, "#2601")
	if err != nil || trainee == nil {
		t.Fatalf("expected mirrored trainee, got %#v, %v", trainee, err)
	}
	if trainee.CohortID != cohort.ID {
		t.Fatalf("expected current cohort %d, got %d", cohort.ID, trainee.CohortID)
	}
	if trainee.FirstName != "Grace" || trainee.LastName != "Hopper" || !trainee.IsActive {
		t.Fatalf("mirror fields differ: %#v", trainee)
	}
}

func TestAdvancedStaffSavedSkipsWithoutCohort(t *testing.T) {
	s, repo, _, cleanup := setupSync(t)
	defer cleanup()
	ctx := context.Background()

	staff := &models.AdvancedStaff{BadgeNumber: "2601", FirstName: "Grace", LastName: "Hopper", Role: models.RoleStaff, IsActive: true}
	if _, err := repo.CreateAdvancedStaff(ctx, staff); err != nil {
		t.Fatalf("CreateAdvancedStaff: %v", err)
	}

	// no cohort exists: the mirror is skipped, not failed
	if err := s.AdvancedStaffSaved(ctx, staff); err != nil {
		t.Fatalf("AdvancedStaffSaved: %v", err)
	}
	trainee, err := repo.GetTraineeByBadge(ctx, "#2601")
	if err != nil {
		t.Fatalf("GetTraineeByBadge: %v", err)
	}
	if trainee != nil {
		t.Fatalf("expected no mirror without a cohort, got %#v", trainee)
	}
}

func TestSyncDisabledByDefault(t *testing.T) {
	s, repo, _, cleanup := setupSync(t)
	defer cleanup()
	ctx := context.Background()
	s.SetEnabled(false)

	cohort := mustCohort(t, repo)
	trainee := &models.Trainee{BadgeNumber: "#2501", FirstName: "Ada", LastName: "Lovelace", CohortID: cohort.ID, IsActive: true}
	if _, err := repo.CreateTrainee(ctx, trainee); err != nil {
		t.Fatalf("CreateTrainee: %v", err)
	}
	if err := s.TraineeSaved(ctx, trainee); err != nil {
		t.Fatalf("TraineeSaved: %v", err)
	}
	staff, err := repo.GetAdvancedStaffByBadge(ctx, "2501")
	if err != nil {
		t.Fatalf("GetAdvancedStaffByBadge: %v", err)
	}
	if staff != nil {
		t.Fatalf("disabled synchronizer still mirrored: %#v", staff)
	}

	fresh := NewSynchronizer(repo, repo, repo, nil)
	if fresh.Enabled() {
		t.Fatalf("new synchronizer must start disabled")
	}
}

func TestSyncOperationDoesNotReenter(t *testing.T) {
	s, repo, spy, cleanup := setupSync(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCohort(t, repo)
	trainee := &models.Trainee{BadgeNumber: "#2501", FirstName: "Ada", LastName: "Lovelace", CohortID: cohort.ID, IsActive: true}
	if _, err := repo.CreateTrainee(ctx, trainee); err != nil {
		t.Fatalf("CreateTrainee: %v", err)
	}

	// a context already tagged with an operation token is a no-op
	tagged, _ := withOpToken(ctx)
	if err := s.TraineeSaved(tagged, trainee); err != nil {
		t.Fatalf("TraineeSaved: %v", err)
	}
	if spy.creates != 0 || spy.updates != 0 {
		t.Fatalf("re-entrant save still wrote: %d creates, %d updates", spy.creates, spy.updates)
	}

	// a full round trip settles in one pass in each direction
	if err := s.TraineeSaved(ctx, trainee); err != nil {
		t.Fatalf("TraineeSaved: %v", err)
	}
	staff, err := repo.GetAdvancedStaffByBadge(ctx, "2501")
	if err != nil || staff == nil {
		t.Fatalf("GetAdvancedStaffByBadge: %#v, %v", staff, err)
	}
	if err := s.AdvancedStaffSaved(ctx, staff); err != nil {
		t.Fatalf("AdvancedStaffSaved: %v", err)
	}
	if spy.creates != 1 {
		t.Fatalf("round trip created %d mirrors, want 1", spy.creates)
	}
}
