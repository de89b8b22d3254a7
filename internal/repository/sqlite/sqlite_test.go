package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	dbfs "github.com/rtclab/traineetracker/db"
	dbpkg "github.com/rtclab/traineetracker/internal/db"
	"github.com/rtclab/traineetracker/internal/models"
	sqlite "github.com/rtclab/traineetracker/internal/repository/sqlite"
)

// setupRepo opens a private in-memory database, applies the embedded
// migrations and seed data, and returns a ready repository. Each test gets
// its own database name so state never leaks between tests.
func setupRepo(t *testing.T) (*sqlite.SQLiteRepo, func()) {
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
	return repo, func() { d.Close() }
}

func mustCreateCohort(t *testing.T, repo *sqlite.SQLiteRepo, name string, year int, semester string) *models.Cohort {
	t.Helper()
	c := &models.Cohort{Name: name, Year: year, Semester: semester}
	id, err := repo.CreateCohort(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCohort(%s): %v", name, err)
	}
	c.ID = id
	return c
}

func mustCreateTrainee(t *testing.T, repo *sqlite.SQLiteRepo, badge string, cohortID int64) *models.Trainee {
	t.Helper()
	tr := &models.Trainee{BadgeNumber: badge, FirstName: "Pat", LastName: "Doe", CohortID: cohortID, IsActive: true}
	id, err := repo.CreateTrainee(context.Background(), tr)
	if err != nil {
		t.Fatalf("CreateTrainee(%s): %v", badge, err)
	}
	tr.ID = id
	return tr
}

func TestCohortCRUDAndSemesterOrder(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := repo.CreateCohort(ctx, nil); err == nil {
		t.Fatalf("expected error when creating nil cohort")
	}

	spring := mustCreateCohort(t, repo, "Spring 2025", 2025, models.SemesterSpring)
	fall := mustCreateCohort(t, repo, "Fall 2025", 2025, models.SemesterFall)

	got, err := repo.GetCohortByID(ctx, spring.ID)
	if err != nil {
		t.Fatalf("GetCohortByID: %v", err)
	}
	if got.SemesterOrder != 1 {
		t.Fatalf("expected Spring semester_order 1, got %d", got.SemesterOrder)
	}
	got, err = repo.GetCohortByID(ctx, fall.ID)
	if err != nil {
		t.Fatalf("GetCohortByID: %v", err)
	}
	if got.SemesterOrder != 2 {
		t.Fatalf("expected Fall semester_order 2, got %d", got.SemesterOrder)
	}

	// semester order is recomputed on update, never trusted from the caller
	got.Semester = models.SemesterSpring
	got.SemesterOrder = 99
	if err := repo.UpdateCohort(ctx, got); err != nil {
		t.Fatalf("UpdateCohort: %v", err)
	}
	got, err = repo.GetCohortByID(ctx, fall.ID)
	if err != nil {
		t.Fatalf("GetCohortByID: %v", err)
	}
	if got.SemesterOrder != 1 {
		t.Fatalf("expected recomputed semester_order 1, got %d", got.SemesterOrder)
	}

	byName, err := repo.GetCohortByName(ctx, "Spring 2025")
	if err != nil {
		t.Fatalf("GetCohortByName: %v", err)
	}
	if byName == nil || byName.ID != spring.ID {
		t.Fatalf("GetCohortByName returned %#v", byName)
	}
	missing, err := repo.GetCohortByName(ctx, "Winter 1999")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing cohort, got %#v, %v", missing, err)
	}
}

func TestCurrentCohortResolution(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	// empty registry resolves to nothing
	c, err := repo.CurrentCohort(ctx, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CurrentCohort: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil for empty registry, got %#v", c)
	}

	spring24 := mustCreateCohort(t, repo, "Spring 2024", 2024, models.SemesterSpring)
	spring25 := mustCreateCohort(t, repo, "Spring 2025", 2025, models.SemesterSpring)
	fall25 := mustCreateCohort(t, repo, "Fall 2025", 2025, models.SemesterFall)

	// date-range match
	c, err = repo.CurrentCohort(ctx, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CurrentCohort: %v", err)
	}
	if c == nil || c.ID != spring25.ID {
		t.Fatalf("expected Spring 2025, got %#v", c)
	}
	c, err = repo.CurrentCohort(ctx, time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CurrentCohort: %v", err)
	}
	if c == nil || c.ID != fall25.ID {
		t.Fatalf("expected Fall 2025, got %#v", c)
	}

	// no range matches: newest cohort wins
	c, err = repo.CurrentCohort(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CurrentCohort: %v", err)
	}
	if c == nil || c.ID != fall25.ID {
		t.Fatalf("expected newest cohort Fall 2025, got %#v", c)
	}

	// manual override beats the date range
	spring24.IsCurrentOverride = true
	if err := repo.UpdateCohort(ctx, spring24); err != nil {
		t.Fatalf("UpdateCohort: %v", err)
	}
	c, err = repo.CurrentCohort(ctx, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CurrentCohort: %v", err)
	}
	if c == nil || c.ID != spring24.ID {
		t.Fatalf("expected overridden Spring 2024, got %#v", c)
	}
}

func TestDeleteCohortRefusesWhenTraineesExist(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCreateCohort(t, repo, "Fall 2025", 2025, models.SemesterFall)
	mustCreateTrainee(t, repo, "#2501", cohort.ID)

	err := repo.DeleteCohort(ctx, cohort.ID)
	if err != sqlite.ErrCohortHasTrainees {
		t.Fatalf("expected ErrCohortHasTrainees, got %v", err)
	}

	empty := mustCreateCohort(t, repo, "Spring 2026", 2026, models.SemesterSpring)
	if err := repo.DeleteCohort(ctx, empty.ID); err != nil {
		t.Fatalf("DeleteCohort(empty): %v", err)
	}
	got, err := repo.GetCohortByID(ctx, empty.ID)
	if err != nil || got != nil {
		t.Fatalf("expected cohort gone, got %#v, %v", got, err)
	}
}

func TestDuplicateWritesRejected(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCreateCohort(t, repo, "Fall 2025", 2025, "Fall")

	// cohort name and (year, semester) are both unique
	if _, err := repo.CreateCohort(ctx, &models.Cohort{Name: "Fall 2025", Year: 2026, Semester: "Fall"}); !errors.Is(err, sqlite.ErrDuplicate) {
		t.Fatalf("duplicate cohort name: want ErrDuplicate, got %v", err)
	}
	if _, err := repo.CreateCohort(ctx, &models.Cohort{Name: "Autumn 2025", Year: 2025, Semester: "Fall"}); !errors.Is(err, sqlite.ErrDuplicate) {
		t.Fatalf("duplicate (year, semester): want ErrDuplicate, got %v", err)
	}

	// an update colliding with another cohort is rejected the same way
	other := mustCreateCohort(t, repo, "Spring 2026", 2026, "Spring")
	other.Name = "Fall 2025"
	if err := repo.UpdateCohort(ctx, other); !errors.Is(err, sqlite.ErrDuplicate) {
		t.Fatalf("update onto taken name: want ErrDuplicate, got %v", err)
	}

	// trainee badges collide after normalization too
	mustCreateTrainee(t, repo, "#2501", cohort.ID)
	if _, err := repo.CreateTrainee(ctx, &models.Trainee{BadgeNumber: "2501", FirstName: "Ada", LastName: "Lovelace", CohortID: cohort.ID, IsActive: true}); !errors.Is(err, sqlite.ErrDuplicate) {
		t.Fatalf("duplicate trainee badge: want ErrDuplicate, got %v", err)
	}

	if _, err := repo.CreateAdvancedStaff(ctx, &models.AdvancedStaff{BadgeNumber: "3001", FirstName: "Grace", LastName: "Hopper", Role: models.RoleTrainee, IsActive: true}); err != nil {
		t.Fatalf("CreateAdvancedStaff: %v", err)
	}
	if _, err := repo.CreateAdvancedStaff(ctx, &models.AdvancedStaff{BadgeNumber: "#3001", FirstName: "Grace", LastName: "Hopper", Role: models.RoleTrainee, IsActive: true}); !errors.Is(err, sqlite.ErrDuplicate) {
		t.Fatalf("duplicate advanced badge: want ErrDuplicate, got %v", err)
	}

	if _, err := repo.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "x", IsActive: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := repo.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "y", IsActive: true}); !errors.Is(err, sqlite.ErrDuplicate) {
		t.Fatalf("duplicate username: want ErrDuplicate, got %v", err)
	}
}

func TestTraineeCRUDAndBadgeNormalization(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCreateCohort(t, repo, "Fall 2025", 2025, models.SemesterFall)

	// badge is normalized to carry the '#' prefix on write
	tr := &models.Trainee{BadgeNumber: "2501", FirstName: "Ada", LastName: "Lovelace", CohortID: cohort.ID, IsActive: true}
	id, err := repo.CreateTrainee(ctx, tr)
	if err != nil {
		t.Fatalf("CreateTrainee: %v", err)
	}

	got, err := repo.GetTraineeByID(ctx, id)
	if err != nil {
		t.Fatalf("GetTraineeByID: %v", err)
	}
	if got.BadgeNumber != "#2501" {
		t.Fatalf("expected normalized badge #2501, got %q", got.BadgeNumber)
	}
	if got.DateAdded == 0 {
		t.Fatalf("expected date_added to be set on create")
	}

	// lookups normalize too
	byBadge, err := repo.GetTraineeByBadge(ctx, "2501")
	if err != nil {
		t.Fatalf("GetTraineeByBadge: %v", err)
	}
	if byBadge == nil || byBadge.ID != id {
		t.Fatalf("expected lookup without '#' to resolve, got %#v", byBadge)
	}

	// updates keep the creation timestamp
	originalAdded := got.DateAdded
	got.FirstName = "Augusta"
	if err := repo.UpdateTrainee(ctx, got); err != nil {
		t.Fatalf("UpdateTrainee: %v", err)
	}
	got, err = repo.GetTraineeByID(ctx, id)
	if err != nil {
		t.Fatalf("GetTraineeByID: %v", err)
	}
	if got.FirstName != "Augusta" {
		t.Fatalf("update did not stick: %#v", got)
	}
	if got.DateAdded != originalAdded {
		t.Fatalf("date_added changed on update: %d != %d", got.DateAdded, originalAdded)
	}

	found, err := repo.SearchTrainees(ctx, "lovel")
	if err != nil {
		t.Fatalf("SearchTrainees: %v", err)
	}
	if len(found) != 1 || found[0].ID != id {
		t.Fatalf("search by name returned %#v", found)
	}

	badges, err := repo.ListBadgeNumbers(ctx, "#25")
	if err != nil {
		t.Fatalf("ListBadgeNumbers: %v", err)
	}
	if len(badges) != 1 || badges[0] != "#2501" {
		t.Fatalf("ListBadgeNumbers returned %v", badges)
	}
}

func TestGetTraineesByIDsActiveOnly(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCreateCohort(t, repo, "Fall 2025", 2025, models.SemesterFall)
	a := mustCreateTrainee(t, repo, "#2501", cohort.ID)
	b := mustCreateTrainee(t, repo, "#2502", cohort.ID)

	b.IsActive = false
	if err := repo.UpdateTrainee(ctx, b); err != nil {
		t.Fatalf("UpdateTrainee: %v", err)
	}

	all, err := repo.GetTraineesByIDs(ctx, []int64{a.ID, b.ID}, false)
	if err != nil {
		t.Fatalf("GetTraineesByIDs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 trainees, got %d", len(all))
	}

	active, err := repo.GetTraineesByIDs(ctx, []int64{a.ID, b.ID}, true)
	if err != nil {
		t.Fatalf("GetTraineesByIDs: %v", err)
	}
	if len(active) != 1 || active[0].ID != a.ID {
		t.Fatalf("expected only the active trainee, got %#v", active)
	}
}

// orderSnapshot maps task id to display order for the whole catalog.
func orderSnapshot(t *testing.T, repo *sqlite.SQLiteRepo) map[int64]int {
	t.Helper()
	tasks, err := repo.ListTasks(context.Background(), false)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	out := make(map[int64]int, len(tasks))
	for _, task := range tasks {
		out[task.ID] = task.Order
	}
	return out
}

func TestSaveTaskOrderShift(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	// seed catalog occupies orders 1..15
	before := orderSnapshot(t, repo)
	if len(before) != 15 {
		t.Fatalf("expected 15 seeded tasks, got %d", len(before))
	}

	// inserting into an occupied slot shifts that slot and everything above
	// it up by exactly one
	newTask := &models.Task{Order: 5, Name: "Safety walkthrough", IsActive: true}
	id, err := repo.SaveTask(ctx, newTask)
	if err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	after := orderSnapshot(t, repo)
	if after[id] != 5 {
		t.Fatalf("expected new task at order 5, got %d", after[id])
	}
	for taskID, old := range before {
		want := old
		if old >= 5 {
			want = old + 1
		}
		if after[taskID] != want {
			t.Fatalf("task %d: expected order %d, got %d", taskID, want, after[taskID])
		}
	}

	// orders stay unique
	seen := map[int]bool{}
	for _, order := range after {
		if seen[order] {
			t.Fatalf("duplicate order %d after shift", order)
		}
		seen[order] = true
	}
}

func TestSaveTaskRelocateOccupiedSlot(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	before := orderSnapshot(t, repo)

	tasks, err := repo.ListTasks(ctx, false)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	mover := tasks[1] // order 2

	// moving an existing task onto an occupied slot vacates its own slot
	// first, then shifts the target and everything above it up by one
	mover.Order = 5
	if _, err := repo.SaveTask(ctx, &mover); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	after := orderSnapshot(t, repo)
	if after[mover.ID] != 5 {
		t.Fatalf("expected moved task at order 5, got %d", after[mover.ID])
	}
	for taskID, old := range before {
		if taskID == mover.ID {
			continue
		}
		want := old
		if old >= 5 {
			want = old + 1
		}
		if after[taskID] != want {
			t.Fatalf("task %d: expected order %d, got %d", taskID, want, after[taskID])
		}
	}

	// the vacated slot stays free and no order is duplicated
	seen := map[int]bool{}
	for _, order := range after {
		if order == 2 {
			t.Fatalf("order 2 should be vacant after the move")
		}
		if seen[order] {
			t.Fatalf("duplicate order %d after relocation", order)
		}
		seen[order] = true
	}
}

func TestSaveTaskNoOpReorder(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	before := orderSnapshot(t, repo)

	tasks, err := repo.ListTasks(ctx, false)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	target := tasks[2]

	// saving with the same order must not touch any other row
	target.Description = "updated"
	if _, err := repo.SaveTask(ctx, &target); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	after := orderSnapshot(t, repo)
	for taskID, old := range before {
		if after[taskID] != old {
			t.Fatalf("task %d moved from %d to %d on a no-op reorder", taskID, old, after[taskID])
		}
	}

	// moving to a free slot must not shift anything either
	target.Order = 100
	if _, err := repo.SaveTask(ctx, &target); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	after = orderSnapshot(t, repo)
	if after[target.ID] != 100 {
		t.Fatalf("expected task at order 100, got %d", after[target.ID])
	}
	for taskID, old := range before {
		if taskID == target.ID {
			continue
		}
		if after[taskID] != old {
			t.Fatalf("task %d moved from %d to %d on a free-slot move", taskID, old, after[taskID])
		}
	}
}

func TestTaskSigners(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	u1, err := repo.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "x", IsStaff: true, IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u2, err := repo.CreateUser(ctx, &models.User{Username: "bob", PasswordHash: "x", IsStaff: true, IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	tasks, err := repo.ListTasks(ctx, true)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	task := tasks[0]

	// empty signer set means anyone may sign
	if !task.CanSignOff(u2) {
		t.Fatalf("expected open task to allow any signer")
	}

	if err := repo.SetTaskSigners(ctx, task.ID, []int64{u1}); err != nil {
		t.Fatalf("SetTaskSigners: %v", err)
	}
	got, err := repo.GetTaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTaskByID: %v", err)
	}
	if !got.CanSignOff(u1) || got.CanSignOff(u2) {
		t.Fatalf("signer restriction not applied: %#v", got.SignerIDs)
	}

	// replace-set semantics
	if err := repo.SetTaskSigners(ctx, task.ID, []int64{u2}); err != nil {
		t.Fatalf("SetTaskSigners: %v", err)
	}
	got, err = repo.GetTaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTaskByID: %v", err)
	}
	if got.CanSignOff(u1) || !got.CanSignOff(u2) {
		t.Fatalf("signer replacement not applied: %#v", got.SignerIDs)
	}
}

func TestUpsertSignOffPreservesSignedAt(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCreateCohort(t, repo, "Fall 2025", 2025, models.SemesterFall)
	trainee := mustCreateTrainee(t, repo, "#2501", cohort.ID)
	tasks, err := repo.ListTasks(ctx, true)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	staffID, err := repo.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "x", IsStaff: true, IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	so := &models.SignOff{TraineeID: trainee.ID, TaskID: tasks[0].ID, SignedBy: &staffID, Score: "95"}
	created, err := repo.UpsertSignOff(ctx, so)
	if err != nil {
		t.Fatalf("UpsertSignOff: %v", err)
	}
	if !created {
		t.Fatalf("expected first upsert to create")
	}
	if so.SignedAt == 0 {
		t.Fatalf("expected signed_at set on create")
	}
	firstSignedAt := so.SignedAt

	// re-signing overwrites score and notes but keeps the timestamp
	time.Sleep(5 * time.Millisecond)
	again := &models.SignOff{TraineeID: trainee.ID, TaskID: tasks[0].ID, SignedBy: &staffID, Score: "88", Notes: "retake"}
	created, err = repo.UpsertSignOff(ctx, again)
	if err != nil {
		t.Fatalf("UpsertSignOff: %v", err)
	}
	if created {
		t.Fatalf("expected second upsert to update")
	}
	if again.SignedAt != firstSignedAt {
		t.Fatalf("signed_at changed on update: %d != %d", again.SignedAt, firstSignedAt)
	}
	if again.Score != "88" || again.Notes != "retake" {
		t.Fatalf("update did not overwrite fields: %#v", again)
	}

	count, err := repo.CountSignedTasks(ctx, trainee.ID)
	if err != nil {
		t.Fatalf("CountSignedTasks: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 signed task, got %d", count)
	}
}

func TestUnsignWritesAuditSnapshot(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCreateCohort(t, repo, "Fall 2025", 2025, models.SemesterFall)
	trainee := mustCreateTrainee(t, repo, "#2501", cohort.ID)
	tasks, err := repo.ListTasks(ctx, true)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	signerID, err := repo.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "x", IsStaff: true, IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	removerID, err := repo.CreateUser(ctx, &models.User{Username: "boss", PasswordHash: "x", IsSuperuser: true, IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	so := &models.SignOff{TraineeID: trainee.ID, TaskID: tasks[0].ID, SignedBy: &signerID, Score: "91.5", Notes: "first try"}
	if _, err := repo.UpsertSignOff(ctx, so); err != nil {
		t.Fatalf("UpsertSignOff: %v", err)
	}

	log, err := repo.Unsign(ctx, trainee.ID, tasks[0].ID, &removerID, "entered against wrong trainee")
	if err != nil {
		t.Fatalf("Unsign: %v", err)
	}
	if log == nil {
		t.Fatalf("expected unsign log")
	}

	// snapshot carries the original values verbatim
	if log.OriginalSignedBy == nil || *log.OriginalSignedBy != signerID {
		t.Fatalf("wrong original_signed_by: %#v", log.OriginalSignedBy)
	}
	if log.OriginalSignedAt != so.SignedAt {
		t.Fatalf("wrong original_signed_at: %d != %d", log.OriginalSignedAt, so.SignedAt)
	}
	if log.OriginalScore != "91.5" || log.OriginalNotes != "first try" {
		t.Fatalf("wrong snapshot: %#v", log)
	}
	if log.UnsignedBy == nil || *log.UnsignedBy != removerID {
		t.Fatalf("wrong unsigned_by: %#v", log.UnsignedBy)
	}
	if log.Reason != "entered against wrong trainee" {
		t.Fatalf("wrong reason: %q", log.Reason)
	}

	// the sign-off row is gone, the audit row persists
	gone, err := repo.GetSignOff(ctx, trainee.ID, tasks[0].ID)
	if err != nil || gone != nil {
		t.Fatalf("expected sign-off removed, got %#v, %v", gone, err)
	}
	logs, err := repo.ListUnsignLogs(ctx, trainee.ID)
	if err != nil {
		t.Fatalf("ListUnsignLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].ID != log.ID {
		t.Fatalf("expected 1 audit row, got %#v", logs)
	}

	// unsigning a pair with no sign-off is a nil result, not an error
	none, err := repo.Unsign(ctx, trainee.ID, tasks[1].ID, &removerID, "nothing there")
	if err != nil {
		t.Fatalf("Unsign(missing): %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil for missing sign-off, got %#v", none)
	}
}

func TestBulkUpsertSignOffsAtomicity(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	cohort := mustCreateCohort(t, repo, "Fall 2025", 2025, models.SemesterFall)
	t1 := mustCreateTrainee(t, repo, "#2501", cohort.ID)
	t2 := mustCreateTrainee(t, repo, "#2502", cohort.ID)
	tasks, err := repo.ListTasks(ctx, true)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	staffID, err := repo.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "x", IsStaff: true, IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	rows := []*models.SignOff{
		{TraineeID: t1.ID, TaskID: tasks[0].ID, SignedBy: &staffID},
		{TraineeID: t1.ID, TaskID: tasks[1].ID, SignedBy: &staffID},
		{TraineeID: t2.ID, TaskID: tasks[0].ID, SignedBy: &staffID},
		{TraineeID: t2.ID, TaskID: tasks[1].ID, SignedBy: &staffID},
	}

	created, updated, err := repo.BulkUpsertSignOffs(ctx, rows, false)
	if err != nil {
		t.Fatalf("BulkUpsertSignOffs: %v", err)
	}
	if created != 4 || updated != 0 {
		t.Fatalf("expected 4 created / 0 updated, got %d / %d", created, updated)
	}

	// applying the same batch again only updates
	created, updated, err = repo.BulkUpsertSignOffs(ctx, rows, false)
	if err != nil {
		t.Fatalf("BulkUpsertSignOffs: %v", err)
	}
	if created != 0 || updated != 4 {
		t.Fatalf("expected 0 created / 4 updated, got %d / %d", created, updated)
	}

	// abort reports the attempted counts but persists nothing
	abortRows := []*models.SignOff{
		{TraineeID: t1.ID, TaskID: tasks[2].ID, SignedBy: &staffID},
		{TraineeID: t2.ID, TaskID: tasks[2].ID, SignedBy: &staffID},
	}
	created, updated, err = repo.BulkUpsertSignOffs(ctx, abortRows, true)
	if err != nil {
		t.Fatalf("BulkUpsertSignOffs(abort): %v", err)
	}
	if created != 2 || updated != 0 {
		t.Fatalf("expected attempted 2 created, got %d / %d", created, updated)
	}
	for _, row := range abortRows {
		got, err := repo.GetSignOff(ctx, row.TraineeID, row.TaskID)
		if err != nil {
			t.Fatalf("GetSignOff: %v", err)
		}
		if got != nil {
			t.Fatalf("aborted batch leaked a row: %#v", got)
		}
	}
}

func TestUserProfile(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	id, err := repo.CreateUser(ctx, &models.User{Username: "carol", FirstName: "Carol", LastName: "Reyes", PasswordHash: "x", IsStaff: true, IsActive: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// no profile row yet: the optional field stays nil
	u, err := repo.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u.Profile != nil {
		t.Fatalf("expected nil profile, got %#v", u.Profile)
	}
	if u.CanBulkSignOff() {
		t.Fatalf("user without profile must not hold bulk capability")
	}

	if _, err := repo.UpsertStaffProfile(ctx, &models.StaffProfile{UserID: id, Initials: "CR", CanSignOff: true}); err != nil {
		t.Fatalf("UpsertStaffProfile: %v", err)
	}
	u, err = repo.GetUserByUsername(ctx, "carol")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u.Profile == nil || u.Profile.Initials != "CR" {
		t.Fatalf("expected profile with initials CR, got %#v", u.Profile)
	}
	if !u.CanBulkSignOff() {
		t.Fatalf("expected bulk capability via profile")
	}

	// upsert replaces in place
	if _, err := repo.UpsertStaffProfile(ctx, &models.StaffProfile{UserID: id, Initials: "CMR", CanSignOff: false}); err != nil {
		t.Fatalf("UpsertStaffProfile: %v", err)
	}
	u, err = repo.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u.Profile == nil || u.Profile.Initials != "CMR" || u.CanBulkSignOff() {
		t.Fatalf("expected replaced profile, got %#v", u.Profile)
	}
}

func TestAdvancedTrainingUpsert(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	staff := &models.AdvancedStaff{BadgeNumber: "2501", FirstName: "Dana", LastName: "Kim", Role: models.RoleStaff, IsActive: true}
	staffID, err := repo.CreateAdvancedStaff(ctx, staff)
	if err != nil {
		t.Fatalf("CreateAdvancedStaff: %v", err)
	}
	staff.ID = staffID

	kp, err := repo.GetTrainingTypeByName(ctx, "KP Training")
	if err != nil || kp == nil {
		t.Fatalf("expected seeded KP Training, got %#v, %v", kp, err)
	}
	other, err := repo.GetTrainingTypeByName(ctx, "Other Training")
	if err != nil || other == nil {
		t.Fatalf("expected seeded Other Training, got %#v, %v", other, err)
	}
	if !other.AllowsCustomType {
		t.Fatalf("Other Training should allow a custom type")
	}

	completion := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tr := &models.AdvancedTraining{StaffID: staffID, TrainingTypeID: kp.ID, CompletionDate: &completion, ApproverInitials: "DK"}
	created, err := repo.UpsertTraining(ctx, tr)
	if err != nil {
		t.Fatalf("UpsertTraining: %v", err)
	}
	if !created {
		t.Fatalf("expected create")
	}

	// same (staff, type, custom type) key updates in place
	termination := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tr2 := &models.AdvancedTraining{StaffID: staffID, TrainingTypeID: kp.ID, CompletionDate: &completion, TerminationDate: &termination, ApproverInitials: "DK"}
	created, err = repo.UpsertTraining(ctx, tr2)
	if err != nil {
		t.Fatalf("UpsertTraining: %v", err)
	}
	if created {
		t.Fatalf("expected update for same key")
	}

	// a different custom type is a distinct record
	tr3 := &models.AdvancedTraining{StaffID: staffID, TrainingTypeID: other.ID, CustomType: "Crane", CompletionDate: &completion}
	if created, err = repo.UpsertTraining(ctx, tr3); err != nil || !created {
		t.Fatalf("expected create for distinct custom type, got created=%v err=%v", created, err)
	}
	tr4 := &models.AdvancedTraining{StaffID: staffID, TrainingTypeID: other.ID, CustomType: "Forklift", CompletionDate: &completion}
	if created, err = repo.UpsertTraining(ctx, tr4); err != nil || !created {
		t.Fatalf("expected create for second custom type, got created=%v err=%v", created, err)
	}

	list, err := repo.ListTrainingsByStaff(ctx, staffID)
	if err != nil {
		t.Fatalf("ListTrainingsByStaff: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 training records, got %d", len(list))
	}
	var kpRec *models.AdvancedTraining
	for i := range list {
		if list[i].TrainingTypeID == kp.ID {
			kpRec = &list[i]
		}
	}
	if kpRec == nil || kpRec.TerminationDate == nil || !kpRec.TerminationDate.Equal(termination) {
		t.Fatalf("expected updated termination date, got %#v", kpRec)
	}
}
