// Package repository defines the persistence interfaces consumed by the
// services and handlers. The sqlite implementation lives in
// internal/repository/sqlite.
package repository

import (
	"context"
	"time"

	"github.com/rtclab/traineetracker/internal/models"
)

// CohortRepo manages training cohort periods.
type CohortRepo interface {
	CreateCohort(ctx context.Context, c *models.Cohort) (int64, error)
	UpdateCohort(ctx context.Context, c *models.Cohort) error
	GetCohortByID(ctx context.Context, id int64) (*models.Cohort, error)
	GetCohortByName(ctx context.Context, name string) (*models.Cohort, error)
	ListCohorts(ctx context.Context) ([]models.Cohort, error)
	// CurrentCohort resolves the cohort considered active on the given day:
	// manual override first, then date-range match, then the newest cohort.
	// Returns nil when the registry is empty.
	CurrentCohort(ctx context.Context, today time.Time) (*models.Cohort, error)
	// DeleteCohort refuses to delete a cohort that still owns trainees.
	DeleteCohort(ctx context.Context, id int64) error
	CountActiveTrainees(ctx context.Context, cohortID int64) (int, error)
}

// TraineeRepo manages orientation trainee records.
type TraineeRepo interface {
	CreateTrainee(ctx context.Context, t *models.Trainee) (int64, error)
	UpdateTrainee(ctx context.Context, t *models.Trainee) error
	GetTraineeByID(ctx context.Context, id int64) (*models.Trainee, error)
	GetTraineeByBadge(ctx context.Context, badge string) (*models.Trainee, error)
	GetTraineesByIDs(ctx context.Context, ids []int64, activeOnly bool) ([]models.Trainee, error)
	ListTraineesByCohort(ctx context.Context, cohortID int64, activeOnly bool) ([]models.Trainee, error)
	SearchTrainees(ctx context.Context, query string) ([]models.Trainee, error)
	ListBadgeNumbers(ctx context.Context, prefix string) ([]string, error)
}

// TaskRepo manages the ordered checklist catalog.
type TaskRepo interface {
	// SaveTask inserts or updates a task, resolving order collisions by
	// shifting subsequent tasks up by one inside a single transaction.
	SaveTask(ctx context.Context, t *models.Task) (int64, error)
	GetTaskByID(ctx context.Context, id int64) (*models.Task, error)
	GetTasksByIDs(ctx context.Context, ids []int64, activeOnly bool) ([]models.Task, error)
	ListTasks(ctx context.Context, activeOnly bool) ([]models.Task, error)
	SetTaskSigners(ctx context.Context, taskID int64, userIDs []int64) error
	CountActiveTasks(ctx context.Context) (int, error)
}

// SignOffRepo manages the completion ledger and its audit trail.
type SignOffRepo interface {
	GetSignOff(ctx context.Context, traineeID, taskID int64) (*models.SignOff, error)
	// UpsertSignOff creates the row or overwrites signer/score/notes on an
	// existing one. SignedAt is preserved on update.
	UpsertSignOff(ctx context.Context, s *models.SignOff) (created bool, err error)
	ListSignOffsByTrainee(ctx context.Context, traineeID int64) ([]models.SignOff, error)
	CountSignedTasks(ctx context.Context, traineeID int64) (int, error)
	// Unsign snapshots the current sign-off into the audit log and deletes it,
	// in one transaction. Returns nil when no sign-off exists for the pair.
	Unsign(ctx context.Context, traineeID, taskID int64, unsignedBy *int64, reason string) (*models.UnsignLog, error)
	ListUnsignLogs(ctx context.Context, traineeID int64) ([]models.UnsignLog, error)
	// BulkUpsertSignOffs applies all rows in one transaction. When abort is
	// true the transaction is rolled back after counting, so the attempted
	// created/updated counts are still reported while nothing persists.
	BulkUpsertSignOffs(ctx context.Context, rows []*models.SignOff, abort bool) (created, updated int, err error)
}

// UserRepo manages the locally persisted identities and staff profiles.
type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpsertStaffProfile(ctx context.Context, p *models.StaffProfile) (int64, error)
}

// AdvancedRepo manages the advanced-training registry.
type AdvancedRepo interface {
	CreateAdvancedStaff(ctx context.Context, s *models.AdvancedStaff) (int64, error)
	UpdateAdvancedStaff(ctx context.Context, s *models.AdvancedStaff) error
	GetAdvancedStaffByID(ctx context.Context, id int64) (*models.AdvancedStaff, error)
	GetAdvancedStaffByBadge(ctx context.Context, badge string) (*models.AdvancedStaff, error)
	ListAdvancedStaff(ctx context.Context, activeOnly bool) ([]models.AdvancedStaff, error)

	ListTrainingTypes(ctx context.Context, activeOnly bool) ([]models.AdvancedTrainingType, error)
	GetTrainingTypeByID(ctx context.Context, id int64) (*models.AdvancedTrainingType, error)
	GetTrainingTypeByName(ctx context.Context, name string) (*models.AdvancedTrainingType, error)
	SetTrainingTypeSigners(ctx context.Context, typeID int64, userIDs []int64) error

	// UpsertTraining creates or updates the record identified by
	// (staff, training type, custom type).
	UpsertTraining(ctx context.Context, t *models.AdvancedTraining) (created bool, err error)
	DeleteTraining(ctx context.Context, id int64) error
	ListTrainingsByStaff(ctx context.Context, staffID int64) ([]models.AdvancedTraining, error)
}
