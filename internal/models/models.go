package models

import (
	"fmt"
	"time"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

const (
	SemesterSpring = "Spring"
	SemesterFall   = "Fall"
)

// SemesterOrder returns the numeric sort position of a semester within its
// year: Spring=1, Fall=2. Unknown values sort with Spring.
func SemesterOrder(semester string) int {
	if semester == SemesterFall {
		return 2
	}
	return 1
}

// Cohort is a named training intake period (one semester of one year).
type Cohort struct {
	ID                int64  `json:"id" db:"id"`
	Name              string `json:"name" db:"name" validate:"required"`
	Year              int    `json:"year" db:"year" validate:"required"`
	Semester          string `json:"semester" db:"semester" validate:"required,oneof=Spring Fall"`
	SemesterOrder     int    `json:"semester_order" db:"semester_order"`
	IsCurrentOverride bool   `json:"is_current_override" db:"is_current_override"`
}

// StartDate returns the first day of the cohort period.
func (c *Cohort) StartDate() time.Time {
	if c.Semester == SemesterSpring {
		return time.Date(c.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(c.Year, time.July, 1, 0, 0, 0, 0, time.UTC)
}

// EndDate returns the last day of the cohort period.
func (c *Cohort) EndDate() time.Time {
	if c.Semester == SemesterSpring {
		return time.Date(c.Year, time.June, 30, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(c.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// IsCurrent reports whether the given day falls inside the cohort period.
func (c *Cohort) IsCurrent(today time.Time) bool {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(c.StartDate()) && !day.After(c.EndDate())
}

// Trainee is a person going through the orientation checklist. Badge numbers
// carry a leading '#' (e.g. "#2501"); the same person appears in the advanced
// registry without it.
type Trainee struct {
	ID          int64  `json:"id" db:"id"`
	BadgeNumber string `json:"badge_number" db:"badge_number" validate:"required"`
	FirstName   string `json:"first_name" db:"first_name" validate:"required"`
	LastName    string `json:"last_name" db:"last_name" validate:"required"`
	CohortID    int64  `json:"cohort_id" db:"cohort_id" validate:"required"`
	IsActive    bool   `json:"is_active" db:"is_active"`
	DateAdded   int64  `json:"date_added" db:"date_added"`
}

func (t *Trainee) FullName() string {
	return fmt.Sprintf("%s, %s", t.LastName, t.FirstName)
}

// Task is one checklist step. Order doubles as identity and display sequence,
// which is why saving a colliding order triggers the shift algorithm in the
// repository.
type Task struct {
	ID            int64   `json:"id" db:"id"`
	Order         int     `json:"order" db:"display_order" validate:"required"`
	Name          string  `json:"name" db:"name" validate:"required"`
	Description   string  `json:"description,omitempty" db:"description"`
	Category      string  `json:"category,omitempty" db:"category"`
	RequiresScore bool    `json:"requires_score" db:"requires_score"`
	MinimumScore  *string `json:"minimum_score,omitempty" db:"minimum_score"`
	IsActive      bool    `json:"is_active" db:"is_active"`

	// SignerIDs is the set of users allowed to sign this task off.
	// Empty means any staff member may sign.
	SignerIDs []int64 `json:"signer_ids,omitempty"`
}

// CanSignOff reports whether a user may sign off this task.
func (t *Task) CanSignOff(userID int64) bool {
	if len(t.SignerIDs) == 0 {
		return true
	}
	for _, id := range t.SignerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// SignOff records completion of one task by one trainee. At most one row
// exists per (trainee, task); SignedAt is write-once.
type SignOff struct {
	ID        int64  `json:"id" db:"id"`
	TraineeID int64  `json:"trainee_id" db:"trainee_id"`
	TaskID    int64  `json:"task_id" db:"task_id"`
	SignedBy  *int64 `json:"signed_by,omitempty" db:"signed_by"`
	SignedAt  int64  `json:"signed_at" db:"signed_at"`
	Score     string `json:"score,omitempty" db:"score"`
	Notes     string `json:"notes,omitempty" db:"notes"`
}

// UnsignLog is the append-only audit record written when a sign-off is
// removed. Rows are never updated or deleted.
type UnsignLog struct {
	ID               int64  `json:"id" db:"id"`
	TraineeID        int64  `json:"trainee_id" db:"trainee_id"`
	TaskID           int64  `json:"task_id" db:"task_id"`
	OriginalSignedBy *int64 `json:"original_signed_by,omitempty" db:"original_signed_by"`
	OriginalSignedAt int64  `json:"original_signed_at" db:"original_signed_at"`
	OriginalScore    string `json:"original_score,omitempty" db:"original_score"`
	OriginalNotes    string `json:"original_notes,omitempty" db:"original_notes"`
	UnsignedBy       *int64 `json:"unsigned_by,omitempty" db:"unsigned_by"`
	UnsignedAt       int64  `json:"unsigned_at" db:"unsigned_at"`
	Reason           string `json:"reason,omitempty" db:"reason"`
}

// User is the externally-authenticated identity the core consumes. The
// optional staff profile carries the sign-off capability and display
// initials; authorization predicates never probe beyond these fields.
type User struct {
	ID           int64  `json:"id" db:"id"`
	Username     string `json:"username" db:"username" validate:"required"`
	FirstName    string `json:"first_name,omitempty" db:"first_name"`
	LastName     string `json:"last_name,omitempty" db:"last_name"`
	PasswordHash string `json:"-" db:"password_hash"`
	IsStaff      bool   `json:"is_staff" db:"is_staff"`
	IsSuperuser  bool   `json:"is_superuser" db:"is_superuser"`
	IsActive     bool   `json:"is_active" db:"is_active"`
	Created      int64  `json:"created" db:"created"`

	Profile *StaffProfile `json:"profile,omitempty"`
}

// CanBulkSignOff reports whether the user holds the bulk sign-off
// capability on their profile.
func (u *User) CanBulkSignOff() bool {
	return u.Profile != nil && u.Profile.CanSignOff
}

type StaffProfile struct {
	ID         int64  `json:"id" db:"id"`
	UserID     int64  `json:"user_id" db:"user_id"`
	Initials   string `json:"initials" db:"initials"`
	CanSignOff bool   `json:"can_sign_off" db:"can_sign_off"`
}

// Advanced staff roles.
const (
	RoleOperator = "Operator"
	RoleStudent  = "Student"
	RoleTrainee  = "Trainee"
	RoleStaff    = "Staff"
	RoleFaculty  = "Faculty"
	RoleHP       = "HP"
	RoleOther    = "Other"
)

// ValidRole reports whether role is one of the known advanced staff roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOperator, RoleStudent, RoleTrainee, RoleStaff, RoleFaculty, RoleHP, RoleOther:
		return true
	}
	return false
}

// AdvancedStaff is the advanced-training registry entry for a person. Badge
// numbers carry no '#' prefix.
type AdvancedStaff struct {
	ID          int64  `json:"id" db:"id"`
	BadgeNumber string `json:"badge_number" db:"badge_number" validate:"required"`
	FirstName   string `json:"first_name" db:"first_name" validate:"required"`
	LastName    string `json:"last_name" db:"last_name" validate:"required"`
	Role        string `json:"role" db:"role"`
	IsActive    bool   `json:"is_active" db:"is_active"`
}

func (s *AdvancedStaff) FullName() string {
	return fmt.Sprintf("%s, %s", s.LastName, s.FirstName)
}

// AdvancedTrainingType is a catalog entry (KP, Escort, ExpSamp, Other...).
type AdvancedTrainingType struct {
	ID               int64  `json:"id" db:"id"`
	Name             string `json:"name" db:"name"`
	Order            int    `json:"order" db:"display_order"`
	AllowsCustomType bool   `json:"allows_custom_type" db:"allows_custom_type"`
	IsActive         bool   `json:"is_active" db:"is_active"`

	SignerIDs []int64 `json:"signer_ids,omitempty"`
}

// CanSignOff reports whether a user may sign off this training type.
// An empty signer set allows any staff member.
func (t *AdvancedTrainingType) CanSignOff(userID int64) bool {
	if len(t.SignerIDs) == 0 {
		return true
	}
	for _, id := range t.SignerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AdvancedTraining is one completed (or pending) training record, unique per
// (staff, type, custom type).
type AdvancedTraining struct {
	ID               int64      `json:"id" db:"id"`
	StaffID          int64      `json:"staff_id" db:"staff_id"`
	TrainingTypeID   int64      `json:"training_type_id" db:"training_type_id"`
	CustomType       string     `json:"custom_type,omitempty" db:"custom_type"`
	CompletionDate   *time.Time `json:"completion_date,omitempty" db:"completion_date"`
	ApproverInitials string     `json:"approver_initials,omitempty" db:"approver_initials"`
	TerminationDate  *time.Time `json:"termination_date,omitempty" db:"termination_date"`
	Notes            string     `json:"notes,omitempty" db:"notes"`
	Created          int64      `json:"created" db:"created"`
	Updated          int64      `json:"updated" db:"updated"`
}

// IsExpired reports whether the training has lapsed: a termination date in
// the past, on a record that was actually completed.
func (t *AdvancedTraining) IsExpired(today time.Time) bool {
	if t.TerminationDate == nil || t.CompletionDate == nil {
		return false
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return day.After(*t.TerminationDate)
}

// IsExpiringSoon reports whether the training terminates within the next
// `days` days.
func (t *AdvancedTraining) IsExpiringSoon(today time.Time, days int) bool {
	if t.TerminationDate == nil || t.CompletionDate == nil {
		return false
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	limit := day.AddDate(0, 0, days)
	return !t.TerminationDate.Before(day) && !t.TerminationDate.After(limit)
}

// ProgressPercent returns completed/total as a percentage rounded to one
// decimal place; zero when no tasks exist.
func ProgressPercent(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := float64(completed) / float64(total) * 100
	return float64(int(pct*10+0.5)) / 10
}
