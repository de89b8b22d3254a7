// Package ledger implements the sign-off state machine: single sign-off and
// unsign operations with their authorization and score rules, and the
// all-or-nothing bulk transactor.
package ledger

import (
	"context"
	"fmt"
	"strconv"

	"log/slog"

	"github.com/rtclab/traineetracker/internal/models"
	"github.com/rtclab/traineetracker/pkg/repository"
)

// BulkLimit bounds each side of the trainees × tasks cross product.
const BulkLimit = 100

type Service struct {
	trainees repository.TraineeRepo
	tasks    repository.TaskRepo
	signoffs repository.SignOffRepo
	logger   *slog.Logger
}

func NewService(tr repository.TraineeRepo, ta repository.TaskRepo, so repository.SignOffRepo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{trainees: tr, tasks: ta, signoffs: so, logger: logger}
}

// validateScore applies the score rules for one task. The minimum is a
// decimal string compared as floating point; the distinct failure modes are
// missing, unparseable and below-minimum.
func validateScore(task *models.Task, score string) error {
	if task.RequiresScore && task.MinimumScore != nil {
		if score == "" {
			return &MissingScoreError{TaskName: task.Name, MinimumScore: *task.MinimumScore}
		}
		if !models.ValidScoreFormat(score) {
			return &InvalidScoreFormatError{Score: score}
		}
		val, err := strconv.ParseFloat(score, 64)
		if err != nil {
			return &InvalidScoreFormatError{Score: score}
		}
		min, err := strconv.ParseFloat(*task.MinimumScore, 64)
		if err != nil {
			return fmt.Errorf("task %q has malformed minimum score %q: %w", task.Name, *task.MinimumScore, err)
		}
		if val < min {
			return &ScoreBelowMinimumError{Score: score, MinimumScore: *task.MinimumScore, TaskName: task.Name}
		}
		return nil
	}
	if score != "" && !models.ValidScoreFormat(score) {
		return &InvalidScoreFormatError{Score: score}
	}
	return nil
}

// Sign records completion of a task by a trainee. It returns the stored
// sign-off and whether the row was newly created; re-signing overwrites
// signer, score and notes but keeps the original timestamp.
func (s *Service) Sign(ctx context.Context, badge string, taskID int64, actor *models.User, score, notes string) (*models.SignOff, bool, error) {
	trainee, err := s.trainees.GetTraineeByBadge(ctx, badge)
	if err != nil {
		return nil, false, fmt.Errorf("look up trainee: %w", err)
	}
	if trainee == nil {
		return nil, false, &NotFoundError{Kind: "trainee", Key: badge}
	}
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, false, fmt.Errorf("look up task: %w", err)
	}
	if task == nil {
		return nil, false, &NotFoundError{Kind: "task", Key: strconv.FormatInt(taskID, 10)}
	}

	if !task.CanSignOff(actor.ID) {
		return nil, false, &UnauthorizedSignOffError{Username: actor.Username, TaskName: task.Name}
	}
	if err := validateScore(task, score); err != nil {
		return nil, false, err
	}
	if len(notes) > models.MaxNotesLen {
		return nil, false, &TextTooLongError{Field: "notes", Limit: models.MaxNotesLen}
	}

	so := &models.SignOff{
		TraineeID: trainee.ID,
		TaskID:    task.ID,
		SignedBy:  &actor.ID,
		Score:     score,
		Notes:     notes,
	}
	created, err := s.signoffs.UpsertSignOff(ctx, so)
	if err != nil {
		return nil, false, fmt.Errorf("store sign-off: %w", err)
	}
	s.logger.Info("sign-off recorded",
		slog.String("badge", trainee.BadgeNumber),
		slog.String("task", task.Name),
		slog.String("by", actor.Username),
		slog.Bool("created", created),
	)
	return so, created, nil
}

// Unsign removes a sign-off, writing the audit snapshot in the same
// transaction. Staff or superuser privilege is required; non-superusers must
// additionally be authorized for the task.
func (s *Service) Unsign(ctx context.Context, badge string, taskID int64, actor *models.User, reason string) (*models.UnsignLog, error) {
	trainee, err := s.trainees.GetTraineeByBadge(ctx, badge)
	if err != nil {
		return nil, fmt.Errorf("look up trainee: %w", err)
	}
	if trainee == nil {
		return nil, &NotFoundError{Kind: "trainee", Key: badge}
	}
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("look up task: %w", err)
	}
	if task == nil {
		return nil, &NotFoundError{Kind: "task", Key: strconv.FormatInt(taskID, 10)}
	}

	if !actor.IsStaff && !actor.IsSuperuser {
		return nil, &UnauthorizedUnsignError{Username: actor.Username, TaskName: task.Name}
	}
	if !actor.IsSuperuser && !task.CanSignOff(actor.ID) {
		return nil, &UnauthorizedUnsignError{Username: actor.Username, TaskName: task.Name}
	}
	if len(reason) > models.MaxNotesLen {
		return nil, &TextTooLongError{Field: "reason", Limit: models.MaxNotesLen}
	}

	log, err := s.signoffs.Unsign(ctx, trainee.ID, task.ID, &actor.ID, reason)
	if err != nil {
		return nil, fmt.Errorf("unsign: %w", err)
	}
	if log == nil {
		return nil, &SignOffNotFoundError{Badge: trainee.BadgeNumber, TaskName: task.Name}
	}
	s.logger.Info("sign-off removed",
		slog.String("badge", trainee.BadgeNumber),
		slog.String("task", task.Name),
		slog.String("by", actor.Username),
	)
	return log, nil
}

// BulkRequest is the trainees × tasks batch. Scores are keyed by decimal
// task id, the notes text is shared by every pair.
type BulkRequest struct {
	TraineeIDs []int64           `json:"trainee_ids"`
	TaskIDs    []int64           `json:"task_ids"`
	Scores     map[string]string `json:"scores"`
	Notes      string            `json:"notes"`
}

// BulkSkip is a pair that was silently skipped (authorization mismatch).
type BulkSkip struct {
	Trainee string `json:"trainee"`
	Task    string `json:"task"`
	Reason  string `json:"reason"`
}

// BulkError is a pair that failed a hard validation rule.
type BulkError struct {
	Trainee string `json:"trainee"`
	Task    string `json:"task"`
	Error   string `json:"error"`
}

// BulkResult reports the outcome. On failure the created/updated counts are
// the attempted counts before rollback; nothing persisted.
type BulkResult struct {
	Success bool        `json:"success"`
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Skipped []BulkSkip  `json:"skipped"`
	Errors  []BulkError `json:"errors"`
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// BulkSignOff applies the cross product of trainees × tasks as one
// all-or-nothing batch. Authorization mismatches are skipped and do not
// block the rest; any hard validation failure voids the whole batch.
func (s *Service) BulkSignOff(ctx context.Context, actor *models.User, req *BulkRequest) (*BulkResult, error) {
	if actor == nil || !actor.CanBulkSignOff() {
		username := ""
		if actor != nil {
			username = actor.Username
		}
		return nil, fmt.Errorf("user %s has no sign-off permission: %w", username, ErrNotAuthorized)
	}

	traineeIDs := dedupe(req.TraineeIDs)
	taskIDs := dedupe(req.TaskIDs)
	if len(traineeIDs) == 0 || len(taskIDs) == 0 {
		return nil, fmt.Errorf("select at least one trainee and one task: %w", ErrValidation)
	}
	if len(traineeIDs) > BulkLimit || len(taskIDs) > BulkLimit {
		return nil, fmt.Errorf("batch exceeds the %dx%d limit: %w", BulkLimit, BulkLimit, ErrValidation)
	}
	if len(req.Notes) > models.MaxNotesLen {
		return nil, &TextTooLongError{Field: "notes", Limit: models.MaxNotesLen}
	}

	// resolve everything before touching the ledger
	trainees, err := s.trainees.GetTraineesByIDs(ctx, traineeIDs, true)
	if err != nil {
		return nil, fmt.Errorf("resolve trainees: %w", err)
	}
	if len(trainees) != len(traineeIDs) {
		return nil, &NotFoundError{Kind: "trainees", Key: "one or more selected trainees do not exist or are inactive"}
	}
	tasks, err := s.tasks.GetTasksByIDs(ctx, taskIDs, true)
	if err != nil {
		return nil, fmt.Errorf("resolve tasks: %w", err)
	}
	if len(tasks) != len(taskIDs) {
		return nil, &NotFoundError{Kind: "tasks", Key: "one or more selected tasks do not exist or are inactive"}
	}

	result := &BulkResult{Skipped: []BulkSkip{}, Errors: []BulkError{}}
	var rows []*models.SignOff
	for ti := range tasks {
		task := &tasks[ti]
		score := req.Scores[strconv.FormatInt(task.ID, 10)]
		authorized := task.CanSignOff(actor.ID)
		scoreErr := validateScore(task, score)

		for _, trainee := range trainees {
			if !authorized {
				result.Skipped = append(result.Skipped, BulkSkip{
					Trainee: trainee.BadgeNumber,
					Task:    task.Name,
					Reason:  fmt.Sprintf("Not authorized to sign off '%s'", task.Name),
				})
				continue
			}
			if scoreErr != nil {
				result.Errors = append(result.Errors, BulkError{
					Trainee: trainee.BadgeNumber,
					Task:    task.Name,
					Error:   scoreErr.Error(),
				})
				continue
			}
			rows = append(rows, &models.SignOff{
				TraineeID: trainee.ID,
				TaskID:    task.ID,
				SignedBy:  &actor.ID,
				Score:     score,
				Notes:     req.Notes,
			})
		}
	}

	abort := len(result.Errors) > 0
	created, updated, err := s.signoffs.BulkUpsertSignOffs(ctx, rows, abort)
	if err != nil {
		return nil, fmt.Errorf("apply bulk sign-off: %w", err)
	}
	result.Created = created
	result.Updated = updated
	result.Success = !abort
	s.logger.Info("bulk sign-off",
		slog.String("by", actor.Username),
		slog.Int("created", created),
		slog.Int("updated", updated),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("errors", len(result.Errors)),
		slog.Bool("committed", !abort),
	)
	return result, nil
}

// Progress returns the trainee's checklist completion percentage.
func (s *Service) Progress(ctx context.Context, traineeID int64) (float64, error) {
	total, err := s.tasks.CountActiveTasks(ctx)
	if err != nil {
		return 0, err
	}
	completed, err := s.signoffs.CountSignedTasks(ctx, traineeID)
	if err != nil {
		return 0, err
	}
	return models.ProgressPercent(completed, total), nil
}
