package sqlite

import (
	"errors"
	"time"

	"log/slog"

	"github.com/rtclab/traineetracker/internal/db"
	"github.com/rtclab/traineetracker/pkg/repository"
)

// ErrDuplicate marks a write rejected by a uniqueness constraint. Wrapping
// errors name the conflicting field so the message can face the caller.
var ErrDuplicate = errors.New("already exists")

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.CohortRepo = (*SQLiteRepo)(nil)
var _ repository.TraineeRepo = (*SQLiteRepo)(nil)
var _ repository.TaskRepo = (*SQLiteRepo)(nil)
var _ repository.SignOffRepo = (*SQLiteRepo)(nil)
var _ repository.UserRepo = (*SQLiteRepo)(nil)
var _ repository.AdvancedRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

const dateLayout = "2006-01-02"

// dateArg converts an optional civil date to its TEXT column form.
func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

// parseDate converts a TEXT date column back to a civil date.
func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, *s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
