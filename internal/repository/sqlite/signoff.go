package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rtclab/traineetracker/internal/models"
)

const signoffCols = `id, trainee_id, task_id, signed_by, signed_at, score, notes`

func scanSignOff(row interface{ Scan(...any) error }) (*models.SignOff, error) {
	var s models.SignOff
	if err := row.Scan(&s.ID, &s.TraineeID, &s.TaskID, &s.SignedBy, &s.SignedAt, &s.Score, &s.Notes); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepo) GetSignOff(ctx context.Context, traineeID, taskID int64) (*models.SignOff, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+signoffCols+` FROM signoffs WHERE trainee_id = ? AND task_id = ?`, traineeID, taskID)
	s, err := scanSignOff(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// UpsertSignOff creates the sign-off row or overwrites signer/score/notes on
// an existing one. SignedAt is write-once: updates never touch it. A unique
// constraint violation from a concurrent create for the same pair is
// absorbed and treated as an update.
func (r *SQLiteRepo) UpsertSignOff(ctx context.Context, s *models.SignOff) (bool, error) {
	if s == nil {
		return false, errors.New("nil signoff")
	}

	existing, err := r.GetSignOff(ctx, s.TraineeID, s.TaskID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		s.SignedAt = now()
		res, err := r.conn.Exec(ctx, `INSERT INTO signoffs (trainee_id, task_id, signed_by, signed_at, score, notes) VALUES (?, ?, ?, ?, ?, ?)`,
			s.TraineeID, s.TaskID, s.SignedBy, s.SignedAt, s.Score, s.Notes)
		if err == nil {
			id, err := res.LastInsertId()
			if err != nil {
				return false, err
			}
			s.ID = id
			return true, nil
		}
		if !isUniqueViolation(err) {
			return false, fmt.Errorf("insert signoff: %w", err)
		}
		// lost the race: another request created the row first, fall
		// through to the update path
	}

	if _, err := r.conn.Exec(ctx, `UPDATE signoffs SET signed_by = ?, score = ?, notes = ? WHERE trainee_id = ? AND task_id = ?`,
		s.SignedBy, s.Score, s.Notes, s.TraineeID, s.TaskID); err != nil {
		return false, fmt.Errorf("update signoff: %w", err)
	}
	updated, err := r.GetSignOff(ctx, s.TraineeID, s.TaskID)
	if err != nil {
		return false, err
	}
	if updated != nil {
		*s = *updated
	}
	return false, nil
}

func (r *SQLiteRepo) ListSignOffsByTrainee(ctx context.Context, traineeID int64) ([]models.SignOff, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+signoffCols+` FROM signoffs WHERE trainee_id = ? ORDER BY signed_at DESC`, traineeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SignOff
	for rows.Next() {
		s, err := scanSignOff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) CountSignedTasks(ctx context.Context, traineeID int64) (int, error) {
	var count int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(DISTINCT task_id) FROM signoffs WHERE trainee_id = ?`, traineeID)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Unsign snapshots the current sign-off for the pair into unsign_logs and
// deletes the row, as one transaction. The audit insert happens before the
// delete so a failure can never lose the snapshot. Returns nil when no
// sign-off exists.
func (r *SQLiteRepo) Unsign(ctx context.Context, traineeID, taskID int64, unsignedBy *int64, reason string) (*models.UnsignLog, error) {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+signoffCols+` FROM signoffs WHERE trainee_id = ? AND task_id = ?`, traineeID, taskID)
	s, err := scanSignOff(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("read signoff: %w", err)
	}

	log := &models.UnsignLog{
		TraineeID:        traineeID,
		TaskID:           taskID,
		OriginalSignedBy: s.SignedBy,
		OriginalSignedAt: s.SignedAt,
		OriginalScore:    s.Score,
		OriginalNotes:    s.Notes,
		UnsignedBy:       unsignedBy,
		UnsignedAt:       now(),
		Reason:           reason,
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO unsign_logs (trainee_id, task_id, original_signed_by, original_signed_at, original_score, original_notes, unsigned_by, unsigned_at, reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.TraineeID, log.TaskID, log.OriginalSignedBy, log.OriginalSignedAt, log.OriginalScore, log.OriginalNotes, log.UnsignedBy, log.UnsignedAt, log.Reason)
	if err != nil {
		return nil, fmt.Errorf("write unsign log: %w", err)
	}
	logID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	log.ID = logID

	if _, err := tx.ExecContext(ctx, `DELETE FROM signoffs WHERE id = ?`, s.ID); err != nil {
		return nil, fmt.Errorf("delete signoff: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return log, nil
}

func (r *SQLiteRepo) ListUnsignLogs(ctx context.Context, traineeID int64) ([]models.UnsignLog, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, trainee_id, task_id, original_signed_by, original_signed_at, original_score, original_notes, unsigned_by, unsigned_at, reason FROM unsign_logs WHERE trainee_id = ? ORDER BY unsigned_at DESC`, traineeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UnsignLog
	for rows.Next() {
		var l models.UnsignLog
		if err := rows.Scan(&l.ID, &l.TraineeID, &l.TaskID, &l.OriginalSignedBy, &l.OriginalSignedAt, &l.OriginalScore, &l.OriginalNotes, &l.UnsignedBy, &l.UnsignedAt, &l.Reason); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// BulkUpsertSignOffs applies every row inside one transaction and reports
// how many would be created vs updated. When abort is true the transaction
// is rolled back after the counting pass, so callers still get the attempted
// counts while the ledger stays untouched.
func (r *SQLiteRepo) BulkUpsertSignOffs(ctx context.Context, signoffRows []*models.SignOff, abort bool) (int, int, error) {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	created, updated := 0, 0
	ts := now()
	for _, s := range signoffRows {
		var existingID int64
		row := tx.QueryRowContext(ctx, `SELECT id FROM signoffs WHERE trainee_id = ? AND task_id = ?`, s.TraineeID, s.TaskID)
		err := row.Scan(&existingID)
		switch {
		case err == sql.ErrNoRows:
			if _, err := tx.ExecContext(ctx, `INSERT INTO signoffs (trainee_id, task_id, signed_by, signed_at, score, notes) VALUES (?, ?, ?, ?, ?, ?)`,
				s.TraineeID, s.TaskID, s.SignedBy, ts, s.Score, s.Notes); err != nil {
				return created, updated, fmt.Errorf("bulk insert signoff: %w", err)
			}
			created++
		case err != nil:
			return created, updated, fmt.Errorf("bulk check signoff: %w", err)
		default:
			if _, err := tx.ExecContext(ctx, `UPDATE signoffs SET signed_by = ?, score = ?, notes = ? WHERE id = ?`,
				s.SignedBy, s.Score, s.Notes, existingID); err != nil {
				return created, updated, fmt.Errorf("bulk update signoff: %w", err)
			}
			updated++
		}
	}

	if abort {
		// deliberate rollback: a hard validation error elsewhere in the
		// batch voids every row, counts are diagnostic only
		return created, updated, nil
	}
	if err := tx.Commit(); err != nil {
		return created, updated, fmt.Errorf("commit: %w", err)
	}
	return created, updated, nil
}
