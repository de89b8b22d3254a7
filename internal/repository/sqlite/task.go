package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rtclab/traineetracker/internal/models"
)

// parkOrder is a temporary out-of-range slot used while resolving an order
// collision, so the task being moved never collides with the rows being
// shifted underneath it.
const parkOrder = 999999

// SaveTask inserts or updates a task. When the requested order collides with
// a different task, every task at or above the target order is shifted up by
// one, highest first, inside the same transaction. A save with no collision
// touches no other rows.
func (r *SQLiteRepo) SaveTask(ctx context.Context, t *models.Task) (int64, error) {
	if t == nil {
		return 0, errors.New("nil task")
	}

	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	orderChanged := true
	hadOldOrder := false
	if t.ID != 0 {
		var oldOrder int
		row := tx.QueryRowContext(ctx, `SELECT display_order FROM tasks WHERE id = ?`, t.ID)
		if err := row.Scan(&oldOrder); err != nil {
			if err != sql.ErrNoRows {
				return 0, fmt.Errorf("read old task order: %w", err)
			}
		} else {
			hadOldOrder = true
			orderChanged = oldOrder != t.Order
		}
	}

	if orderChanged {
		var conflicts int
		row := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE display_order = ? AND id != ?`, t.Order, t.ID)
		if err := row.Scan(&conflicts); err != nil {
			return 0, fmt.Errorf("check order conflict: %w", err)
		}

		if conflicts > 0 {
			// vacate this task's own slot first so the shift below cannot
			// trip over it
			if hadOldOrder {
				if _, err := tx.ExecContext(ctx, `UPDATE tasks SET display_order = ? WHERE id = ?`, parkOrder, t.ID); err != nil {
					return 0, fmt.Errorf("park task order: %w", err)
				}
			}

			// shift highest first to avoid transient duplicate orders
			rows, err := tx.QueryContext(ctx, `SELECT id, display_order FROM tasks WHERE display_order >= ? AND display_order < ? AND id != ? ORDER BY display_order DESC`, t.Order, parkOrder, t.ID)
			if err != nil {
				return 0, fmt.Errorf("list tasks to shift: %w", err)
			}
			type shift struct {
				id    int64
				order int
			}
			var shifts []shift
			for rows.Next() {
				var s shift
				if err := rows.Scan(&s.id, &s.order); err != nil {
					rows.Close()
					return 0, err
				}
				shifts = append(shifts, s)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return 0, err
			}
			rows.Close()

			for _, s := range shifts {
				if _, err := tx.ExecContext(ctx, `UPDATE tasks SET display_order = ? WHERE id = ?`, s.order+1, s.id); err != nil {
					return 0, fmt.Errorf("shift task %d: %w", s.id, err)
				}
			}
		}
	}

	if t.ID == 0 {
		res, err := tx.ExecContext(ctx, `INSERT INTO tasks (display_order, name, description, category, requires_score, minimum_score, is_active) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.Order, t.Name, t.Description, t.Category, t.RequiresScore, t.MinimumScore, t.IsActive)
		if err != nil {
			return 0, fmt.Errorf("insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		t.ID = id
	} else {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET display_order = ?, name = ?, description = ?, category = ?, requires_score = ?, minimum_score = ?, is_active = ? WHERE id = ?`,
			t.Order, t.Name, t.Description, t.Category, t.RequiresScore, t.MinimumScore, t.IsActive, t.ID); err != nil {
			return 0, fmt.Errorf("update task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return t.ID, nil
}

const taskCols = `id, display_order, name, description, category, requires_score, minimum_score, is_active`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	var t models.Task
	if err := row.Scan(&t.ID, &t.Order, &t.Name, &t.Description, &t.Category, &t.RequiresScore, &t.MinimumScore, &t.IsActive); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepo) GetTaskByID(ctx context.Context, id int64) (*models.Task, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := r.loadTaskSigners(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLiteRepo) GetTasksByIDs(ctx context.Context, ids []int64, activeOnly bool) ([]models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := `SELECT ` + taskCols + ` FROM tasks WHERE id IN (` + placeholders + `)`
	if activeOnly {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY display_order`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.queryTasks(ctx, q, args...)
}

func (r *SQLiteRepo) ListTasks(ctx context.Context, activeOnly bool) ([]models.Task, error) {
	q := `SELECT ` + taskCols + ` FROM tasks`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY display_order`
	return r.queryTasks(ctx, q)
}

func (r *SQLiteRepo) queryTasks(ctx context.Context, q string, args ...any) ([]models.Task, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadTaskSigners(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *SQLiteRepo) loadTaskSigners(ctx context.Context, t *models.Task) error {
	rows, err := r.conn.QueryRows(ctx, `SELECT user_id FROM task_signers WHERE task_id = ? ORDER BY user_id`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	t.SignerIDs = nil
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		t.SignerIDs = append(t.SignerIDs, id)
	}
	return rows.Err()
}

// SetTaskSigners replaces the authorized signer set for a task.
func (r *SQLiteRepo) SetTaskSigners(ctx context.Context, taskID int64, userIDs []int64) error {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_signers WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear task signers: %w", err)
	}
	for _, uid := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_signers (task_id, user_id) VALUES (?, ?)`, taskID, uid); err != nil {
			return fmt.Errorf("add task signer: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepo) CountActiveTasks(ctx context.Context) (int, error) {
	var count int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM tasks WHERE is_active = 1`)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
