package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rtclab/traineetracker/internal/models"
)

const traineeCols = `id, badge_number, first_name, last_name, cohort_id, is_active, date_added`

func scanTrainee(row interface{ Scan(...any) error }) (*models.Trainee, error) {
	var t models.Trainee
	if err := row.Scan(&t.ID, &t.BadgeNumber, &t.FirstName, &t.LastName, &t.CohortID, &t.IsActive, &t.DateAdded); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepo) CreateTrainee(ctx context.Context, t *models.Trainee) (int64, error) {
	if t == nil {
		return 0, errors.New("nil trainee")
	}
	t.BadgeNumber = models.NormalizeTraineeBadge(t.BadgeNumber)
	t.DateAdded = now()
	res, err := r.conn.Exec(ctx, `INSERT INTO trainees (badge_number, first_name, last_name, cohort_id, is_active, date_added) VALUES (?, ?, ?, ?, ?, ?)`,
		t.BadgeNumber, t.FirstName, t.LastName, t.CohortID, t.IsActive, t.DateAdded)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("trainee with badge %s %w", t.BadgeNumber, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert trainee: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

// UpdateTrainee rewrites the mutable fields. DateAdded is create-only.
func (r *SQLiteRepo) UpdateTrainee(ctx context.Context, t *models.Trainee) error {
	if t == nil {
		return errors.New("nil trainee")
	}
	t.BadgeNumber = models.NormalizeTraineeBadge(t.BadgeNumber)
	_, err := r.conn.Exec(ctx, `UPDATE trainees SET badge_number = ?, first_name = ?, last_name = ?, cohort_id = ?, is_active = ? WHERE id = ?`,
		t.BadgeNumber, t.FirstName, t.LastName, t.CohortID, t.IsActive, t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("trainee with badge %s %w", t.BadgeNumber, ErrDuplicate)
		}
		return fmt.Errorf("update trainee: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) GetTraineeByID(ctx context.Context, id int64) (*models.Trainee, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+traineeCols+` FROM trainees WHERE id = ?`, id)
	t, err := scanTrainee(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *SQLiteRepo) GetTraineeByBadge(ctx context.Context, badge string) (*models.Trainee, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+traineeCols+` FROM trainees WHERE badge_number = ?`, models.NormalizeTraineeBadge(badge))
	t, err := scanTrainee(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// GetTraineesByIDs returns the trainees matching ids, ordered by badge number.
// Missing or (optionally) inactive rows are simply absent from the result;
// callers compare counts to detect that.
func (r *SQLiteRepo) GetTraineesByIDs(ctx context.Context, ids []int64, activeOnly bool) ([]models.Trainee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := `SELECT ` + traineeCols + ` FROM trainees WHERE id IN (` + placeholders + `)`
	if activeOnly {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY badge_number`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Trainee
	for rows.Next() {
		t, err := scanTrainee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) ListTraineesByCohort(ctx context.Context, cohortID int64, activeOnly bool) ([]models.Trainee, error) {
	q := `SELECT ` + traineeCols + ` FROM trainees WHERE cohort_id = ?`
	if activeOnly {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY badge_number`
	rows, err := r.conn.QueryRows(ctx, q, cohortID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Trainee
	for rows.Next() {
		t, err := scanTrainee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// SearchTrainees matches active trainees by badge number or name fragment,
// case-insensitive, ordered by cohort then badge.
func (r *SQLiteRepo) SearchTrainees(ctx context.Context, query string) ([]models.Trainee, error) {
	like := "%" + strings.TrimSpace(query) + "%"
	rows, err := r.conn.QueryRows(ctx, `SELECT t.id, t.badge_number, t.first_name, t.last_name, t.cohort_id, t.is_active, t.date_added
		FROM trainees t JOIN cohorts c ON c.id = t.cohort_id
		WHERE t.is_active = 1 AND (t.badge_number LIKE ? OR t.first_name LIKE ? COLLATE NOCASE OR t.last_name LIKE ? COLLATE NOCASE)
		ORDER BY c.year, c.semester_order, t.badge_number`, like, like, like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Trainee
	for rows.Next() {
		t, err := scanTrainee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) ListBadgeNumbers(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT badge_number FROM trainees WHERE badge_number LIKE ? ORDER BY badge_number`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
