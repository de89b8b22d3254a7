package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rtclab/traineetracker/internal/models"
)

// ErrCohortHasTrainees is returned when deleting a cohort that still owns
// trainee records. Deletes never cascade into the trainee registry.
var ErrCohortHasTrainees = errors.New("cohort still has trainees")

// CreateCohort inserts a cohort. SemesterOrder is always recomputed from the
// semester, never trusted from the caller.
func (r *SQLiteRepo) CreateCohort(ctx context.Context, c *models.Cohort) (int64, error) {
	if c == nil {
		return 0, errors.New("nil cohort")
	}
	c.SemesterOrder = models.SemesterOrder(c.Semester)
	res, err := r.conn.Exec(ctx, `INSERT INTO cohorts (name, year, semester, semester_order, is_current_override) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Year, c.Semester, c.SemesterOrder, c.IsCurrentOverride)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("cohort with that name or (year, semester) %w", ErrDuplicate)
		}
		return 0, fmt.Errorf("insert cohort: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

func (r *SQLiteRepo) UpdateCohort(ctx context.Context, c *models.Cohort) error {
	if c == nil {
		return errors.New("nil cohort")
	}
	c.SemesterOrder = models.SemesterOrder(c.Semester)
	_, err := r.conn.Exec(ctx, `UPDATE cohorts SET name = ?, year = ?, semester = ?, semester_order = ?, is_current_override = ? WHERE id = ?`,
		c.Name, c.Year, c.Semester, c.SemesterOrder, c.IsCurrentOverride, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("cohort with that name or (year, semester) %w", ErrDuplicate)
		}
		return fmt.Errorf("update cohort: %w", err)
	}
	return nil
}

const cohortCols = `id, name, year, semester, semester_order, is_current_override`

func scanCohort(row interface{ Scan(...any) error }) (*models.Cohort, error) {
	var c models.Cohort
	if err := row.Scan(&c.ID, &c.Name, &c.Year, &c.Semester, &c.SemesterOrder, &c.IsCurrentOverride); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLiteRepo) GetCohortByID(ctx context.Context, id int64) (*models.Cohort, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+cohortCols+` FROM cohorts WHERE id = ?`, id)
	c, err := scanCohort(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *SQLiteRepo) GetCohortByName(ctx context.Context, name string) (*models.Cohort, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+cohortCols+` FROM cohorts WHERE name = ?`, name)
	c, err := scanCohort(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListCohorts returns all cohorts newest first (year desc, Fall before Spring).
func (r *SQLiteRepo) ListCohorts(ctx context.Context) ([]models.Cohort, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+cohortCols+` FROM cohorts ORDER BY year DESC, semester_order DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Cohort
	for rows.Next() {
		c, err := scanCohort(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CurrentCohort resolves the active cohort for the given day. A manual
// override wins; ties between multiple overrides resolve to the newest
// cohort. Otherwise the first cohort whose period contains the day wins,
// and when none does, the newest cohort is returned.
func (r *SQLiteRepo) CurrentCohort(ctx context.Context, today time.Time) (*models.Cohort, error) {
	cohorts, err := r.ListCohorts(ctx)
	if err != nil {
		return nil, err
	}
	if len(cohorts) == 0 {
		return nil, nil
	}
	for i := range cohorts {
		if cohorts[i].IsCurrentOverride {
			return &cohorts[i], nil
		}
	}
	for i := range cohorts {
		if cohorts[i].IsCurrent(today) {
			return &cohorts[i], nil
		}
	}
	return &cohorts[0], nil
}

// DeleteCohort removes a cohort unless trainees still reference it.
func (r *SQLiteRepo) DeleteCohort(ctx context.Context, id int64) error {
	var count int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM trainees WHERE cohort_id = ?`, id)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("count cohort trainees: %w", err)
	}
	if count > 0 {
		return ErrCohortHasTrainees
	}
	_, err := r.conn.Exec(ctx, `DELETE FROM cohorts WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepo) CountActiveTrainees(ctx context.Context, cohortID int64) (int, error) {
	var count int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM trainees WHERE cohort_id = ? AND is_active = 1`, cohortID)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
