package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rtclab/traineetracker/internal/models"
)

func (r *SQLiteRepo) CreateAdvancedStaff(ctx context.Context, s *models.AdvancedStaff) (int64, error) {
	if s == nil {
		return 0, errors.New("nil advanced staff")
	}
	s.BadgeNumber = models.NormalizeAdvancedBadge(s.BadgeNumber)
	if !models.ValidRole(s.Role) {
		s.Role = models.RoleOther
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO advanced_staff (badge_number, first_name, last_name, role, is_active) VALUES (?, ?, ?, ?, ?)`,
		s.BadgeNumber, s.FirstName, s.LastName, s.Role, s.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("advanced staff with badge %s %w", s.BadgeNumber, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert advanced staff: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.ID = id
	return id, nil
}

func (r *SQLiteRepo) UpdateAdvancedStaff(ctx context.Context, s *models.AdvancedStaff) error {
	if s == nil {
		return errors.New("nil advanced staff")
	}
	s.BadgeNumber = models.NormalizeAdvancedBadge(s.BadgeNumber)
	if !models.ValidRole(s.Role) {
		s.Role = models.RoleOther
	}
	_, err := r.conn.Exec(ctx, `UPDATE advanced_staff SET badge_number = ?, first_name = ?, last_name = ?, role = ?, is_active = ? WHERE id = ?`,
		s.BadgeNumber, s.FirstName, s.LastName, s.Role, s.IsActive, s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("advanced staff with badge %s %w", s.BadgeNumber, ErrDuplicate)
		}
		return fmt.Errorf("update advanced staff: %w", err)
	}
	return nil
}

const advStaffCols = `id, badge_number, first_name, last_name, role, is_active`

func scanAdvancedStaff(row interface{ Scan(...any) error }) (*models.AdvancedStaff, error) {
	var s models.AdvancedStaff
	if err := row.Scan(&s.ID, &s.BadgeNumber, &s.FirstName, &s.LastName, &s.Role, &s.IsActive); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepo) GetAdvancedStaffByID(ctx context.Context, id int64) (*models.AdvancedStaff, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+advStaffCols+` FROM advanced_staff WHERE id = ?`, id)
	s, err := scanAdvancedStaff(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *SQLiteRepo) GetAdvancedStaffByBadge(ctx context.Context, badge string) (*models.AdvancedStaff, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+advStaffCols+` FROM advanced_staff WHERE badge_number = ?`, models.NormalizeAdvancedBadge(badge))
	s, err := scanAdvancedStaff(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *SQLiteRepo) ListAdvancedStaff(ctx context.Context, activeOnly bool) ([]models.AdvancedStaff, error) {
	q := `SELECT ` + advStaffCols + ` FROM advanced_staff`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY badge_number`
	rows, err := r.conn.QueryRows(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AdvancedStaff
	for rows.Next() {
		s, err := scanAdvancedStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

const trainingTypeCols = `id, name, display_order, allows_custom_type, is_active`

func scanTrainingType(row interface{ Scan(...any) error }) (*models.AdvancedTrainingType, error) {
	var t models.AdvancedTrainingType
	if err := row.Scan(&t.ID, &t.Name, &t.Order, &t.AllowsCustomType, &t.IsActive); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepo) ListTrainingTypes(ctx context.Context, activeOnly bool) ([]models.AdvancedTrainingType, error) {
	q := `SELECT ` + trainingTypeCols + ` FROM advanced_training_types`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY display_order, name`
	rows, err := r.conn.QueryRows(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AdvancedTrainingType
	for rows.Next() {
		t, err := scanTrainingType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadTrainingTypeSigners(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *SQLiteRepo) GetTrainingTypeByID(ctx context.Context, id int64) (*models.AdvancedTrainingType, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+trainingTypeCols+` FROM advanced_training_types WHERE id = ?`, id)
	t, err := scanTrainingType(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := r.loadTrainingTypeSigners(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLiteRepo) GetTrainingTypeByName(ctx context.Context, name string) (*models.AdvancedTrainingType, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+trainingTypeCols+` FROM advanced_training_types WHERE name = ?`, name)
	t, err := scanTrainingType(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := r.loadTrainingTypeSigners(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLiteRepo) loadTrainingTypeSigners(ctx context.Context, t *models.AdvancedTrainingType) error {
	rows, err := r.conn.QueryRows(ctx, `SELECT user_id FROM advanced_training_type_signers WHERE training_type_id = ? ORDER BY user_id`, t.ID)
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

// SetTrainingTypeSigners replaces the authorized signer set for a type.
func (r *SQLiteRepo) SetTrainingTypeSigners(ctx context.Context, typeID int64, userIDs []int64) error {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM advanced_training_type_signers WHERE training_type_id = ?`, typeID); err != nil {
		return fmt.Errorf("clear training type signers: %w", err)
	}
	for _, uid := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO advanced_training_type_signers (training_type_id, user_id) VALUES (?, ?)`, typeID, uid); err != nil {
			return fmt.Errorf("add training type signer: %w", err)
		}
	}
	return tx.Commit()
}

const trainingCols = `id, staff_id, training_type_id, custom_type, completion_date, approver_initials, termination_date, notes, created, updated`

func scanTraining(row interface{ Scan(...any) error }) (*models.AdvancedTraining, error) {
	var t models.AdvancedTraining
	var completion, termination *string
	if err := row.Scan(&t.ID, &t.StaffID, &t.TrainingTypeID, &t.CustomType, &completion, &t.ApproverInitials, &termination, &t.Notes, &t.Created, &t.Updated); err != nil {
		return nil, err
	}
	var err error
	if t.CompletionDate, err = parseDate(completion); err != nil {
		return nil, fmt.Errorf("parse completion date: %w", err)
	}
	if t.TerminationDate, err = parseDate(termination); err != nil {
		return nil, fmt.Errorf("parse termination date: %w", err)
	}
	return &t, nil
}

// UpsertTraining creates or overwrites the record keyed by
// (staff, training type, custom type).
func (r *SQLiteRepo) UpsertTraining(ctx context.Context, t *models.AdvancedTraining) (bool, error) {
	if t == nil {
		return false, errors.New("nil training")
	}
	ts := now()
	var existingID int64
	row := r.conn.QueryRow(ctx, `SELECT id FROM advanced_trainings WHERE staff_id = ? AND training_type_id = ? AND custom_type = ?`,
		t.StaffID, t.TrainingTypeID, t.CustomType)
	err := row.Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		t.Created = ts
		t.Updated = ts
		res, err := r.conn.Exec(ctx, `INSERT INTO advanced_trainings (staff_id, training_type_id, custom_type, completion_date, approver_initials, termination_date, notes, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.StaffID, t.TrainingTypeID, t.CustomType, dateArg(t.CompletionDate), t.ApproverInitials, dateArg(t.TerminationDate), t.Notes, t.Created, t.Updated)
		if err != nil {
			if isUniqueViolation(err) {
				// concurrent create, retry as update
				return r.UpsertTraining(ctx, t)
			}
			return false, fmt.Errorf("insert training: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return false, err
		}
		t.ID = id
		return true, nil
	case err != nil:
		return false, err
	default:
		t.ID = existingID
		t.Updated = ts
		if _, err := r.conn.Exec(ctx, `UPDATE advanced_trainings SET completion_date = ?, approver_initials = ?, termination_date = ?, notes = ?, updated = ? WHERE id = ?`,
			dateArg(t.CompletionDate), t.ApproverInitials, dateArg(t.TerminationDate), t.Notes, t.Updated, t.ID); err != nil {
			return false, fmt.Errorf("update training: %w", err)
		}
		return false, nil
	}
}

func (r *SQLiteRepo) DeleteTraining(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM advanced_trainings WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepo) ListTrainingsByStaff(ctx context.Context, staffID int64) ([]models.AdvancedTraining, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+trainingCols+` FROM advanced_trainings WHERE staff_id = ? ORDER BY completion_date DESC`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AdvancedTraining
	for rows.Next() {
		t, err := scanTraining(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
