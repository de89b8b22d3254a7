package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rtclab/traineetracker/internal/models"
)

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, errors.New("nil user")
	}
	u.Created = now()
	res, err := r.conn.Exec(ctx, `INSERT INTO users (username, first_name, last_name, password_hash, is_staff, is_superuser, is_active, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.FirstName, u.LastName, u.PasswordHash, u.IsStaff, u.IsSuperuser, u.IsActive, u.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("username %q %w", u.Username, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

const userCols = `id, username, first_name, last_name, password_hash, is_staff, is_superuser, is_active, created`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsStaff, &u.IsSuperuser, &u.IsActive, &u.Created); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns the user with their optional staff profile attached,
// or nil when no such user exists.
func (r *SQLiteRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := r.attachProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *SQLiteRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := r.attachProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *SQLiteRepo) attachProfile(ctx context.Context, u *models.User) error {
	row := r.conn.QueryRow(ctx, `SELECT id, user_id, initials, can_sign_off FROM staff_profiles WHERE user_id = ?`, u.ID)
	var p models.StaffProfile
	if err := row.Scan(&p.ID, &p.UserID, &p.Initials, &p.CanSignOff); err != nil {
		if err == sql.ErrNoRows {
			u.Profile = nil
			return nil
		}
		return err
	}
	u.Profile = &p
	return nil
}

func (r *SQLiteRepo) UpsertStaffProfile(ctx context.Context, p *models.StaffProfile) (int64, error) {
	if p == nil {
		return 0, errors.New("nil staff profile")
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO staff_profiles (user_id, initials, can_sign_off) VALUES (?, ?, ?) ON CONFLICT(user_id) DO UPDATE SET initials = excluded.initials, can_sign_off = excluded.can_sign_off`,
		p.UserID, p.Initials, p.CanSignOff)
	if err != nil {
		return 0, fmt.Errorf("upsert staff profile: %w", err)
	}
	return res.LastInsertId()
}
