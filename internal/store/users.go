package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/polica/internal/model"
)

const selectUsers = `SELECT id, username, password_hash, role, employee_id, created_at, deleted_at FROM users`

// NewUser is the input of CreateUser.
type NewUser struct {
	Username     string
	PasswordHash string
	Role         string
	EmployeeID   *int64
}

// CreateUser creates an account. A taken username yields ErrConflict and an
// unknown employee ErrNotFound.
func CreateUser(ctx context.Context, db *sql.DB, in NewUser) (*model.User, error) {
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username required", model.ErrValidation)
	}
	if !model.ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: invalid role %q", model.ErrValidation, in.Role)
	}

	var employee sql.NullInt64
	if in.EmployeeID != nil {
		employee = sql.NullInt64{Int64: *in.EmployeeID, Valid: true}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, employee_id) VALUES (?, ?, ?, ?)`,
		in.Username, in.PasswordHash, in.Role, employee,
	)
	switch {
	case isUniqueViolation(err):
		return nil, fmt.Errorf("%w: username %q is taken", model.ErrConflict, in.Username)
	case isForeignKeyViolation(err):
		return nil, fmt.Errorf("%w: employee %d", model.ErrNotFound, *in.EmployeeID)
	case err != nil:
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, including soft-deleted ones.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, selectUsers+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the active account with a username.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		selectUsers+` WHERE username = ? AND deleted_at IS NULL`, username,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", model.ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx, selectUsers+` WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return requireAffected(result, "user", id)
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return requireAffected(result, "user", id)
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var employee sql.NullInt64
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &employee, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	if employee.Valid {
		u.EmployeeID = &employee.Int64
	}
	return u, nil
}
