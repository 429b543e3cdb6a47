package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
)

const userColumns = `id, username, password_hash, full_name, role, branch_id, student_id, active, created_at, updated_at`

// UserRepository provides database access for logins.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByStudentID returns the login linked to a student.
func (r *UserRepository) FindByStudentID(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE student_id = $1 LIMIT 1`
	var user models.User
	if err := sqlx.GetContext(ctx, r.exec(exec), &user, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by student: %w", err)
	}
	return &user, nil
}

// UsernameExists reports whether a username is taken.
func (r *UserRepository) UsernameExists(ctx context.Context, exec sqlx.ExtContext, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, username); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// InsertIfAbsent creates the user unless the username or student link already exists.
// It reports false on conflict without aborting the surrounding transaction.
func (r *UserRepository) InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, user *models.User) (bool, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, username, password_hash, full_name, role, branch_id, student_id, active, created_at, updated_at)
VALUES (:id, :username, :password_hash, :full_name, :role, :branch_id, :student_id, :active, :created_at, :updated_at)
ON CONFLICT DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, user)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user rows affected: %w", err)
	}
	return affected == 1, nil
}
