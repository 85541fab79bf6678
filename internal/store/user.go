package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/reckon-app/apiserver/internal/db"
	"github.com/reckon-app/apiserver/types"
)

const uniqueViolation = "23505"

const userColumns = `id, email, hashed_password, full_name, is_active, is_superuser, created_at, updated_at`

// UserUpdate lists the columns an update may change. Nil fields keep their
// stored value.
type UserUpdate struct {
	Email        *string
	PasswordHash *string
	FullName     *string
	IsActive     *bool
	IsSuperuser  *bool
}

// UserRepository handles persistence for users.
type UserRepository struct {
	conn db.DBTX
}

func NewUserRepository(conn db.DBTX) *UserRepository {
	return &UserRepository{conn: conn}
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.User{}, wrapQueryErr("get user by id", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.conn.QueryRowContext(ctx, query, NormalizeEmail(email)))
	if err != nil {
		return types.User{}, wrapQueryErr("get user by email", err)
	}
	return user, nil
}

// List returns users in insertion order.
func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 100
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY id OFFSET $1 LIMIT $2`
	rows, err := r.conn.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create inserts user and returns it with the generated id and timestamps.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.PasswordHash == "" {
		return types.User{}, errors.New("create user: password hash is required")
	}

	query := `
		INSERT INTO users (email, hashed_password, full_name, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	created, err := scanUser(r.conn.QueryRowContext(
		ctx,
		query,
		NormalizeEmail(user.Email),
		user.PasswordHash,
		user.FullName,
		user.IsActive,
		user.IsSuperuser,
	))
	if err != nil {
		return types.User{}, wrapQueryErr("create user", err)
	}
	return created, nil
}

// Update applies the non-nil fields of u to the user with id in a single
// statement and returns the stored row. updated_at always advances.
func (r *UserRepository) Update(ctx context.Context, id int64, u UserUpdate) (types.User, error) {
	if u.Email != nil {
		email := NormalizeEmail(*u.Email)
		u.Email = &email
	}

	query := `
		UPDATE users
		SET email = COALESCE($1, email),
			hashed_password = COALESCE($2, hashed_password),
			full_name = COALESCE($3, full_name),
			is_active = COALESCE($4, is_active),
			is_superuser = COALESCE($5, is_superuser),
			updated_at = NOW()
		WHERE id = $6
		RETURNING ` + userColumns
	updated, err := scanUser(r.conn.QueryRowContext(
		ctx,
		query,
		u.Email,
		u.PasswordHash,
		u.FullName,
		u.IsActive,
		u.IsSuperuser,
		id,
	))
	if err != nil {
		return types.User{}, wrapQueryErr("update user", err)
	}
	return updated, nil
}

// Delete removes the user and returns the row as it was before deletion.
func (r *UserRepository) Delete(ctx context.Context, id int64) (types.User, error) {
	query := `DELETE FROM users WHERE id = $1 RETURNING ` + userColumns
	deleted, err := scanUser(r.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.User{}, wrapQueryErr("delete user", err)
	}
	return deleted, nil
}

// Stats aggregates account counts. Users created at or after since count as recent.
func (r *UserRepository) Stats(ctx context.Context, since time.Time) (types.UserStats, error) {
	const query = `
		SELECT COUNT(1),
			COUNT(1) FILTER (WHERE is_active),
			COUNT(1) FILTER (WHERE is_superuser),
			COUNT(1) FILTER (WHERE created_at >= $1)
		FROM users`
	var stats types.UserStats
	if err := r.conn.QueryRowContext(ctx, query, since).Scan(
		&stats.Total,
		&stats.Active,
		&stats.Superusers,
		&stats.CreatedLast,
	); err != nil {
		return types.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.IsActive,
		&user.IsSuperuser,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func wrapQueryErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", op, err)
}
