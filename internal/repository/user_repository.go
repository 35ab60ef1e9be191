package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/taskflow/internal/model"
)

const userColumns = "id,name,email,password_hash,verified,status,refresh_token_hash,created_at,updated_at"

// UserRepo persists the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u, assigning an id when empty.  A taken email yields
// ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = normalizeEmail(u.Email)
	if u.Status == "" {
		u.Status = model.UserActive
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id,name,email,password_hash,verified,status) VALUES (?,?,?,?,?,?)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.Verified, u.Status)
	if isDuplicate(err) {
		return ErrConflict
	}
	if err == nil {
		now := time.Now().UTC()
		u.CreatedAt, u.UpdatedAt = now, now
	}
	return err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email)))
}

// UpdateName changes the display name.
func (r *UserRepo) UpdateName(ctx context.Context, id, name string) error {
	return r.execOne(ctx, "UPDATE users SET name=? WHERE id=?", name, id)
}

// UpdatePassword replaces the bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.execOne(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
}

// SetStatus moves the account to status.  Rows are never deleted.
func (r *UserRepo) SetStatus(ctx context.Context, id string, status model.UserStatus) error {
	return r.execOne(ctx, "UPDATE users SET status=? WHERE id=?", status, id)
}

// MarkVerified flags the account of email as verified.
func (r *UserRepo) MarkVerified(ctx context.Context, email string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET verified=TRUE WHERE email=?", normalizeEmail(email))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (r *UserRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u       model.User
		refresh sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Verified, &u.Status,
		&refresh, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, notFound(err)
	}
	u.RefreshTokenHash = refresh.String
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
