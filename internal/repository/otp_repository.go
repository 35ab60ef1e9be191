package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/taskflow/internal/model"
)

// OTPRepo persists one verification code per email in `otps`.
type OTPRepo struct{ DB *sql.DB }

func NewOTPRepo(db *sql.DB) *OTPRepo { return &OTPRepo{DB: db} }

// Upsert stores a fresh code for o.Email, resetting the attempt counter.
func (r *OTPRepo) Upsert(ctx context.Context, o model.OTP) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO otps (email,code_hash,attempts,expires_at) VALUES (?,?,0,?)
		 ON DUPLICATE KEY UPDATE code_hash=VALUES(code_hash), attempts=0, expires_at=VALUES(expires_at), created_at=CURRENT_TIMESTAMP`,
		normalizeEmail(o.Email), o.CodeHash, o.ExpiresAt.UTC())
	return err
}

// Get returns the pending code for email.
func (r *OTPRepo) Get(ctx context.Context, email string) (model.OTP, error) {
	var o model.OTP
	err := r.DB.QueryRowContext(ctx,
		"SELECT email,code_hash,attempts,expires_at,created_at FROM otps WHERE email=? LIMIT 1",
		normalizeEmail(email)).Scan(&o.Email, &o.CodeHash, &o.Attempts, &o.ExpiresAt, &o.CreatedAt)
	if err != nil {
		return model.OTP{}, notFound(err)
	}
	return o, nil
}

// IncrementAttempts records a failed verification.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, email string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE otps SET attempts=attempts+1 WHERE email=?", normalizeEmail(email))
	return err
}

// Delete removes the code for email.
func (r *OTPRepo) Delete(ctx context.Context, email string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM otps WHERE email=?", normalizeEmail(email))
	return err
}

// PurgeExpired removes codes that expired before now.
func (r *OTPRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM otps WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
