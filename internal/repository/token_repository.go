package repository

import (
	"context"
	"database/sql"
)

// TokenRepo persists the single refresh-token slot on users.refresh_token_hash.
// Each user has exactly one live refresh lineage; storing a new hash
// supersedes the previous token.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh unconditionally overwrites the user's refresh hash.  Used on
// login and verified-registration auto-login.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=? WHERE id=?", tokenHash, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// RefreshHash returns the stored hash, or "" after logout.
func (r *TokenRepo) RefreshHash(ctx context.Context, userID string) (string, error) {
	var h sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT refresh_token_hash FROM users WHERE id=? LIMIT 1", userID).Scan(&h)
	if err != nil {
		return "", notFound(err)
	}
	return h.String, nil
}

// SwapRefresh replaces oldHash with newHash only if oldHash is still the
// stored value.  It reports false when another rotation or a logout got
// there first, so at most one rotation of a given token can win.
func (r *TokenRepo) SwapRefresh(ctx context.Context, userID, oldHash, newHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=? WHERE id=? AND refresh_token_hash=?",
		newHash, userID, oldHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearRefresh empties the slot; the current refresh token stops working.
func (r *TokenRepo) ClearRefresh(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULL WHERE id=?", userID)
	return err
}
