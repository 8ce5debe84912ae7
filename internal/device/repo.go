package device

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rfidaccess/internal/store"
)

// Repository persists scanner devices and their refresh tokens.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

// Upsert ensures a device record exists.
func (r *Repository) Upsert(ctx context.Context, deviceID string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID, now)
	return store.ClassifyErr("upsert device", err)
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (device_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, deviceID, token, expiresAt.UTC())
	return store.ClassifyErr("save refresh token", err)
}

// ConsumeRefreshToken revokes token and reports whether it was live and owned by deviceID.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, deviceID, token string, now time.Time) (bool, error) {
	var owner string
	var expires time.Time
	var revoked bool
	err := r.db.QueryRowContext(ctx, `
		SELECT device_id, expires_at, revoked FROM refresh_tokens WHERE token = $1
	`, token).Scan(&owner, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, store.ClassifyErr("find refresh token", err)
	}
	if revoked || owner != deviceID || !expires.After(now) {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1 AND revoked = FALSE
	`, token)
	if err != nil {
		return false, store.ClassifyErr("revoke refresh token", err)
	}
	// a concurrent refresh may have won the race
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.ClassifyErr("revoke refresh token", err)
	}
	return n == 1, nil
}
