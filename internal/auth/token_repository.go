package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// TokenRepository defines the interface for refresh token persistence.
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByToken(ctx context.Context, raw string) (*RefreshToken, error)
	RevokeAllActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error)
	Rotate(ctx context.Context, oldID int64, newToken *RefreshToken, now time.Time) error
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]RefreshToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored, only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

const tokenColumns = `id, token, user_id, expires_at, created_at, revoked_at`

// Create inserts a refresh token. TokenHash must already be set; ID and
// CreatedAt are populated from the new row.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	if err := insertToken(ctx, r.db, token); err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, db execer, token *RefreshToken) error {
	token.CreatedAt = time.Now().UTC().Truncate(time.Second)

	result, err := db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		token.TokenHash, token.UserID, formatTime(token.ExpiresAt), formatTime(token.CreatedAt),
	)
	if err != nil {
		return err
	}
	token.ID, err = result.LastInsertId()
	return err
}

// GetByToken looks a token up by the raw value the client presented.
// Unknown tokens yield ErrTokenInvalid. Revocation and expiry are not
// checked here; callers use RefreshToken.IsActive.
func (r *SQLiteTokenRepository) GetByToken(ctx context.Context, raw string) (*RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token = ?", HashToken(raw))
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("getting refresh token: %w", err)
	}
	return t, nil
}

// RevokeAllActiveForUser stamps revoked_at on every token of the user that
// is not already revoked. Already-revoked rows keep their original
// timestamp. Returns the number of tokens revoked.
func (r *SQLiteTokenRepository) RevokeAllActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL",
		formatTime(now), userID)
	if err != nil {
		return 0, fmt.Errorf("revoking tokens for user: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

// Rotate revokes oldID and inserts newToken in one transaction. If oldID
// was revoked in the meantime nothing is written and ErrTokenRevoked is
// returned.
func (r *SQLiteTokenRepository) Rotate(ctx context.Context, oldID int64, newToken *RefreshToken, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rotation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	result, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL",
		formatTime(now), oldID)
	if err != nil {
		return fmt.Errorf("revoking old token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrTokenRevoked
	}

	if err := insertToken(ctx, tx, newToken); err != nil {
		return fmt.Errorf("creating new token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rotation: %w", err)
	}
	return nil
}

// ListActiveByUser returns the user's unrevoked, unexpired tokens, newest first.
func (r *SQLiteTokenRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens
		 WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC, id DESC`, userID, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("listing active tokens: %w", err)
	}
	defer rows.Close()

	tokens := []RefreshToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}
	return tokens, nil
}

// DeleteExpired removes tokens that expired at or before now. Request
// handling never sweeps; this backs the prune-tokens command.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

func scanToken(s scanner) (*RefreshToken, error) {
	var t RefreshToken
	var expiresAt, createdAt string
	var revokedAt sql.NullString

	if err := s.Scan(&t.ID, &t.TokenHash, &t.UserID, &expiresAt, &createdAt, &revokedAt); err != nil {
		return nil, err
	}
	t.ExpiresAt = parseTime(expiresAt)
	t.CreatedAt = parseTime(createdAt)
	t.RevokedAt = parseNullTime(revokedAt)
	return &t, nil
}
