package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps sessions in the sessions table. Expired rows are ignored on read and
// removed by Prune.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (r *PostgresStore) Set(ctx context.Context, s Session, ttl time.Duration) error {
	const q = `
INSERT INTO sessions (token, user_id, username, first_name, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (token) DO UPDATE
SET user_id = EXCLUDED.user_id,
    username = EXCLUDED.username,
    first_name = EXCLUDED.first_name,
    expires_at = EXCLUDED.expires_at
`
	expires := time.Now().Add(ttl).UTC()
	if _, err := r.pool.Exec(ctx, q, s.Token, s.UserID, s.Username, s.FirstName, expires); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PostgresStore) Get(ctx context.Context, token string) (*Session, error) {
	const q = `
SELECT token, user_id, username, first_name, expires_at
FROM sessions
WHERE token = $1 AND expires_at > now()
LIMIT 1
`
	var out Session
	if err := r.pool.QueryRow(ctx, q, token).Scan(
		&out.Token,
		&out.UserID,
		&out.Username,
		&out.FirstName,
		&out.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	out.ExpiresAt = out.ExpiresAt.UTC()
	return &out, nil
}

func (r *PostgresStore) Clear(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Prune deletes expired sessions and reports how many were removed.
func (r *PostgresStore) Prune(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return cmd.RowsAffected(), nil
}
