package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/migrate"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, migrate.Apply(ctx, pool, nil))
	_, err = pool.Exec(ctx, `TRUNCATE sessions`)
	require.NoError(t, err)

	store := NewPostgresStore(pool)
	m := NewManager(store, time.Hour, nil, nil)

	s, err := m.Issue(ctx, 5, "emilys", "Emily")
	require.NoError(t, err)
	got, err := m.Validate(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "Emily", got.FirstName)

	require.NoError(t, store.Set(ctx, Session{Token: "stale", UserID: 1, Username: "old"}, -time.Minute))
	_, err = store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrInvalidToken)
	pruned, err := store.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	require.NoError(t, m.Invalidate(ctx, s.Token, "logout"))
	_, err = store.Get(ctx, s.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
