package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/events"
)

func TestManagerIssueValidateInvalidate(t *testing.T) {
	ctx := context.Background()
	rec := &events.Recorder{}
	m := NewManager(NewMemoryStore(), time.Hour, rec, nil)

	var ended []string
	m.OnInvalidate(func(s Session, reason string) {
		ended = append(ended, s.Username+":"+reason)
	})

	s, err := m.Issue(ctx, 1, "emilys", "Emily")
	require.NoError(t, err)
	assert.Len(t, s.Token, 43)

	got, err := m.Validate(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UserID)
	assert.Equal(t, "Emily", got.FirstName)

	require.NoError(t, m.Invalidate(ctx, s.Token, "logout"))
	_, err = m.Validate(ctx, s.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.Equal(t, []string{"emilys:logout"}, ended)
	assert.Equal(t, []string{events.SubjectSessionInvalidated}, rec.Subjects())
	assert.Equal(t, events.SessionEvent{UserID: 1, Reason: "logout"}, rec.Messages()[0].Payload)

	assert.ErrorIs(t, m.Invalidate(ctx, s.Token, "logout"), ErrInvalidToken)
	_, err = m.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionsExpire(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	m := NewManager(store, time.Minute, &events.Recorder{}, nil)
	m.now = store.now

	s, err := m.Issue(ctx, 2, "michaelw", "")
	require.NoError(t, err)
	_, err = m.Validate(ctx, s.Token)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Validate(ctx, s.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := ConnectRedis(ctx, addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisStore(client)
	s := Session{Token: "test-token", UserID: 3, Username: "sophiab", ExpiresAt: time.Now().Add(time.Minute).UTC().Truncate(time.Second)}
	require.NoError(t, store.Set(ctx, s, time.Minute))

	got, err := store.Get(ctx, "test-token")
	require.NoError(t, err)
	assert.Equal(t, s.Username, got.Username)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	ttl, err := client.TTL(ctx, "storefront:session:test-token").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	require.NoError(t, store.Clear(ctx, "test-token"))
	_, err = store.Get(ctx, "test-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
