// Package session keeps signed-in shoppers' sessions behind opaque bearer tokens.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/events"
	"storefront/internal/logging"
)

var ErrInvalidToken = errors.New("invalid token")

// Session is what the storefront remembers about a signed-in shopper.
type Session struct {
	Token     string    `json:"token"`
	UserID    int       `json:"userId"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists sessions by token. Get returns ErrInvalidToken for unknown or expired tokens.
type Store interface {
	Get(ctx context.Context, token string) (*Session, error)
	Set(ctx context.Context, s Session, ttl time.Duration) error
	Clear(ctx context.Context, token string) error
}

// Listener is told about every ended session.
type Listener func(s Session, reason string)

type Manager struct {
	store     Store
	ttl       time.Duration
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

func NewManager(store Store, ttl time.Duration, publisher events.Publisher, logger *zap.Logger) *Manager {
	logger = logging.OrNop(logger)
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &Manager{store: store, ttl: ttl, publisher: publisher, logger: logger, now: time.Now}
}

// OnInvalidate registers l to run after each Invalidate.
func (m *Manager) OnInvalidate(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Issue starts a session for the user and returns it with a fresh token.
func (m *Manager) Issue(ctx context.Context, userID int, username, firstName string) (Session, error) {
	token, err := randomToken()
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}
	s := Session{
		Token:     token,
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		ExpiresAt: m.now().Add(m.ttl).UTC(),
	}
	if err := m.store.Set(ctx, s, m.ttl); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	m.logger.Info("session issued", zap.Int("user_id", userID))
	return s, nil
}

// Validate resolves token to its live session.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	s, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if m.now().After(s.ExpiresAt) {
		_ = m.store.Clear(ctx, token)
		return nil, ErrInvalidToken
	}
	return s, nil
}

// Invalidate ends the session for token, then notifies listeners and publishes the event.
func (m *Manager) Invalidate(ctx context.Context, token, reason string) error {
	s, err := m.store.Get(ctx, token)
	if err != nil {
		return err
	}
	if err := m.store.Clear(ctx, token); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, l := range listeners {
		l(*s, reason)
	}
	if err := m.publisher.Publish(ctx, events.SubjectSessionInvalidated, events.SessionEvent{UserID: s.UserID, Reason: reason}); err != nil {
		m.logger.Warn("publish session event", zap.Error(err))
	}
	m.logger.Info("session invalidated", zap.Int("user_id", s.UserID), zap.String("reason", reason))
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
