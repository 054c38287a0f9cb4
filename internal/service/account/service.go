// Package account signs shoppers in against the upstream user directory and serves their profile
// and order history.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/dummyjson"
	"storefront/internal/logging"
	"storefront/internal/session"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Users is the upstream user directory.
type Users interface {
	UserByUsername(ctx context.Context, username string) (*dummyjson.RawUser, error)
	User(ctx context.Context, id int) (*dummyjson.RawUser, error)
	UserCarts(ctx context.Context, id int) ([]dummyjson.RawCart, error)
}

type Service struct {
	users    Users
	sessions *session.Manager
	logger   *zap.Logger
}

func New(users Users, sessions *session.Manager, logger *zap.Logger) *Service {
	return &Service{users: users, sessions: sessions, logger: logging.OrNop(logger)}
}

// Login checks the credentials and opens a session for the matching user.
func (s *Service) Login(ctx context.Context, username, password string) (session.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return session.Session{}, ErrMissingCredentials
	}
	user, err := s.users.UserByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return session.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.Username != username || user.Password != password {
		s.logger.Info("login rejected", zap.String("username", username))
		return session.Session{}, ErrInvalidCredentials
	}
	return s.sessions.Issue(ctx, user.ID, user.Username, user.FirstName)
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Invalidate(ctx, token, "logout")
}

func (s *Service) Account(ctx context.Context, userID int) (domain.Customer, error) {
	user, err := s.users.User(ctx, userID)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("get user %d: %w", userID, err)
	}
	return dummyjson.ToCustomer(*user), nil
}

// Orders returns the user's past carts. A user without any is reported as ErrNotFound.
func (s *Service) Orders(ctx context.Context, userID int) ([]domain.Order, error) {
	carts, err := s.users.UserCarts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get orders for user %d: %w", userID, err)
	}
	if len(carts) == 0 {
		return nil, fmt.Errorf("orders for user %d: %w", userID, domain.ErrNotFound)
	}
	orders := make([]domain.Order, 0, len(carts))
	for _, c := range carts {
		o, err := dummyjson.ToOrder(c)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
