package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/factorykpi/factorykpi/internal/audit"
	"github.com/factorykpi/factorykpi/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Authenticate validates username/password credentials and stamps the login.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.RecordAction(ctx, user.ID, audit.ActionLogin); err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// Logout removes the session record and logs the action.
func (s *Service) Logout(ctx context.Context, sessionID string, userID int64) error {
	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	if userID == 0 {
		return nil
	}
	return s.repo.RecordAction(ctx, userID, audit.ActionLogout)
}
