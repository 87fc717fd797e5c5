package rbac

import (
	"context"

	"github.com/factorykpi/factorykpi/internal/shared"
)

// Service answers authorization questions.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Principal loads the request principal. Inactive accounts are reported as
// shared.ErrNotFound.
func (s *Service) Principal(ctx context.Context, userID int64) (shared.Principal, error) {
	acc, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		return shared.Principal{}, err
	}
	if !acc.IsActive {
		return shared.Principal{}, shared.ErrNotFound
	}
	p := shared.Principal{ID: acc.ID, Username: acc.Username, IsSuperuser: acc.IsSuperuser, IsAdmin: acc.IsSuperuser}
	if !p.IsAdmin {
		member, err := s.repo.IsMember(ctx, userID, shared.AdministratorGroup)
		if err != nil {
			return shared.Principal{}, err
		}
		p.IsAdmin = member
	}
	return p, nil
}

// UserGroups returns the user's group names.
func (s *Service) UserGroups(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.UserGroups(ctx, userID)
}

// EffectivePermissions returns deduplicated permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.EffectivePermissions(ctx, userID)
}

// ListPermissions returns every known permission.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}
