package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/factorykpi/factorykpi/internal/shared"
)

// Repository reads accounts, groups and permissions.
type Repository interface {
	FindAccount(ctx context.Context, userID int64) (Account, error)
	IsMember(ctx context.Context, userID int64, group string) (bool, error)
	UserGroups(ctx context.Context, userID int64) ([]string, error)
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	db pgxscan.Querier
}

// NewRepository constructs a PGRepository.
func NewRepository(db pgxscan.Querier) *PGRepository {
	return &PGRepository{db: db}
}

var _ Repository = (*PGRepository)(nil)

// FindAccount loads the account of userID.
func (r *PGRepository) FindAccount(ctx context.Context, userID int64) (Account, error) {
	var acc Account
	err := pgxscan.Get(ctx, r.db, &acc, `SELECT id, username, is_superuser, is_active FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, fmt.Errorf("rbac: find account: %w", err)
	}
	return acc, nil
}

// IsMember reports whether the user belongs to the named group. Names are
// compared on their folded key.
func (r *PGRepository) IsMember(ctx context.Context, userID int64, group string) (bool, error) {
	var row struct {
		Member bool `db:"member"`
	}
	err := pgxscan.Get(ctx, r.db, &row, `SELECT EXISTS (
		SELECT 1 FROM user_groups ug JOIN groups g ON g.id = ug.group_id
		WHERE ug.user_id = $1 AND g.name_key = $2) AS member`, userID, shared.GroupKey(group))
	if err != nil {
		return false, fmt.Errorf("rbac: membership: %w", err)
	}
	return row.Member, nil
}

// UserGroups returns the names of the user's groups.
func (r *PGRepository) UserGroups(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := pgxscan.Select(ctx, r.db, &names, `SELECT g.name FROM groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1 ORDER BY g.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: user groups: %w", err)
	}
	return names, nil
}

// EffectivePermissions returns the sorted permission keys granted through
// groups. Superusers hold every permission.
func (r *PGRepository) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	var perms []string
	err := pgxscan.Select(ctx, r.db, &perms, `
		SELECT p.app_label || '.' || p.codename AS perm
		FROM permissions p
		JOIN group_permissions gp ON gp.permission_id = p.id
		JOIN user_groups ug ON ug.group_id = gp.group_id
		WHERE ug.user_id = $1
		UNION
		SELECT p.app_label || '.' || p.codename
		FROM permissions p
		WHERE EXISTS (SELECT 1 FROM users u WHERE u.id = $1 AND u.is_superuser)
		ORDER BY 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: effective permissions: %w", err)
	}
	return perms, nil
}

// ListPermissions returns all permissions ordered by app label and codename.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	if err := pgxscan.Select(ctx, r.db, &perms, `SELECT id, app_label, codename, name FROM permissions ORDER BY app_label, codename`); err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	return perms, nil
}
