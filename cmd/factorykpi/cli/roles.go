package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/factorykpi/factorykpi/internal/platform/db"
	"github.com/factorykpi/factorykpi/internal/settings"
	"github.com/factorykpi/factorykpi/internal/shared"
)

// DefaultAdmin is the account linked to the Administrator group.
const DefaultAdmin = "admin"

// RoleStore applies role setup statements inside one transaction.
type RoleStore interface {
	EnsureGroup(ctx context.Context, name, nameKey string) (int64, error)
	GrantAll(ctx context.Context, groupID int64) error
	GrantViews(ctx context.Context, groupID int64) error
	AddMember(ctx context.Context, username string, groupID int64) (bool, error)
	EnsureUser(ctx context.Context, username, email, passwordHash string, superuser bool) (bool, error)
}

// RoleTransactor runs fn against a transaction-scoped RoleStore.
type RoleTransactor interface {
	WithTx(ctx context.Context, fn func(RoleStore) error) error
}

// RolesReport summarises what SetupRoles did.
type RolesReport struct {
	Groups      []string
	AdminLinked bool
}

// RolesCLI creates the default groups and the bootstrap superuser.
type RolesCLI struct {
	tx       RoleTransactor
	hashCost int
}

// NewRolesCLI constructs the helper.
func NewRolesCLI(tx RoleTransactor) *RolesCLI {
	return &RolesCLI{tx: tx, hashCost: bcrypt.DefaultCost}
}

// SetupRoles is idempotent. Administrator holds every permission, Manager
// every view permission and Specialist none.
func (c *RolesCLI) SetupRoles(ctx context.Context) (RolesReport, error) {
	var report RolesReport
	err := c.tx.WithTx(ctx, func(s RoleStore) error {
		report = RolesReport{}
		ids := make(map[string]int64, 3)
		for _, name := range []string{shared.AdministratorGroup, shared.ManagerGroup, shared.SpecialistGroup} {
			id, err := s.EnsureGroup(ctx, name, settings.NameKey(name))
			if err != nil {
				return fmt.Errorf("ensure group %s: %w", name, err)
			}
			ids[name] = id
			report.Groups = append(report.Groups, name)
		}
		if err := s.GrantAll(ctx, ids[shared.AdministratorGroup]); err != nil {
			return err
		}
		if err := s.GrantViews(ctx, ids[shared.ManagerGroup]); err != nil {
			return err
		}
		linked, err := s.AddMember(ctx, DefaultAdmin, ids[shared.AdministratorGroup])
		if err != nil {
			return err
		}
		report.AdminLinked = linked
		return nil
	})
	return report, err
}

// EnsureSuperuser creates an active superuser unless the username is taken.
// It reports whether an account was created.
func (c *RolesCLI) EnsureSuperuser(ctx context.Context, username, email, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, errors.New("roles cli: username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.hashCost)
	if err != nil {
		return false, err
	}
	var created bool
	err = c.tx.WithTx(ctx, func(s RoleStore) error {
		created, err = s.EnsureUser(ctx, username, strings.TrimSpace(email), string(hash), true)
		return err
	})
	return created, err
}

// PGRoles implements RoleTransactor on PostgreSQL.
type PGRoles struct {
	pool *pgxpool.Pool
}

// NewPGRoles constructs the PostgreSQL role store.
func NewPGRoles(pool *pgxpool.Pool) *PGRoles {
	return &PGRoles{pool: pool}
}

// WithTx implements RoleTransactor.
func (p *PGRoles) WithTx(ctx context.Context, fn func(RoleStore) error) error {
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(pgRoleStore{tx: tx})
	})
}

type pgRoleStore struct {
	tx pgx.Tx
}

func (s pgRoleStore) EnsureGroup(ctx context.Context, name, nameKey string) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO groups (name, name_key) VALUES ($1, $2)
		ON CONFLICT (name_key) DO UPDATE SET name_key = EXCLUDED.name_key
		RETURNING id`, name, nameKey).Scan(&id)
	return id, err
}

func (s pgRoleStore) GrantAll(ctx context.Context, groupID int64) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO group_permissions (group_id, permission_id)
		SELECT $1::bigint, id FROM permissions ON CONFLICT DO NOTHING`, groupID)
	return err
}

func (s pgRoleStore) GrantViews(ctx context.Context, groupID int64) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO group_permissions (group_id, permission_id)
		SELECT $1::bigint, id FROM permissions WHERE codename LIKE 'view\_%' ON CONFLICT DO NOTHING`, groupID)
	return err
}

func (s pgRoleStore) AddMember(ctx context.Context, username string, groupID int64) (bool, error) {
	tag, err := s.tx.Exec(ctx, `INSERT INTO user_groups (user_id, group_id)
		SELECT id, $2::bigint FROM users WHERE username = $1 ON CONFLICT DO NOTHING`, username, groupID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	err = s.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

func (s pgRoleStore) EnsureUser(ctx context.Context, username, email, passwordHash string, superuser bool) (bool, error) {
	tag, err := s.tx.Exec(ctx, `INSERT INTO users (username, email, password_hash, is_active, is_superuser, date_joined)
		VALUES ($1, $2, $3, TRUE, $4, NOW()) ON CONFLICT (username) DO NOTHING`, username, email, passwordHash, superuser)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
