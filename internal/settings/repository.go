package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/factorykpi/factorykpi/internal/audit"
	"github.com/factorykpi/factorykpi/internal/platform/db"
	"github.com/factorykpi/factorykpi/internal/shared"
)

// Store holds the statements of one settings transaction.
type Store interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error)
	UpdateUser(ctx context.Context, id int64, username, email string) error
	SetUserGroup(ctx context.Context, userID int64, groupID *int64) error
	DeleteUser(ctx context.Context, id int64) (string, error)
	FindGroup(ctx context.Context, id int64) (GroupRow, error)
	GroupNameTaken(ctx context.Context, nameKey string, excludeID int64) (bool, error)
	CreateGroup(ctx context.Context, name, nameKey string) (int64, error)
	RenameGroup(ctx context.Context, id int64, name, nameKey string) error
	SetGroupPermissions(ctx context.Context, groupID int64, permissionIDs []int64) error
	SetGroupMembers(ctx context.Context, groupID int64, userIDs []int64) error
	DeleteGroup(ctx context.Context, id int64) error
	RecordAction(ctx context.Context, userID int64, action string) error
}

// Repository reads the settings page and runs mutations transactionally.
type Repository interface {
	WithTx(ctx context.Context, fn func(Store) error) error
	ListUsers(ctx context.Context) ([]UserRow, error)
	ListGroups(ctx context.Context) ([]GroupRow, error)
	DatabaseInfo(ctx context.Context) (DatabaseInfo, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// WithTx runs fn against a Store bound to one transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgStore{tx: tx})
	})
}

// ListUsers returns every account with its group names.
func (r *PGRepository) ListUsers(ctx context.Context) ([]UserRow, error) {
	var rows []UserRow
	err := pgxscan.Select(ctx, r.pool, &rows, `SELECT u.id, u.username, u.email, u.is_active, u.is_superuser,
			COALESCE(array_agg(g.name ORDER BY g.name) FILTER (WHERE g.id IS NOT NULL), '{}') AS groups,
			COALESCE(array_agg(g.id ORDER BY g.name) FILTER (WHERE g.id IS NOT NULL), '{}') AS group_ids
		FROM users u
		LEFT JOIN user_groups ug ON ug.user_id = u.id
		LEFT JOIN groups g ON g.id = ug.group_id
		GROUP BY u.id
		ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("settings: list users: %w", err)
	}
	return rows, nil
}

// ListGroups returns every group with members and permission ids.
func (r *PGRepository) ListGroups(ctx context.Context) ([]GroupRow, error) {
	var rows []GroupRow
	err := pgxscan.Select(ctx, r.pool, &rows, groupSelect+` ORDER BY g.name`)
	if err != nil {
		return nil, fmt.Errorf("settings: list groups: %w", err)
	}
	return rows, nil
}

// DatabaseInfo reports the current database name and its size on disk.
func (r *PGRepository) DatabaseInfo(ctx context.Context) (DatabaseInfo, error) {
	var info DatabaseInfo
	err := pgxscan.Get(ctx, r.pool, &info, `SELECT current_database() AS name, pg_database_size(current_database()) AS size`)
	if err != nil {
		return DatabaseInfo{}, fmt.Errorf("settings: database info: %w", err)
	}
	return info, nil
}

const groupSelect = `SELECT g.id, g.name,
	COALESCE((SELECT array_agg(u.username ORDER BY u.username) FROM user_groups ug JOIN users u ON u.id = ug.user_id WHERE ug.group_id = g.id), '{}') AS members,
	COALESCE((SELECT array_agg(ug.user_id ORDER BY ug.user_id) FROM user_groups ug WHERE ug.group_id = g.id), '{}') AS member_ids,
	COALESCE((SELECT array_agg(gp.permission_id ORDER BY gp.permission_id) FROM group_permissions gp WHERE gp.group_id = g.id), '{}') AS permission_ids
FROM groups g`

type pgStore struct {
	tx pgx.Tx
}

func (s *pgStore) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO users (username, email, password_hash, is_active, is_superuser, date_joined)
		VALUES ($1, $2, $3, TRUE, FALSE, NOW()) RETURNING id`, username, email, passwordHash).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "users_username_key") {
			return 0, invalid("A user named %s already exists.", username)
		}
		return 0, fmt.Errorf("settings: create user: %w", err)
	}
	return id, nil
}

func (s *pgStore) UpdateUser(ctx context.Context, id int64, username, email string) error {
	tag, err := s.tx.Exec(ctx, `UPDATE users SET username = $2, email = $3 WHERE id = $1`, id, username, email)
	if err != nil {
		if db.IsUniqueViolation(err, "users_username_key") {
			return invalid("A user named %s already exists.", username)
		}
		return fmt.Errorf("settings: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (s *pgStore) SetUserGroup(ctx context.Context, userID int64, groupID *int64) error {
	if _, err := s.tx.Exec(ctx, `DELETE FROM user_groups WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("settings: clear user groups: %w", err)
	}
	if groupID == nil {
		return nil
	}
	tag, err := s.tx.Exec(ctx, `INSERT INTO user_groups (user_id, group_id) SELECT $1, id FROM groups WHERE id = $2`, userID, *groupID)
	if err != nil {
		return fmt.Errorf("settings: set user group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %d: %w", *groupID, shared.ErrNotFound)
	}
	return nil
}

func (s *pgStore) DeleteUser(ctx context.Context, id int64) (string, error) {
	var username string
	err := s.tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING username`, id).Scan(&username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
		}
		return "", fmt.Errorf("settings: delete user: %w", err)
	}
	return username, nil
}

func (s *pgStore) FindGroup(ctx context.Context, id int64) (GroupRow, error) {
	var group GroupRow
	if err := pgxscan.Get(ctx, s.tx, &group, groupSelect+` WHERE g.id = $1`, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GroupRow{}, fmt.Errorf("group %d: %w", id, shared.ErrNotFound)
		}
		return GroupRow{}, fmt.Errorf("settings: find group: %w", err)
	}
	return group, nil
}

func (s *pgStore) GroupNameTaken(ctx context.Context, nameKey string, excludeID int64) (bool, error) {
	var taken bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE name_key = $1 AND id <> $2)`, nameKey, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("settings: group name check: %w", err)
	}
	return taken, nil
}

func (s *pgStore) CreateGroup(ctx context.Context, name, nameKey string) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO groups (name, name_key) VALUES ($1, $2) RETURNING id`, name, nameKey).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "groups_name_key_key") {
			return 0, errDuplicateGroup
		}
		return 0, fmt.Errorf("settings: create group: %w", err)
	}
	return id, nil
}

func (s *pgStore) RenameGroup(ctx context.Context, id int64, name, nameKey string) error {
	_, err := s.tx.Exec(ctx, `UPDATE groups SET name = $2, name_key = $3 WHERE id = $1`, id, name, nameKey)
	if err != nil {
		if db.IsUniqueViolation(err, "groups_name_key_key") {
			return errDuplicateGroup
		}
		return fmt.Errorf("settings: rename group: %w", err)
	}
	return nil
}

func (s *pgStore) SetGroupPermissions(ctx context.Context, groupID int64, permissionIDs []int64) error {
	if _, err := s.tx.Exec(ctx, `DELETE FROM group_permissions WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("settings: clear group permissions: %w", err)
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := s.tx.Exec(ctx, `INSERT INTO group_permissions (group_id, permission_id)
		SELECT $1, id FROM permissions WHERE id = ANY($2)`, groupID, permissionIDs)
	if err != nil {
		return fmt.Errorf("settings: set group permissions: %w", err)
	}
	return nil
}

func (s *pgStore) SetGroupMembers(ctx context.Context, groupID int64, userIDs []int64) error {
	if _, err := s.tx.Exec(ctx, `DELETE FROM user_groups WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("settings: clear group members: %w", err)
	}
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.tx.Exec(ctx, `INSERT INTO user_groups (user_id, group_id)
		SELECT id, $1 FROM users WHERE id = ANY($2)`, groupID, userIDs)
	if err != nil {
		return fmt.Errorf("settings: set group members: %w", err)
	}
	return nil
}

func (s *pgStore) DeleteGroup(ctx context.Context, id int64) error {
	tag, err := s.tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("settings: delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (s *pgStore) RecordAction(ctx context.Context, userID int64, action string) error {
	return audit.Record(ctx, s.tx, userID, action)
}
