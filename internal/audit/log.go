// Package audit keeps the append-only log of user actions.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
)

// Actions written by the dashboard.
const (
	ActionLogin  = "Logged in"
	ActionLogout = "Logged out"
)

// ErrEmptyAction is returned when an entry carries no description.
var ErrEmptyAction = errors.New("audit: action is required")

// Entry is one row of user_action_logs.
type Entry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Action    string    `db:"action"`
	Timestamp time.Time `db:"timestamp"`
}

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx, so entries can
// be written inside the caller's transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Record appends an entry for userID.
func Record(ctx context.Context, db Execer, userID int64, action string) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrEmptyAction
	}
	if _, err := db.Exec(ctx, `INSERT INTO user_action_logs (user_id, action, timestamp) VALUES ($1, $2, NOW())`, userID, action); err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

// Repository reads the action log.
type Repository struct {
	db pgxscan.Querier
}

// NewRepository constructs a Repository.
func NewRepository(db pgxscan.Querier) *Repository {
	return &Repository{db: db}
}

// DefaultLimit bounds ListByUser when the caller passes no limit.
const DefaultLimit = 20

// ListByUser returns the newest entries of a user first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var entries []Entry
	err := pgxscan.Select(ctx, r.db, &entries,
		`SELECT id, user_id, action, timestamp FROM user_action_logs WHERE user_id = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list by user: %w", err)
	}
	return entries, nil
}
