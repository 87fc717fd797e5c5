package auth

import "time"

// User represents an account that can sign in.
type User struct {
	ID           int64      `db:"id"`
	Username     string     `db:"username"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	IsActive     bool       `db:"is_active"`
	IsSuperuser  bool       `db:"is_superuser"`
	LastLogin    *time.Time `db:"last_login"`
}
