package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserRole mirrors the source system's user role enum.
type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
	RoleUser  UserRole = "USER"
)

// User is an operator account record. Uid is empty until Save assigns one.
type User struct {
	Uid             string
	Email           string
	Role            UserRole
	MustSetPassword bool
	GivenName       string
	FamilyName      string
	Created         time.Time
	LatestLogin     *time.Time
}

// ErrUserNotFound is returned by AdminStore lookups that find no row.
var ErrUserNotFound = errors.New("store: user not found")

// AdminStore persists operator accounts. It is a supplemental piece not
// exercised by the fleet-control data path itself, kept minimal: no
// password hashing or session handling, since nothing in this module's
// scope authenticates against it yet.
type AdminStore struct {
	h *Handle
}

// NewAdminStore builds an AdminStore over h.
func NewAdminStore(h *Handle) (*AdminStore, error) {
	const ddl = `
		CREATE TABLE IF NOT EXISTS users_v1 (
			uid TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL,
			must_set_password INTEGER NOT NULL,
			given_name TEXT NOT NULL,
			family_name TEXT NOT NULL,
			created TIMESTAMP NOT NULL,
			latest_login TIMESTAMP
		)`
	if _, err := h.DB().Exec(ddl); err != nil {
		return nil, fmt.Errorf("store: create users_v1: %w", err)
	}
	return &AdminStore{h: h}, nil
}

// Save inserts a new user when Uid is empty, assigning a fresh one, or
// updates the mutable fields of an existing one otherwise.
func (s *AdminStore) Save(u User) (User, error) {
	if u.Uid == "" {
		u.Uid = uuid.NewString()
		u.Created = time.Now().UTC()
		_, err := s.h.DB().Exec(
			`INSERT INTO users_v1 (uid, email, role, must_set_password, given_name, family_name, created, latest_login)
			 VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
			u.Uid, u.Email, u.Role, u.MustSetPassword, u.GivenName, u.FamilyName, u.Created,
		)
		if err != nil {
			return User{}, fmt.Errorf("store: insert user: %w", err)
		}
		return u, nil
	}

	_, err := s.h.DB().Exec(
		`UPDATE users_v1 SET email = ?, given_name = ?, family_name = ? WHERE uid = ?`,
		u.Email, u.GivenName, u.FamilyName, u.Uid,
	)
	if err != nil {
		return User{}, fmt.Errorf("store: update user %s: %w", u.Uid, err)
	}
	return u, nil
}

// FindByEmail looks up a user by email.
func (s *AdminStore) FindByEmail(email string) (User, error) {
	row := s.h.DB().QueryRow(
		`SELECT uid, email, role, must_set_password, given_name, family_name, created, latest_login FROM users_v1 WHERE email = ?`,
		email,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var latestLogin sql.NullTime

	err := row.Scan(&u.Uid, &u.Email, &u.Role, &u.MustSetPassword, &u.GivenName, &u.FamilyName, &u.Created, &latestLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("store: scan user: %w", err)
	}
	if latestLogin.Valid {
		u.LatestLogin = &latestLogin.Time
	}
	return u, nil
}
