// pkg/directory/postgres.go
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed directory store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dir_users (
  id uuid PRIMARY KEY,
  username text UNIQUE NOT NULL,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS dir_user_attributes (
  username text NOT NULL REFERENCES dir_users(username) ON DELETE CASCADE,
  name text NOT NULL,
  value text NOT NULL,
  PRIMARY KEY (username, name)
);
CREATE TABLE IF NOT EXISTS dir_groups (
  name text PRIMARY KEY,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS dir_group_members (
  group_name text NOT NULL REFERENCES dir_groups(name) ON DELETE CASCADE,
  username text NOT NULL REFERENCES dir_users(username) ON DELETE CASCADE,
  PRIMARY KEY (group_name, username)
);
CREATE INDEX IF NOT EXISTS dir_group_members_user_idx ON dir_group_members(username);
`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return nil
}

// SeedUser inserts or updates a user and its attributes. Used by deployment
// bootstrap and integration tests; in production the directory sync owns
// user records.
func SeedUser(ctx context.Context, dbPool *pgxpool.Pool, username string, attrs map[string]string) error {
	_, err := dbPool.Exec(ctx, `INSERT INTO dir_users(id, username) VALUES ($1,$2)
	  ON CONFLICT (username) DO UPDATE SET updated_at=NOW()`, uuid.New(), username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	for name, value := range attrs {
		_, err = dbPool.Exec(ctx, `INSERT INTO dir_user_attributes(username, name, value) VALUES ($1,$2,$3)
		  ON CONFLICT (username, name) DO UPDATE SET value=EXCLUDED.value`, username, name, value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
	}
	return nil
}

func (p *pgStore) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	row := p.dbPool.QueryRow(ctx, `SELECT id, username FROM dir_users WHERE username=$1`, username)
	if err := row.Scan(&u.ID, &u.Username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	attrs, err := p.attributes(ctx, username)
	if err != nil {
		return User{}, err
	}
	u.Attributes = attrs
	return u, nil
}

func (p *pgStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT id, username FROM dir_users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	for i := range users {
		attrs, err := p.attributes(ctx, users[i].Username)
		if err != nil {
			return nil, err
		}
		users[i].Attributes = attrs
	}
	return users, nil
}

func (p *pgStore) attributes(ctx context.Context, username string) (map[string]string, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT name, value FROM dir_user_attributes WHERE username=$1`, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer rows.Close()
	attrs := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		attrs[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return attrs, nil
}

func (p *pgStore) EnsureGroup(ctx context.Context, name string) error {
	_, err := p.dbPool.Exec(ctx, `INSERT INTO dir_groups(name) VALUES ($1) ON CONFLICT DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return nil
}

func (p *pgStore) DeleteGroup(ctx context.Context, name string) error {
	_, err := p.dbPool.Exec(ctx, `DELETE FROM dir_groups WHERE name=$1`, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return nil
}

func (p *pgStore) AddMember(ctx context.Context, group, username string) error {
	_, err := p.dbPool.Exec(ctx, `INSERT INTO dir_group_members(group_name, username) VALUES ($1,$2) ON CONFLICT DO NOTHING`, group, username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return nil
}

func (p *pgStore) RemoveMember(ctx context.Context, group, username string) error {
	_, err := p.dbPool.Exec(ctx, `DELETE FROM dir_group_members WHERE group_name=$1 AND username=$2`, group, username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return nil
}

func (p *pgStore) GroupsForUser(ctx context.Context, username, prefix string) ([]string, error) {
	// left(name, length(prefix)) comparison avoids LIKE-metacharacter issues
	// in configured prefixes.
	rows, err := p.dbPool.Query(ctx, `SELECT group_name FROM dir_group_members
	  WHERE username=$1 AND left(group_name, length($2::text)) = $2 ORDER BY group_name`, username, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer rows.Close()
	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return groups, nil
}

func (p *pgStore) GroupsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT name FROM dir_groups
	  WHERE left(name, length($1::text)) = $1 ORDER BY name`, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer rows.Close()
	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return groups, nil
}

func (p *pgStore) Members(ctx context.Context, group string) ([]string, error) {
	var exists bool
	if err := p.dbPool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dir_groups WHERE name=$1)`, group).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	rows, err := p.dbPool.Query(ctx, `SELECT username FROM dir_group_members WHERE group_name=$1 ORDER BY username`, group)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer rows.Close()
	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return members, nil
}
