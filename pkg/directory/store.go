package directory

import (
	"context"
	"errors"
)

// ErrDirectoryUnavailable wraps transport-level failures of the backing
// store. Background jobs log it and retry next cycle; it never reaches the
// request path.
var ErrDirectoryUnavailable = errors.New("directory unavailable")

// ErrNotFound is returned for lookups of unknown users or groups.
var ErrNotFound = errors.New("not found")

// Store is the directory/group-store backend. Membership add/remove are
// atomic, commutative operations, which is what makes the encoder and
// reconciler safe to run concurrently with login traffic.
type Store interface {
	GetUser(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// EnsureGroup creates the group if missing. Idempotent.
	EnsureGroup(ctx context.Context, name string) error
	DeleteGroup(ctx context.Context, name string) error

	// AddMember/RemoveMember are no-ops when membership is already in the
	// requested state.
	AddMember(ctx context.Context, group, username string) error
	RemoveMember(ctx context.Context, group, username string) error

	// GroupsForUser lists the user's groups whose name starts with prefix.
	GroupsForUser(ctx context.Context, username, prefix string) ([]string, error)
	// GroupsWithPrefix lists every group whose name starts with prefix,
	// members or not.
	GroupsWithPrefix(ctx context.Context, prefix string) ([]string, error)
	Members(ctx context.Context, group string) ([]string, error)
}
