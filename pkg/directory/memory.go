// pkg/directory/memory.go
package directory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a map-backed Store for dev and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]User                // username -> user
	members map[string]map[string]struct{} // group -> set of usernames

	// Mutations counts state-changing operations that actually changed
	// state; tests use it to assert idempotence.
	Mutations int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   map[string]User{},
		members: map[string]map[string]struct{}{},
	}
}

// PutUser seeds or updates a user record. Not part of Store; the directory
// itself owns user records in production.
func (s *MemoryStore) PutUser(username string, attrs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		u = User{ID: uuid.NewString(), Username: username}
	}
	cp := make(map[string]string, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	u.Attributes = cp
	s.users[username] = u
}

func (s *MemoryStore) GetUser(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) EnsureGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[name]; !ok {
		s.members[name] = map[string]struct{}{}
		s.Mutations++
	}
	return nil
}

func (s *MemoryStore) DeleteGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[name]; ok {
		delete(s.members, name)
		s.Mutations++
	}
	return nil
}

func (s *MemoryStore) AddMember(_ context.Context, group, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[group]
	if !ok {
		return ErrNotFound
	}
	if _, ok := set[username]; !ok {
		set[username] = struct{}{}
		s.Mutations++
	}
	return nil
}

func (s *MemoryStore) RemoveMember(_ context.Context, group, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[group]
	if !ok {
		return nil
	}
	if _, ok := set[username]; ok {
		delete(set, username)
		s.Mutations++
	}
	return nil
}

func (s *MemoryStore) GroupsForUser(_ context.Context, username, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for g, set := range s.members {
		if !strings.HasPrefix(g, prefix) {
			continue
		}
		if _, ok := set[username]; ok {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) GroupsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for g := range s.members {
		if strings.HasPrefix(g, prefix) {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Members(_ context.Context, group string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.members[group]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// HasGroup reports whether the group exists. Test helper.
func (s *MemoryStore) HasGroup(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[name]
	return ok
}
