// Package storetest provides an in-memory user store for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reckon-app/apiserver/internal/store"
	"github.com/reckon-app/apiserver/types"
)

// MemoryUsers mimics store.UserRepository: emails are normalized and unique,
// ids are assigned in insertion order, and every update advances UpdatedAt.
type MemoryUsers struct {
	mu     sync.Mutex
	users  map[int64]types.User
	nextID int64
	now    func() time.Time

	// Err, when set, is returned by every operation.
	Err error
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		users:  make(map[int64]types.User),
		nextID: 1,
		now:    time.Now,
	}
}

// SetClock overrides the timestamp source.
func (m *MemoryUsers) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryUsers) GetByID(ctx context.Context, id int64) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.User{}, m.Err
	}
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *MemoryUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.User{}, m.Err
	}
	if user, ok := m.findByEmail(store.NormalizeEmail(email)); ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (m *MemoryUsers) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	all := m.sorted()
	if offset >= len(all) {
		return []types.User{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (m *MemoryUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.User{}, m.Err
	}
	user.Email = store.NormalizeEmail(user.Email)
	if _, taken := m.findByEmail(user.Email); taken {
		return types.User{}, store.ErrDuplicateEmail
	}
	now := m.now()
	user.ID = m.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

func (m *MemoryUsers) Update(ctx context.Context, id int64, u store.UserUpdate) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.User{}, m.Err
	}
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if u.Email != nil {
		email := store.NormalizeEmail(*u.Email)
		if other, taken := m.findByEmail(email); taken && other.ID != id {
			return types.User{}, store.ErrDuplicateEmail
		}
		user.Email = email
	}
	if u.PasswordHash != nil {
		user.PasswordHash = *u.PasswordHash
	}
	if u.FullName != nil {
		name := *u.FullName
		user.FullName = &name
	}
	if u.IsActive != nil {
		user.IsActive = *u.IsActive
	}
	if u.IsSuperuser != nil {
		user.IsSuperuser = *u.IsSuperuser
	}
	user.UpdatedAt = m.now()
	m.users[id] = user
	return user, nil
}

func (m *MemoryUsers) Delete(ctx context.Context, id int64) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.User{}, m.Err
	}
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	delete(m.users, id)
	return user, nil
}

func (m *MemoryUsers) Stats(ctx context.Context, since time.Time) (types.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return types.UserStats{}, m.Err
	}
	var stats types.UserStats
	for _, user := range m.users {
		stats.Total++
		if user.IsActive {
			stats.Active++
		}
		if user.IsSuperuser {
			stats.Superusers++
		}
		if !user.CreatedAt.Before(since) {
			stats.CreatedLast++
		}
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

func (m *MemoryUsers) findByEmail(email string) (types.User, bool) {
	for _, user := range m.users {
		if user.Email == email {
			return user, true
		}
	}
	return types.User{}, false
}

func (m *MemoryUsers) sorted() []types.User {
	all := make([]types.User, 0, len(m.users))
	for _, user := range m.users {
		all = append(all, user)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}
