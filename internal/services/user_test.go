package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reckon-app/apiserver/internal/mq"
	"github.com/reckon-app/apiserver/internal/store"
	"github.com/reckon-app/apiserver/internal/store/storetest"
	"github.com/reckon-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Create(ctx, types.UserCreate{
		Email:    "Alice@Example.com",
		Password: "secret123",
		FullName: ptr("Alice"),
	})
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsSuperuser)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NotEqual(t, "secret123", user.PasswordHash)

	ok, err := f.hasher.Verify("secret123", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{mq.EventUserCreated}, f.events.eventTypes())
}

func TestUserService_CreateInactiveSuperuser(t *testing.T) {
	f := newFixture(t)

	user, err := f.users.Create(context.Background(), types.UserCreate{
		Email:       "root@example.com",
		Password:    "pw",
		IsActive:    ptr(false),
		IsSuperuser: true,
	})
	require.NoError(t, err)
	assert.False(t, f.users.IsActive(user))
	assert.True(t, f.users.IsSuperuser(user))
}

func TestUserService_CreateDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice@example.com", "secret123")

	_, err := f.users.Create(context.Background(), types.UserCreate{Email: "alice@example.com", Password: "other"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	_, err = f.users.Create(context.Background(), types.UserCreate{Email: "ALICE@example.com", Password: "other"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestUserService_CreateInvalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Create(context.Background(), types.UserCreate{Email: "nope", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.users.Create(context.Background(), types.UserCreate{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.events.eventTypes())
}

func TestUserService_GetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "a@example.com", "pw")
	b := f.createUser(t, "b@example.com", "pw")
	c := f.createUser(t, "c@example.com", "pw")

	got, err := f.users.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)

	got, err = f.users.GetByEmail(ctx, "C@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = f.users.Get(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := f.users.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	page, err := f.users.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, b.ID, page[0].ID)

	page, err = f.users.List(ctx, -5, 1000)
	require.NoError(t, err)
	assert.Len(t, page, 3)
}

func TestUserService_UpdateEmptyPatch(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.repo.SetClock(func() time.Time { return base })
	user, err := f.users.Create(context.Background(), types.UserCreate{Email: "a@example.com", Password: "pw", FullName: ptr("A")})
	require.NoError(t, err)

	f.repo.SetClock(func() time.Time { return base.Add(time.Minute) })
	updated, err := f.users.Update(context.Background(), user, types.UserPatch{})
	require.NoError(t, err)

	assert.Equal(t, user.ID, updated.ID)
	assert.Equal(t, user.Email, updated.Email)
	assert.Equal(t, user.PasswordHash, updated.PasswordHash)
	assert.Equal(t, user.FullName, updated.FullName)
	assert.Equal(t, user.IsActive, updated.IsActive)
	assert.Equal(t, user.IsSuperuser, updated.IsSuperuser)
	assert.Equal(t, user.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(user.UpdatedAt))
}

func TestUserService_UpdatePassword(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice@example.com", "oldpw")

	updated, err := f.users.Update(context.Background(), user, types.UserPatch{Password: ptr("newpw")})
	require.NoError(t, err)

	assert.NotEqual(t, user.PasswordHash, updated.PasswordHash)
	ok, err := f.hasher.Verify("newpw", updated.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.hasher.Verify("oldpw", updated.PasswordHash)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := f.repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.PasswordHash, stored.PasswordHash)
	assert.NotEqual(t, "newpw", stored.PasswordHash)
}

func TestUserService_UpdatePartialFields(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice@example.com", "pw")

	updated, err := f.users.Update(context.Background(), user, types.UserPatch{
		FullName:    ptr("Alice Liddell"),
		IsSuperuser: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", *updated.FullName)
	assert.True(t, updated.IsSuperuser)
	assert.True(t, updated.IsActive)
	assert.Equal(t, user.PasswordHash, updated.PasswordHash)
	assert.Equal(t, []string{mq.EventUserCreated, mq.EventUserUpdated}, f.events.eventTypes())
}

func TestUserService_UpdateErrors(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser(t, "alice@example.com", "pw")
	f.createUser(t, "bob@example.com", "pw")

	_, err := f.users.Update(context.Background(), alice, types.UserPatch{Email: ptr("bob@example.com")})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	_, err = f.users.Update(context.Background(), alice, types.UserPatch{Email: ptr("not-email")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.users.Update(context.Background(), types.User{ID: 404}, types.UserPatch{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Delete(ctx, 5)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var target types.User
	for i := 0; i < 5; i++ {
		target = f.createUser(t, string(rune('a'+i))+"@example.com", "pw")
	}
	require.Equal(t, int64(5), target.ID)

	deleted, err := f.users.Delete(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, target, deleted)

	_, err = f.users.Get(ctx, 5)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.users.Delete(ctx, 5)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserService_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	user, err := f.users.Create(context.Background(), types.UserCreate{Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
}

func TestUserService_NilPublisher(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.repo, f.hasher, nil, nil)

	_, err := svc.Create(context.Background(), types.UserCreate{Email: "a@example.com", Password: "pw"})
	assert.NoError(t, err)
}

func TestUserService_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.Err = errors.New("connection refused")

	_, err := f.users.Get(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

type pagingRepo struct {
	*storetest.MemoryUsers
	offset, limit int
}

func (r *pagingRepo) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	r.offset, r.limit = offset, limit
	return r.MemoryUsers.List(ctx, offset, limit)
}

func TestUserService_ListClampsPaging(t *testing.T) {
	f := newFixture(t)
	repo := &pagingRepo{MemoryUsers: f.repo}
	svc := NewUserService(repo, f.hasher, nil, nil)
	ctx := context.Background()

	tests := []struct {
		offset, limit         int
		wantOffset, wantLimit int
	}{
		{offset: 0, limit: 0, wantOffset: 0, wantLimit: 100},
		{offset: 3, limit: 20, wantOffset: 3, wantLimit: 20},
		{offset: -5, limit: 1000, wantOffset: 0, wantLimit: 100},
	}
	for _, tt := range tests {
		_, err := svc.List(ctx, tt.offset, tt.limit)
		require.NoError(t, err)
		assert.Equal(t, tt.wantOffset, repo.offset)
		assert.Equal(t, tt.wantLimit, repo.limit)
	}
}
