package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reckon-app/apiserver/internal/mq"
	"github.com/reckon-app/apiserver/internal/security"
	"github.com/reckon-app/apiserver/internal/store/storetest"
	"github.com/reckon-app/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []mq.UserEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, evt mq.UserEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.Type)
	}
	return out
}

type fixture struct {
	repo     *storetest.MemoryUsers
	hasher   *security.PasswordHasher
	codec    *security.TokenCodec
	events   *recordingPublisher
	users    *UserService
	auth     *AuthService
	resolver *AccessResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := security.NewTokenCodec(security.TokenConfig{Secret: []byte("test-secret"), Algorithm: "HS256"})
	require.NoError(t, err)

	f := &fixture{
		repo:   storetest.NewMemoryUsers(),
		hasher: security.NewPasswordHasher(bcrypt.MinCost),
		codec:  codec,
		events: &recordingPublisher{},
	}
	f.users = NewUserService(f.repo, f.hasher, f.events, nil)
	f.auth = NewAuthService(f.repo, f.hasher, f.codec, 30*time.Minute, nil)
	f.resolver = NewAccessResolver(f.repo, f.codec)
	return f
}

func (f *fixture) createUser(t *testing.T, email, password string) types.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), types.UserCreate{Email: email, Password: password})
	require.NoError(t, err)
	return user
}

func ptr[T any](v T) *T { return &v }
