package services

import (
	"context"
	"fmt"

	"github.com/reckon-app/apiserver/internal/logging"
	"github.com/reckon-app/apiserver/internal/mq"
	"github.com/reckon-app/apiserver/internal/store"
	"github.com/reckon-app/apiserver/types"
)

const (
	defaultListLimit = 100
	maxListLimit     = 100
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, id int64, update store.UserUpdate) (types.User, error)
	Delete(ctx context.Context, id int64) (types.User, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

// EventPublisher receives user lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, evt mq.UserEvent) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	events EventPublisher
	log    logging.Logger
}

// NewUserService wires the service. events may be nil to disable publishing.
func NewUserService(repo UserRepository, hasher PasswordHasher, events EventPublisher, log logging.Logger) *UserService {
	if log == nil {
		log = logging.Nop()
	}
	return &UserService{
		repo:   repo,
		hasher: hasher,
		events: events,
		log:    log,
	}
}

// Create validates input, hashes the password, and persists the user.
// A taken email yields store.ErrDuplicateEmail.
func (s *UserService) Create(ctx context.Context, in types.UserCreate) (types.User, error) {
	if err := in.Validate(); err != nil {
		return types.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		IsActive:     isActive,
		IsSuperuser:  in.IsSuperuser,
	})
	if err != nil {
		return types.User{}, err
	}

	s.publish(ctx, mq.EventUserCreated, user)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// List returns users in insertion order. limit defaults to and is capped at 100.
func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, offset, limit)
}

// Update merges the fields present in patch into existing. A new password is
// hashed and only the hash reaches the store.
func (s *UserService) Update(ctx context.Context, existing types.User, patch types.UserPatch) (types.User, error) {
	if err := patch.Validate(); err != nil {
		return types.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	update := store.UserUpdate{
		Email:       patch.Email,
		FullName:    patch.FullName,
		IsActive:    patch.IsActive,
		IsSuperuser: patch.IsSuperuser,
	}
	if patch.Password != nil {
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return types.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		update.PasswordHash = &hash
	}

	user, err := s.repo.Update(ctx, existing.ID, update)
	if err != nil {
		return types.User{}, err
	}

	s.publish(ctx, mq.EventUserUpdated, user)
	return user, nil
}

// Delete removes the user and returns the record as it was before deletion.
func (s *UserService) Delete(ctx context.Context, id int64) (types.User, error) {
	user, err := s.repo.Delete(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	s.publish(ctx, mq.EventUserDeleted, user)
	return user, nil
}

func (s *UserService) IsActive(user types.User) bool {
	return user.IsActive
}

func (s *UserService) IsSuperuser(user types.User) bool {
	return user.IsSuperuser
}

// publish is best effort: a broker failure is logged and never fails the
// request that changed the user.
func (s *UserService) publish(ctx context.Context, eventType string, user types.User) {
	if s.events == nil {
		return
	}
	evt := mq.NewUserEvent(eventType, user.ID, user.Email)
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn(ctx, "publish user event failed", "event_type", eventType, "user_id", user.ID, "error", err)
	}
}
