package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reckon-app/apiserver/internal/logging"
	"github.com/reckon-app/apiserver/internal/security"
	"github.com/reckon-app/apiserver/internal/store"
	"github.com/reckon-app/apiserver/types"
)

const tokenTypeBearer = "bearer"

// dummyPassword is hashed once and compared against when the email is
// unknown, so both failure paths pay for one bcrypt comparison.
const dummyPassword = "reckon-timing-equalizer"

// UserLookup resolves users by email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(claims map[string]any, ttl time.Duration) (string, error)
}

// Token is the login response payload.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AuthService verifies credentials and issues access tokens.
type AuthService struct {
	users     UserLookup
	hasher    PasswordHasher
	tokens    TokenIssuer
	accessTTL time.Duration
	log       logging.Logger
	dummyHash string
}

func NewAuthService(users UserLookup, hasher PasswordHasher, tokens TokenIssuer, accessTTL time.Duration, log logging.Logger) *AuthService {
	if log == nil {
		log = logging.Nop()
	}
	if accessTTL <= 0 {
		accessTTL = security.DefaultTokenTTL
	}
	s := &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		accessTTL: accessTTL,
		log:       log,
	}
	hash, err := hasher.Hash(dummyPassword)
	if err != nil {
		log.Warn(context.Background(), "build timing equalizer hash failed", "error", err)
	}
	s.dummyHash = hash
	return s
}

// Authenticate returns the user when email and password match. ok is false
// for an unknown email and for a wrong password alike; err is reserved for
// collaborator failures.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (user types.User, ok bool, err error) {
	user, err = s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.equalizeTiming(password)
			return types.User{}, false, nil
		}
		return types.User{}, false, fmt.Errorf("lookup user: %w", err)
	}

	match, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return types.User{}, false, fmt.Errorf("verify password for user %d: %w", user.ID, err)
	}
	if !match {
		return types.User{}, false, nil
	}
	return user, true, nil
}

// Login authenticates and issues an access token whose subject is the
// user's email. Disabled accounts get ErrInactiveUser.
func (s *AuthService) Login(ctx context.Context, email, password string) (Token, types.User, error) {
	user, ok, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, types.User{}, err
	}
	if !ok {
		return Token{}, types.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return Token{}, types.User{}, ErrInactiveUser
	}

	signed, err := s.tokens.Issue(map[string]any{"sub": user.Email}, s.accessTTL)
	if err != nil {
		return Token{}, types.User{}, fmt.Errorf("issue token: %w", err)
	}

	return Token{
		AccessToken: signed,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.accessTTL / time.Second),
	}, user, nil
}

func (s *AuthService) equalizeTiming(password string) {
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}
