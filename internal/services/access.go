package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/reckon-app/apiserver/internal/security"
	"github.com/reckon-app/apiserver/internal/store"
	"github.com/reckon-app/apiserver/types"
)

// TokenDecoder verifies bearer tokens and returns their claims.
type TokenDecoder interface {
	Decode(token string) (map[string]any, error)
}

// AccessResolver derives the calling user from a bearer token and applies
// the active and superuser gates.
type AccessResolver struct {
	users  UserLookup
	tokens TokenDecoder
}

func NewAccessResolver(users UserLookup, tokens TokenDecoder) *AccessResolver {
	return &AccessResolver{users: users, tokens: tokens}
}

// ResolveCurrentUser decodes token, reads its subject email, and loads the
// user. Every token or lookup miss is ErrUnauthenticated wrapping the cause;
// store failures other than not-found are returned as-is.
func (a *AccessResolver) ResolveCurrentUser(ctx context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims, err := a.tokens.Decode(token)
	if err != nil {
		return types.User{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	email, ok := security.Subject(claims)
	if !ok {
		return types.User{}, fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, fmt.Errorf("%w: unknown subject", ErrUnauthenticated)
		}
		return types.User{}, fmt.Errorf("resolve current user: %w", err)
	}
	return user, nil
}

// RequireActive passes user through when the account is active.
func (a *AccessResolver) RequireActive(user types.User) (types.User, error) {
	if !user.IsActive {
		return types.User{}, ErrInactiveUser
	}
	return user, nil
}

// RequireSuperuser passes user through when it holds the superuser flag.
func (a *AccessResolver) RequireSuperuser(user types.User) (types.User, error) {
	if !user.IsSuperuser {
		return types.User{}, ErrInsufficientPrivilege
	}
	return user, nil
}
