package security

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL applies when neither the caller nor the config sets a lifetime.
const DefaultTokenTTL = 15 * time.Minute

var (
	// ErrTokenInvalid is returned when the signature or algorithm does not verify.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when the exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when the token cannot be parsed.
	ErrTokenMalformed = errors.New("token malformed")
)

// TokenConfig is the immutable signing configuration shared by issue and decode.
type TokenConfig struct {
	Secret     []byte
	Algorithm  string
	DefaultTTL time.Duration
}

// TokenCodec issues and decodes signed, time-bounded bearer tokens.
type TokenCodec struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	defaultTTL time.Duration
	now        func() time.Time
}

// TokenOption customizes a TokenCodec.
type TokenOption func(*TokenCodec)

// WithClock overrides the time source used for exp and validation.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec validates cfg and returns a codec. Only HMAC algorithms are
// accepted since the service holds a single symmetric key.
func NewTokenCodec(cfg TokenConfig, opts ...TokenOption) (*TokenCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}

	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	c := &TokenCodec{
		secret:     append([]byte(nil), cfg.Secret...),
		method:     method,
		defaultTTL: ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DefaultTTL returns the lifetime used when Issue is called without one.
func (c *TokenCodec) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Issue signs claims with exp set to now+ttl and iat set to now. A
// non-positive ttl selects the codec default. The caller's map is not modified.
func (c *TokenCodec) Issue(claims map[string]any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	merged := make(jwt.MapClaims, len(claims)+2)
	maps.Copy(merged, claims)
	merged["iat"] = now.Unix()
	merged["exp"] = now.Add(ttl).Unix()

	signed, err := jwt.NewWithClaims(c.method, merged).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry of tokenString and returns its claims.
func (c *TokenCodec) Decode(tokenString string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
	}
	return claims, nil
}

// Subject returns the non-empty string sub claim, if any.
func Subject(claims map[string]any) (string, bool) {
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", false
	}
	sub = strings.TrimSpace(sub)
	return sub, sub != ""
}
