package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/reckon-app/apiserver/internal/logging"
	"github.com/reckon-app/apiserver/internal/services"
	"github.com/reckon-app/apiserver/types"
)

// AccessMiddleware resolves the bearer token into the current user and
// gates routes on the account flags.
type AccessMiddleware struct {
	resolver *services.AccessResolver
	log      logging.Logger
}

func NewAccessMiddleware(resolver *services.AccessResolver, log logging.Logger) *AccessMiddleware {
	if log == nil {
		log = logging.Nop()
	}
	return &AccessMiddleware{resolver: resolver, log: log}
}

// Authenticate enforces a valid bearer token and injects the user into context.
func (m *AccessMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeServiceError(w, r, m.log, errors.Join(services.ErrUnauthenticated, err))
			return
		}

		user, err := m.resolver.ResolveCurrentUser(r.Context(), token)
		if err != nil {
			writeServiceError(w, r, m.log, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withCurrentUser(r.Context(), user)))
	})
}

// RequireActive rejects disabled accounts. It must run after Authenticate.
func (m *AccessMiddleware) RequireActive(next http.Handler) http.Handler {
	return m.gate(next, m.resolver.RequireActive)
}

// RequireSuperuser rejects callers without the superuser flag. It must run
// after Authenticate.
func (m *AccessMiddleware) RequireSuperuser(next http.Handler) http.Handler {
	return m.gate(next, m.resolver.RequireSuperuser)
}

func (m *AccessMiddleware) gate(next http.Handler, check func(user types.User) (types.User, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(r.Context())
		if !ok {
			writeServiceError(w, r, m.log, services.ErrUnauthenticated)
			return
		}
		if _, err := check(user); err != nil {
			writeServiceError(w, r, m.log, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request once the response is written.
func RequestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info(r.Context(), "http request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"remote_addr", r.RemoteAddr,
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
