package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reckon-app/apiserver/internal/security"
	"github.com/reckon-app/apiserver/internal/services"
	"github.com/reckon-app/apiserver/internal/store/storetest"
	"github.com/reckon-app/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryReports struct {
	objects map[string]any
}

func (r *memoryReports) PutJSON(ctx context.Context, key string, value any) error {
	if r.objects == nil {
		r.objects = make(map[string]any)
	}
	r.objects[key] = value
	return nil
}

func (r *memoryReports) Bucket() string { return "reports" }

type testEnv struct {
	router  *chi.Mux
	repo    *storetest.MemoryUsers
	users   *services.UserService
	codec   *security.TokenCodec
	reports *memoryReports
}

func newTestEnv(t *testing.T, withReports bool) *testEnv {
	t.Helper()

	codec, err := security.NewTokenCodec(security.TokenConfig{Secret: []byte("handler-secret")})
	require.NoError(t, err)

	env := &testEnv{
		repo:  storetest.NewMemoryUsers(),
		codec: codec,
	}
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	env.users = services.NewUserService(env.repo, hasher, nil, nil)
	authService := services.NewAuthService(env.repo, hasher, codec, 30*time.Minute, nil)
	access := NewAccessMiddleware(services.NewAccessResolver(env.repo, codec), nil)

	var reports services.ReportStore
	if withReports {
		env.reports = &memoryReports{}
		reports = env.reports
	}
	adminService := services.NewAdminService(env.repo, nil, reports, services.SystemInfo{Environment: "test", Version: "0.0.1"})

	router := chi.NewRouter()
	HealthRouter(router, NewHealthHandler(HealthChecks{}, "test", "0.0.1", nil))
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authService, nil)
	})
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, env.users, access, nil)
	})
	router.Route("/admin", func(r chi.Router) {
		AdminRouter(r, adminService, access, nil)
	})
	env.router = router
	return env
}

func (e *testEnv) seed(t *testing.T, in types.UserCreate) types.User {
	t.Helper()
	if in.Password == "" {
		in.Password = "secret123"
	}
	user, err := e.users.Create(context.Background(), in)
	require.NoError(t, err)
	return user
}

func (e *testEnv) tokenFor(t *testing.T, email string) string {
	t.Helper()
	token, err := e.codec.Issue(map[string]any{"sub": email}, time.Minute)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func boolPtr(v bool) *bool { return &v }
