package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/reckon-app/apiserver/config"
	"github.com/reckon-app/apiserver/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		Environment: "test",
		Version:     "9.9.9",
		Auth: config.AuthConfig{
			SecretKey:                "server-secret",
			Algorithm:                "HS256",
			AccessTokenExpireMinutes: 30,
			BcryptCost:               4,
		},
	}
}

func TestNewWithDependencies_Routes(t *testing.T) {
	dbConn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	srv, err := NewWithDependencies(testConfig(), nil, Dependencies{
		DB:    dbConn,
		Users: store.NewUserRepository(dbConn),
	})
	require.NoError(t, err)
	assert.Equal(t, ":8080", srv.Addr())

	serve := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	rec := serve(http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "9.9.9", health["version"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	mock.ExpectPing()
	rec = serve(http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	mock.ExpectPing()
	rec = serve(http.MethodGet, "/health/detailed")
	require.Equal(t, http.StatusOK, rec.Code)
	var detailed struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detailed))
	assert.Equal(t, "healthy", detailed.Status)
	assert.Equal(t, map[string]string{"database": "healthy", "events": "disabled", "storage": "disabled"}, detailed.Checks)

	for _, path := range []string{"/users", "/users/me", "/admin/stats/users"} {
		rec = serve(http.MethodGet, path)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec = serve(http.MethodPost, "/auth/login")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mock.ExpectClose()
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.SecretKey = ""

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}
