package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/reckon-app/apiserver/internal/services"
	"github.com/reckon-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_RequiresSuperuser(t *testing.T) {
	env := newTestEnv(t, true)
	env.seed(t, types.UserCreate{Email: "alice@example.com"})
	env.seed(t, types.UserCreate{Email: "sleepy@example.com", IsSuperuser: true, IsActive: boolPtr(false)})

	for _, path := range []string{"/admin/stats/users", "/admin/stats/system"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = env.do(t, http.MethodGet, path, env.tokenFor(t, "alice@example.com"), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		rec = env.do(t, http.MethodGet, path, env.tokenFor(t, "sleepy@example.com"), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestAdmin_Stats(t *testing.T) {
	env := newTestEnv(t, true)
	env.seed(t, types.UserCreate{Email: "alice@example.com"})
	env.seed(t, types.UserCreate{Email: "carol@example.com", IsActive: boolPtr(false)})
	env.seed(t, types.UserCreate{Email: "root@example.com", IsSuperuser: true})
	token := env.tokenFor(t, "root@example.com")

	rec := env.do(t, http.MethodGet, "/admin/stats/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[types.UserStats](t, rec)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 1, stats.Superusers)

	rec = env.do(t, http.MethodGet, "/admin/stats/system", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	system := decodeBody[services.SystemStats](t, rec)
	assert.Equal(t, "test", system.Environment)
	assert.Equal(t, "0.0.1", system.Version)
}

func TestAdmin_ExportReport(t *testing.T) {
	env := newTestEnv(t, true)
	env.seed(t, types.UserCreate{Email: "root@example.com", IsSuperuser: true})

	rec := env.do(t, http.MethodPost, "/admin/reports/users", env.tokenFor(t, "root@example.com"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	ref := decodeBody[services.ReportRef](t, rec)
	assert.Equal(t, "reports", ref.Bucket)
	assert.True(t, strings.HasPrefix(ref.Key, "reports/users/"))
	assert.Contains(t, env.reports.objects, ref.Key)
}

func TestAdmin_ExportReportWithoutStorage(t *testing.T) {
	env := newTestEnv(t, false)
	env.seed(t, types.UserCreate{Email: "root@example.com", IsSuperuser: true})

	rec := env.do(t, http.MethodPost, "/admin/reports/users", env.tokenFor(t, "root@example.com"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
