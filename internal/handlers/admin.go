package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reckon-app/apiserver/internal/logging"
	"github.com/reckon-app/apiserver/internal/services"
)

// AdminHandler serves the superuser-only endpoints.
type AdminHandler struct {
	adminService *services.AdminService
	log          logging.Logger
}

func NewAdminHandler(adminService *services.AdminService, log logging.Logger) *AdminHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &AdminHandler{adminService: adminService, log: log}
}

// AdminRouter registers admin routes behind the active superuser gate.
func AdminRouter(r chi.Router, adminService *services.AdminService, access *AccessMiddleware, log logging.Logger) {
	handler := NewAdminHandler(adminService, log)

	r.Use(access.Authenticate, access.RequireActive, access.RequireSuperuser)

	r.Get("/stats/users", handler.UserStats)
	r.Get("/stats/system", handler.SystemStats)
	r.Post("/reports/users", handler.ExportUserReport)
}

func (h *AdminHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.UserStats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) SystemStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.adminService.SystemStats(r.Context()))
}

func (h *AdminHandler) ExportUserReport(w http.ResponseWriter, r *http.Request) {
	caller, _ := currentUser(r.Context())

	ref, err := h.adminService.ExportUserReport(r.Context(), caller)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.log.Info(r.Context(), "user report exported", "bucket", ref.Bucket, "key", ref.Key, "user_id", caller.ID)
	writeJSON(w, http.StatusCreated, ref)
}
