package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reckon-app/apiserver/internal/logging"
	"github.com/reckon-app/apiserver/internal/services"
	"github.com/reckon-app/apiserver/types"
)

// UserHandler provides HTTP handlers for user management.
type UserHandler struct {
	userService *services.UserService
	log         logging.Logger
}

// NewUserHandler constructs a handler with the provided service.
func NewUserHandler(userService *services.UserService, log logging.Logger) *UserHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

// UserRouter registers user routes on the given router. Every route requires
// an active caller.
func UserRouter(r chi.Router, userService *services.UserService, access *AccessMiddleware, log logging.Logger) {
	handler := NewUserHandler(userService, log)

	r.Use(access.Authenticate, access.RequireActive)

	r.Get("/", handler.ListUsers)
	r.Post("/", handler.CreateUser)
	r.Get("/me", handler.GetMe)
	r.Put("/me", handler.UpdateMe)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.userService.List(r.Context(), skip, limit)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	if users == nil {
		users = []types.User{}
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := currentUser(r.Context())

	var req types.UserCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsSuperuser && !caller.IsSuperuser {
		writeServiceError(w, r, h.log, services.ErrInsufficientPrivilege)
		return
	}

	user, err := h.userService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.log.Info(r.Context(), "user created", "user_id", user.ID, "created_by", caller.ID)
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := currentUser(r.Context())
	writeJSON(w, http.StatusOK, caller)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := currentUser(r.Context())
	h.update(w, r, caller, caller)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := h.userService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	caller, _ := currentUser(r.Context())
	h.update(w, r, caller, target)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.userService.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	caller, _ := currentUser(r.Context())
	h.log.Info(r.Context(), "user deleted", "user_id", deleted.ID, "deleted_by", caller.ID)
	writeJSON(w, http.StatusOK, DeleteUserResponse{
		Message: "User deleted successfully",
		User:    deleted,
	})
}

// update applies a patch to target. Only superusers may change account flags.
func (h *UserHandler) update(w http.ResponseWriter, r *http.Request, caller, target types.User) {
	var patch types.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.TouchesPrivileges() && !caller.IsSuperuser {
		writeServiceError(w, r, h.log, services.ErrInsufficientPrivilege)
		return
	}

	updated, err := h.userService.Update(r.Context(), target, patch)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteUserResponse confirms a deletion and echoes the removed record.
type DeleteUserResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}
