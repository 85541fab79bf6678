package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reckon-app/apiserver/internal/logging"
	"github.com/reckon-app/apiserver/internal/services"
	"github.com/reckon-app/apiserver/internal/store"
	"github.com/reckon-app/apiserver/types"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextUserKey contextKey = "current_user"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func withCurrentUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func currentUser(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok && user.ID > 0
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, message)
}

// writeServiceError maps service and store errors onto HTTP responses.
// Unexpected errors are logged with the request id and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
	case errors.Is(err, services.ErrUnauthenticated):
		log.Warn(r.Context(), "token rejected", "request_id", middleware.GetReqID(r.Context()), "reason", err)
		writeUnauthorized(w, services.ErrUnauthenticated.Error())
	case errors.Is(err, services.ErrInactiveUser):
		writeError(w, http.StatusBadRequest, "inactive user")
	case errors.Is(err, services.ErrInsufficientPrivilege):
		writeError(w, http.StatusForbidden, "insufficient privileges")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, store.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "email already registered")
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error(r.Context(), "request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

// parsePagination checks the syntax of skip and limit. An absent limit is
// returned as zero; UserService.List applies the default and the cap.
func parsePagination(r *http.Request) (skip, limit int, err error) {
	if raw := strings.TrimSpace(r.URL.Query().Get("skip")); raw != "" {
		skip, err = strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return 0, 0, errors.New("invalid skip")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	return skip, limit, nil
}

func parseUserID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}
