package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/reckon-app/apiserver/internal/logging"
	"github.com/reckon-app/apiserver/internal/services"
)

// AuthHandler provides the token endpoint.
type AuthHandler struct {
	authService *services.AuthService
	log         logging.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, log logging.Logger) *AuthHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, log logging.Logger) {
	handler := NewAuthHandler(authService, log)

	r.Post("/login", handler.Login)
}

// Login verifies credentials and returns a bearer token. It accepts a JSON
// body or an OAuth2 password-flow form where username carries the email.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := parseLoginRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.log.Info(r.Context(), "user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, token)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func parseLoginRequest(w http.ResponseWriter, r *http.Request) (LoginRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return LoginRequest{}, errors.New("invalid form")
		}
		email := r.PostFormValue("username")
		if email == "" {
			email = r.PostFormValue("email")
		}
		return LoginRequest{Email: email, Password: r.PostFormValue("password")}, nil
	default:
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return LoginRequest{}, err
		}
		return req, nil
	}
}
