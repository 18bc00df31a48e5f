package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gradebook/apiserver/internal/apperror"
	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/internal/services"
	"github.com/gradebook/apiserver/types"
)

const tokenTypeBearer = "bearer"

// AuthHandler serves registration, login and the current account.
type AuthHandler struct {
	users *services.UserService
	log   logging.Logger
}

func NewAuthHandler(users *services.UserService, log logging.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, users *services.UserService, authn *Authenticator, log logging.Logger) {
	handler := NewAuthHandler(users, log)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Get("/check/{username}", handler.Check)
	r.Group(func(r chi.Router) {
		r.Use(authn.Require)
		r.Get("/me", handler.Me)
		r.Patch("/me", handler.UpdateMe)
		r.Delete("/me", handler.DeleteMe)
	})
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest accepts the identifier under any of the names clients use.
type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password" validate:"required"`
}

func (req LoginRequest) identifier() string {
	for _, candidate := range []string{req.UsernameOrEmail, req.Email, req.Username} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

type UpdateAccountRequest struct {
	Username     *string `json:"username" validate:"omitempty,min=3,max=50"`
	Password     *string `json:"password" validate:"omitempty,min=6"`
	ProfileImage *string `json:"profile_image"`
}

type AuthResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        types.UserView `json:"user"`
}

type CheckResponse struct {
	Username string `json:"username"`
	Exists   bool   `json:"exists"`
}

func authResponse(res services.AuthResult) AuthResponse {
	return AuthResponse{AccessToken: res.Token, TokenType: tokenTypeBearer, User: res.User}
}

// Register creates an account and returns a session token for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, r, h.log, err)
		return
	}

	res, err := h.users.Register(r.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse(res))
}

// Login verifies credentials and returns a new session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, r, h.log, err)
		return
	}

	res, err := h.users.Authenticate(r.Context(), req.identifier(), req.Password)
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(res))
}

// Check reports whether a username is taken. No authentication needed.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	writeJSON(w, http.StatusOK, CheckResponse{
		Username: username,
		Exists:   h.users.Exists(r.Context(), username),
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user.View())
}

func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req UpdateAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, r, h.log, err)
		return
	}

	view, err := h.users.Update(r.Context(), user.UserID, types.UserUpdate{
		Username:     req.Username,
		Password:     req.Password,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	deleted, err := h.users.Delete(r.Context(), user.UserID)
	if err != nil {
		if apperror.IsNotFound(err) {
			err = apperror.NewAuthError("invalid or expired token", err)
		}
		renderError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("account '%s' deleted", deleted.Username)})
}
