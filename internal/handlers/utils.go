package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gradebook/apiserver/internal/apperror"
	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/types"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextUserKey contextKey = "user"

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// renderError maps err onto a status code. Internal failures are logged and
// answered with a generic message.
func renderError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fieldErrors(verrs)})
		return
	}

	appErr := apperror.From(err)
	if appErr.Type == apperror.InternalError {
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeError(w, appErr.StatusCode(), appErr.Message)
}

// decodeBody reads a JSON body into v and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.NewValidationError("request body is required", err)
		}
		return apperror.NewValidationError("invalid request body", err)
	}
	if err := validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return err
	}
	return nil
}

func itemIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "itemID")
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperror.NewValidationError(fmt.Sprintf("invalid item id %q", raw), err)
	}
	return id, nil
}

// pathParam returns an unescaped URL parameter. chi routes on RawPath when it
// is set, and on the already decoded Path otherwise.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", apperror.NewAuthError("missing authorization header", nil)
	}
	parts := strings.Fields(auth)
	if len(parts) != 2 {
		return "", apperror.NewAuthError("invalid authorization format", nil)
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", apperror.NewAuthError("bearer scheme required", nil)
	}
	return parts[1], nil
}
