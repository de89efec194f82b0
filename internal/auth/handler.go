package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/iamdebrajghosh/task-manager/internal/httpx"
	"github.com/iamdebrajghosh/task-manager/internal/token"
	"github.com/iamdebrajghosh/task-manager/internal/user"
	"go.uber.org/zap"
)

type Handler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	Routes() chi.Router
}

type handler struct {
	logger    *zap.Logger
	service   Service
	codec     token.Codec
	validator *validator.Validate
}

func NewHandler(service Service, codec token.Codec, l *zap.Logger) Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &handler{
		logger:    l,
		service:   service,
		codec:     codec,
		validator: v,
	}
}

func (h *handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.codec, h.logger))
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
	return r
}

type registerRequest struct {
	Name     string `json:"name"     validate:"omitempty,max=64"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type authResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	Identity     user.Identity `json:"identity"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, identity, err := h.service.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			httpx.WriteError(w, http.StatusConflict, httpx.ErrorResponse[any]{
				Code:    httpx.ErrConflict,
				Message: "email already exists",
			})
		case errors.Is(err, ErrWeakPassword):
			httpx.WriteError(w, http.StatusUnprocessableEntity, httpx.ErrorResponse[any]{
				Code:    httpx.ErrValidationFailed,
				Message: "password too short",
			})
		default:
			h.logger.Error("failed to register user", zap.Error(err))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorResponse[any]{
				Code:    httpx.ErrInternal,
				Message: "internal server error",
			})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Identity:     *identity,
	})
}

func (h *handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, identity, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// one failure shape for wrong password and unknown email
			httpx.Unauthorized(w, "invalid email or password")
			return
		}
		h.logger.Error("failed to log in user", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorResponse[any]{
			Code:    httpx.ErrInternal,
			Message: "internal server error",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Identity:     *identity,
	})
}

func (h *handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRefreshToken),
			errors.Is(err, token.ErrTokenExpired),
			errors.Is(err, token.ErrTokenInvalid):
			httpx.Unauthorized(w, "invalid refresh token")
		default:
			h.logger.Error("failed to refresh tokens", zap.Error(err))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorResponse[any]{
				Code:    httpx.ErrInternal,
				Message: "internal server error",
			})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	claims, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w, "no token, authorization denied")
		return
	}

	if err := h.service.Logout(ctx, claims.Sub); err != nil {
		h.logger.Error("failed to log out user", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorResponse[any]{
			Code:    httpx.ErrInternal,
			Message: "internal server error",
		})
		return
	}

	httpx.WriteNoContent(w)
}

func (h *handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.Unauthorized(w, "no token, authorization denied")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, claims.Identity())
}

// decode enforces the common body rules for every endpoint: JSON content
// type, bounded size, no unknown fields, no trailing data, struct
// validation. Returns false after writing the error response.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		httpx.WriteError(w, http.StatusUnsupportedMediaType, httpx.ErrorResponse[any]{
			Code:    httpx.ErrUnsupportedMedia,
			Message: "Content-Type must be application/json",
		})
		return false
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		h.logger.Warn("failed to decode request body", zap.Error(err))
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorResponse[any]{
			Code:    httpx.ErrInvalidJSON,
			Message: "invalid request body",
		})
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF { // trailing data check
		h.logger.Warn("trailing data after JSON body", zap.Error(err))
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorResponse[any]{
			Code:    httpx.ErrInvalidJSON,
			Message: "request body must contain a single JSON object",
		})
		return false
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("validation failed", zap.Error(err))
		httpx.WriteError(w, http.StatusUnprocessableEntity, httpx.ErrorResponse[[]httpx.FieldError]{
			Code:    httpx.ErrValidationFailed,
			Message: "validation failed",
			Details: httpx.ValidationDetails(err),
		})
		return false
	}

	return true
}
