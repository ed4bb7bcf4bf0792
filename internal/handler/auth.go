package handler

import (
	"errors"
	"net/http"

	"github.com/fintrackhq/fintrack/internal/ctxkeys"
	"github.com/fintrackhq/fintrack/internal/model"
	"github.com/fintrackhq/fintrack/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	err := decodeJSON(r, &in)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.authService.Register(in)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyExists) {
			respondError(w, http.StatusBadRequest, "User already exists with this email")
			return
		}
		respondServiceError(w, err, "Registration failed")
		return
	}

	token, err := h.authService.GenerateJWT(user)
	if err != nil {
		respondServiceError(w, err, "Registration failed")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	err := decodeJSON(r, &in)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.authService.Login(in.Email, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondServiceError(w, err, "Login failed")
		return
	}

	token, err := h.authService.GenerateJWT(user)
	if err != nil {
		respondServiceError(w, err, "Login failed")
		return
	}

	respondJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	respondJSON(w, http.StatusOK, user)
}
