package handlers

import (
	"net/http"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/internal/http/response"
	"github.com/diagnosis/service-sphere/internal/service"
)

type AuthHandler struct {
	svc service.AuthService
}

func NewAuthHandler(svc service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in domain.RegisterRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if _, err := h.svc.Register(r.Context(), &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Registered Successfully",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.svc.Login(r.Context(), &in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"token":      res.Token,
		"expires_in": res.ExpiresIn,
		"user":       res.User,
	})
}

// Logout is stateless: the client discards its token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	providers, err := h.svc.ListProviders(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"providers": providers,
	})
}
