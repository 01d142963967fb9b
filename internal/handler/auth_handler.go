package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/xeno-crm-backend/internal/auth"
	"github.com/unclebandit/xeno-crm-backend/internal/middleware"
)

type AuthHandler struct {
	Secret     string
	Expiration time.Duration
	Log        *zap.Logger
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.Email == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if body.Name == "" {
		body.Name = "User"
	}

	token, err := auth.GenerateJWT(h.Secret, body.Email, body.Name, h.Expiration)
	if err != nil {
		h.Log.Error("failed to sign token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
		"user":    map[string]string{"email": body.Email, "name": body.Name},
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "Access token required")
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    map[string]string{"email": claims.Email, "name": claims.Name},
	})
}
