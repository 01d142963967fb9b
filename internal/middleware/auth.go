package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/unclebandit/xeno-crm-backend/internal/auth"
)

const claimsKey ctxKey = "claims"

// Auth verifies the bearer credential and stores its claims on the context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, `{"success":false,"error":"Access token required"}`, http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseJWT(secret, token)
			if err != nil {
				http.Error(w, `{"success":false,"error":"Invalid token"}`, http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClaims(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
