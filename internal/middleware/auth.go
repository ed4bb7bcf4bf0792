package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fintrackhq/fintrack/internal/ctxkeys"
	"github.com/fintrackhq/fintrack/internal/service"
)

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RequireAuth verifies the bearer token, resolves it to a user and puts the
// user on the request context. Every goal operation downstream trusts that
// user ID as the owner scope.
func RequireAuth(authService *service.AuthService) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "Access token required")
				return
			}

			claims, err := authService.VerifyJWT(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			userID, ok := claims["user_id"].(string)
			if !ok {
				unauthorized(w, "Invalid or expired token")
				return
			}

			user, err := authService.UserByID(userID)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctxkeys.WithUser(r.Context(), user)))
		}
	}
}
