package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/fitduel/fitduel-backend/internal/service"
	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
)

// Auth authenticates the bearer token and stores the resolved user ID on the
// request context for the battle and auth handlers.
func Auth(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				log.Printf("ERROR [middleware.Auth] missing or malformed authorization header")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			userID, err := authService.AuthenticateToken(token)
			if err != nil {
				log.Printf("ERROR [middleware.Auth] token authentication failed: %v", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}
