package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const userIDKey contextKey = "userID"

// BearerUserMiddleware validates HS256 Bearer tokens signed with secret and
// injects the token subject as the user ID.
func BearerUserMiddleware(secret []byte, logger *zap.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				handleServiceError(w, &domain.ErrUnauthorized{Message: "missing bearer token"}, logger)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				handleServiceError(w, &domain.ErrUnauthorized{Message: "invalid authorization header"}, logger)
				return
			}

			var claims jwt.RegisteredClaims
			_, err := parser.ParseWithClaims(parts[1], &claims, func(*jwt.Token) (any, error) {
				return secret, nil
			})
			if err != nil || claims.Subject == "" {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				handleServiceError(w, &domain.ErrUnauthorized{Message: "invalid or expired token"}, logger)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// SameUserMiddleware rejects requests whose {userId} path parameter differs
// from the authenticated user. It must run after BearerUserMiddleware.
func SameUserMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requested := chi.URLParam(r, "userId")
			if requested != UserIDFromContext(r.Context()) {
				handleServiceError(w, &domain.ErrForbidden{UserID: requested}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
