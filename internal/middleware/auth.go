// Package middleware hosts authentication, logging, and rate limiting
// middleware.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vtu/internal/auth"
	"vtu/internal/domain"
	"vtu/pkg/cache"
	"vtu/pkg/errors"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const (
	ctxUserIDKey contextKey = "user_id"
	ctxRoleKey   contextKey = "role"
)

const activeCacheTTL = time.Minute

// TokenValidator is implemented by the auth service.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// AuthMiddleware validates bearer JWTs and injects identity into the context.
// Deactivated accounts are rejected even while their token is still live; the
// active flag is cached briefly so validation stays read-mostly.
type AuthMiddleware struct {
	tokens TokenValidator
	users  UserStore
	cache  *cache.RedisCache
}

func NewAuthMiddleware(tokens TokenValidator, users UserStore, c *cache.RedisCache) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, cache: c}
}

// Authenticate enforces bearer auth and populates identity on the context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			jsonError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			jsonError(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		active, err := m.isActive(r.Context(), claims.UserID)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if !active {
			jsonError(w, http.StatusUnauthorized, "Account is deactivated")
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, ctxRoleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) isActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := "user:active:" + userID.String()
	if m.cache != nil {
		var active bool
		if err := m.cache.Get(ctx, key, &active); err == nil {
			return active, nil
		}
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if m.cache != nil {
		_ = m.cache.Set(ctx, key, user.IsActive, activeCacheTTL)
	}
	return user.IsActive, nil
}

// RequireRole allows only the listed roles past. The role comes from the
// token claim, so a session keeps its capabilities until it expires.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				jsonError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			jsonError(w, http.StatusForbidden, errors.ErrForbidden.Error())
		})
	}
}

// UserIDFromContext returns the authenticated user's UUID from context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxUserIDKey).(uuid.UUID)
	return id, ok
}

// RoleFromContext returns the authenticated user's role from context.
func RoleFromContext(ctx context.Context) (domain.Role, bool) {
	role, ok := ctx.Value(ctxRoleKey).(domain.Role)
	return role, ok
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
