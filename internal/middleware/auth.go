package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/auth"
	"github.com/lalith-99/hospitalops/internal/repository"
	"go.uber.org/zap"
)

// Context keys for values the auth chain stores in gin.Context.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyTenantID  = "tenant_id"
	ContextKeySessionID = "session_id"
	ContextKeyEmail     = "email"
	ContextKeyIdentity  = "identity"
)

// TokenCookie is read when no Authorization header is sent.
const TokenCookie = "auth-token"

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// AuthMiddleware resolves the tenant of a request. It validates the JWT,
// then loads the server-side session the token names; the tenant id comes
// from that session record only. Headers, query parameters and bodies are
// never consulted for it.
func AuthMiddleware(secret string, sessions repository.SessionRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}

		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		sess, err := sessions.Get(c.Request.Context(), claims.SessionID)
		if err != nil {
			logger.Error("failed to load session", zap.Error(err))
			abort(c, http.StatusInternalServerError, "INTERNAL", "internal error")
			return
		}
		if sess == nil || sess.UserID != claims.UserID {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "session expired or revoked")
			return
		}

		c.Set(ContextKeyUserID, sess.UserID)
		c.Set(ContextKeyTenantID, sess.TenantID)
		c.Set(ContextKeySessionID, sess.ID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
			return cookie, nil
		}
		return "", errors.New("missing authorization header")
	}

	// Expected format: "Bearer eyJhbGciOi..."
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("invalid authorization format, expected: Bearer <token>")
	}
	return parts[1], nil
}

// LoadIdentity resolves the caller's role and permissions from the users
// table, scoped to the tenant AuthMiddleware resolved. It must run after
// AuthMiddleware; without a tenant the request is rejected before any
// lookup.
func LoadIdentity(users repository.UserRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := GetTenantID(c)
		userID := GetUserID(c)
		if tenantID == uuid.Nil || userID == uuid.Nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "no active tenant")
			return
		}

		user, err := users.GetByID(c.Request.Context(), tenantID, userID)
		if err != nil {
			logger.Error("failed to load user", zap.Error(err), zap.String("user_id", userID.String()))
			abort(c, http.StatusInternalServerError, "INTERNAL", "internal error")
			return
		}
		if user == nil || !user.IsActive {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "user not found or inactive")
			return
		}

		c.Set(ContextKeyIdentity, auth.Identity{
			UserID:      user.ID,
			TenantID:    tenantID,
			Email:       user.Email,
			Role:        user.Role,
			Permissions: user.Permissions,
		})
		c.Next()
	}
}

// Require rejects callers whose identity does not satisfy req.
func Require(req auth.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
			return
		}
		if err := auth.Authorize(id, req); err != nil {
			abort(c, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetTenantID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyTenantID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetSessionID(c *gin.Context) string {
	return c.GetString(ContextKeySessionID)
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}

func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return auth.Identity{}, false
	}
	id, ok := val.(auth.Identity)
	return id, ok
}
