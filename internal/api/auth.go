package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hospitalops/internal/auth"
	"github.com/lalith-99/hospitalops/internal/middleware"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/lalith-99/hospitalops/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles signup, login and logout. Signup and login are the
// only public endpoints; they produce the token every other route needs.
type AuthHandler struct {
	tx         repository.Transactor
	userRepo   repository.UserRepository
	tenantRepo repository.TenantRepository
	sessions   repository.SessionRepository
	jwtSecret  string
	tokenTTL   time.Duration
	sessionTTL time.Duration
	secure     bool
	logger     *zap.Logger
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	SessionTTL time.Duration
	// SecureCookie marks the auth cookie Secure (HTTPS only).
	SecureCookie bool
}

func NewAuthHandler(
	tx repository.Transactor,
	userRepo repository.UserRepository,
	tenantRepo repository.TenantRepository,
	sessions repository.SessionRepository,
	cfg AuthConfig,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		tx:         tx,
		userRepo:   userRepo,
		tenantRepo: tenantRepo,
		sessions:   sessions,
		jwtSecret:  cfg.JWTSecret,
		tokenTTL:   cfg.TokenTTL,
		sessionTTL: cfg.SessionTTL,
		secure:     cfg.SecureCookie,
		logger:     logger,
	}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
	TenantName  string `json:"tenantName" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// authResponse is what both signup and login return. The token is also set
// as the auth-token cookie.
type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Signup handles POST /v1/auth/signup. It creates a tenant (one hospital)
// and its first user, who gets the super role.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	existing, err := h.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		h.logger.Error("failed to check existing user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered", "code": "USER_EMAIL_TAKEN"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	var user *models.User
	err = h.tx.InTx(ctx, func(txCtx context.Context) error {
		tenant, err := h.tenantRepo.Create(txCtx, strings.TrimSpace(req.TenantName))
		if err != nil {
			return err
		}
		user, err = h.userRepo.Create(txCtx, models.User{
			TenantID:     tenant.ID,
			Email:        req.Email,
			DisplayName:  req.DisplayName,
			PasswordHash: string(hash),
			Role:         auth.SuperRole,
			Permissions:  []string{auth.PermAdminUsers},
			IsActive:     true,
		})
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered", "code": "USER_EMAIL_TAKEN"})
			return
		}
		h.logger.Error("failed to create tenant", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	h.startSession(c, user, http.StatusCreated)
}

// Login handles POST /v1/auth/login. A successful login replaces any
// session the user already had.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to find user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	// Same answer for unknown email, wrong password and disabled account.
	if user == nil || !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password", "code": "UNAUTHORIZED"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password", "code": "UNAUTHORIZED"})
		return
	}

	h.startSession(c, user, http.StatusOK)
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		h.logger.Error("failed to delete session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.secure, true)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User, status int) {
	sess, err := h.sessions.Create(c.Request.Context(), user.ID, user.TenantID, h.sessionTTL)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	ttl := min(h.tokenTTL, h.sessionTTL)
	token, err := auth.GenerateToken(user.ID, sess.ID, user.Email, h.jwtSecret, ttl)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	h.logger.Info("session started",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", user.TenantID.String()),
	)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, int(ttl.Seconds()), "/", "", h.secure, true)
	c.JSON(status, authResponse{Token: token, ExpiresAt: time.Now().Add(ttl).UTC(), User: user})
}
