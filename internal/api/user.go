package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/hospitalops/internal/middleware"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/lalith-99/hospitalops/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler handles user-related operations.
type UserHandler struct {
	users  repository.UserRepository
	nodes  repository.OrgNodeRepository
	logger *zap.Logger
}

func NewUserHandler(users repository.UserRepository, nodes repository.OrgNodeRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, nodes: nodes, logger: logger}
}

type createUserRequest struct {
	Email       string   `json:"email" binding:"required,email"`
	Password    string   `json:"password" binding:"required,min=8"`
	DisplayName string   `json:"displayName" binding:"required"`
	Role        string   `json:"role" binding:"omitempty,oneof=admin supervisor staff viewer"`
	Permissions []string `json:"permissions"`
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.GetTenantID(c), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found", "code": "USER_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Create handles POST /v1/users. The new user always joins the caller's
// tenant.
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Role == "" {
		req.Role = "staff"
	}

	existing, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to check existing user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered", "code": "USER_EMAIL_TAKEN"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	user, err := h.users.Create(c.Request.Context(), models.User{
		TenantID:     middleware.GetTenantID(c),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Permissions:  req.Permissions,
		IsActive:     true,
	})
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered", "code": "USER_EMAIL_TAKEN"})
			return
		}
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateAssignment handles PUT /v1/users/:id/assignment. Every id sent must
// be an active org node of the caller's tenant with the slot's type; null
// clears the slot.
func (h *UserHandler) UpdateAssignment(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.UserAssignment
	if !bindJSON(c, &req) {
		return
	}
	tenantID := middleware.GetTenantID(c)

	slots := []struct {
		field string
		typ   models.NodeType
		id    *uuid.UUID
	}{
		{"departmentId", models.NodeTypeDepartment, req.DepartmentID},
		{"unitId", models.NodeTypeUnit, req.UnitID},
		{"floorId", models.NodeTypeFloor, req.FloorID},
		{"roomId", models.NodeTypeRoom, req.RoomID},
	}
	for _, slot := range slots {
		if slot.id == nil {
			continue
		}
		node, err := h.nodes.GetByID(c.Request.Context(), tenantID, *slot.id)
		if err != nil {
			h.logger.Error("failed to load org node", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update assignment"})
			return
		}
		if node == nil || !node.IsActive {
			c.JSON(http.StatusNotFound, gin.H{"error": "org node not found", "code": "ORG_NOT_FOUND"})
			return
		}
		if node.Type != slot.typ {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": fmt.Sprintf("%s must reference a %s node", slot.field, slot.typ),
				"code":  "ASSIGNMENT_TYPE_MISMATCH",
			})
			return
		}
	}

	user, err := h.users.UpdateAssignment(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		h.logger.Error("failed to update assignment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update assignment"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found", "code": "USER_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
