package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hospitalops/internal/middleware"
	"github.com/lalith-99/hospitalops/internal/orgtree"
	"go.uber.org/zap"
)

// StructureHandler serves the flat floor, department and room lists older
// screens still read. All three are projections of the org tree.
type StructureHandler struct {
	view   *orgtree.LegacyView
	logger *zap.Logger
}

func NewStructureHandler(view *orgtree.LegacyView, logger *zap.Logger) *StructureHandler {
	return &StructureHandler{view: view, logger: logger}
}

// Floors handles GET /v1/structure/floors
func (h *StructureHandler) Floors(c *gin.Context) {
	floors, err := h.view.Floors(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"floors": floors})
}

// Departments handles GET /v1/structure/departments
func (h *StructureHandler) Departments(c *gin.Context) {
	departments, err := h.view.Departments(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": departments})
}

// Rooms handles GET /v1/structure/rooms
func (h *StructureHandler) Rooms(c *gin.Context) {
	rooms, err := h.view.Rooms(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}
