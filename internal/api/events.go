package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hospitalops/internal/middleware"
	"github.com/lalith-99/hospitalops/internal/realtime"
	"go.uber.org/zap"
)

// EventsHandler streams the caller's tenant's org tree changes over a
// websocket.
type EventsHandler struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

func NewEventsHandler(hub *realtime.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// Stream handles GET /v1/structure/org/events. Browsers authenticate with
// the auth-token cookie since they cannot set headers on the upgrade.
func (h *EventsHandler) Stream(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	if err := h.hub.Serve(c.Writer, c.Request, tenantID); err != nil {
		// the upgrader has already written the error response
		h.logger.Warn("websocket upgrade failed",
			zap.Error(err),
			zap.String("tenant_id", tenantID.String()),
		)
	}
}
