package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/middleware"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/lalith-99/hospitalops/internal/orgtree"
	"go.uber.org/zap"
)

// OrgHandler serves /v1/structure/org. The tenant and the acting user
// always come from the resolved identity, never from the request.
type OrgHandler struct {
	svc    *orgtree.Service
	logger *zap.Logger
}

func NewOrgHandler(svc *orgtree.Service, logger *zap.Logger) *OrgHandler {
	return &OrgHandler{svc: svc, logger: logger}
}

type createNodeRequest struct {
	Type               models.NodeType              `json:"type" binding:"required"`
	Name               string                       `json:"name" binding:"required"`
	Code               *string                      `json:"code"`
	Description        *string                      `json:"description"`
	ParentID           *uuid.UUID                   `json:"parentId"`
	EffectiveStartDate *time.Time                   `json:"effectiveStartDate"`
	EffectiveEndDate   *time.Time                   `json:"effectiveEndDate"`
	ValidationRules    *models.ValidationRulesPatch `json:"validationRules"`
	Metadata           map[string]any               `json:"metadata"`
}

// updateNodeRequest leaves omitted fields unchanged. An explicit null
// effective date clears it.
type updateNodeRequest struct {
	Name               *string                      `json:"name"`
	Code               *string                      `json:"code"`
	Description        *string                      `json:"description"`
	EffectiveStartDate optionalTime                 `json:"effectiveStartDate"`
	EffectiveEndDate   optionalTime                 `json:"effectiveEndDate"`
	ValidationRules    *models.ValidationRulesPatch `json:"validationRules"`
	Metadata           map[string]any               `json:"metadata"`
}

// optionalTime tells an omitted field apart from an explicit null.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

func (o optionalTime) cleared() bool { return o.Set && o.Value == nil }

type moveNodeRequest struct {
	NewParentID *uuid.UUID `json:"newParentId"`
}

type removeNodeRequest struct {
	DryRun     bool       `json:"dryRun"`
	ReassignTo *uuid.UUID `json:"reassignTo"`
}

// List handles GET /v1/structure/org?includeInactive=true
func (h *OrgHandler) List(c *gin.Context) {
	includeInactive, ok := queryBool(c, "includeInactive")
	if !ok {
		return
	}

	nodes, err := h.svc.List(c.Request.Context(), middleware.GetTenantID(c), orgtree.ListOptions{IncludeInactive: includeInactive})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

// Create handles POST /v1/structure/org
func (h *OrgHandler) Create(c *gin.Context) {
	var req createNodeRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, _ := middleware.GetIdentity(c)

	node, err := h.svc.Create(c.Request.Context(), actor, orgtree.CreateNodeInput{
		Type:               req.Type,
		Name:               req.Name,
		Code:               req.Code,
		Description:        req.Description,
		ParentID:           req.ParentID,
		EffectiveStartDate: req.EffectiveStartDate,
		EffectiveEndDate:   req.EffectiveEndDate,
		ValidationRules:    req.ValidationRules,
		Metadata:           req.Metadata,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"node": node})
}

// Get handles GET /v1/structure/org/:id
func (h *OrgHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	node, err := h.svc.Get(c.Request.Context(), middleware.GetTenantID(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node": node})
}

// Update handles PATCH /v1/structure/org/:id
func (h *OrgHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateNodeRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, _ := middleware.GetIdentity(c)

	node, err := h.svc.Update(c.Request.Context(), actor, id, orgtree.UpdateNodeInput{
		Name:                    req.Name,
		Code:                    req.Code,
		Description:             req.Description,
		EffectiveStartDate:      req.EffectiveStartDate.Value,
		EffectiveEndDate:        req.EffectiveEndDate.Value,
		ClearEffectiveStartDate: req.EffectiveStartDate.cleared(),
		ClearEffectiveEndDate:   req.EffectiveEndDate.cleared(),
		ValidationRules:         req.ValidationRules,
		Metadata:                req.Metadata,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node": node})
}

// Move handles POST /v1/structure/org/:id/move. A null or missing
// newParentId makes the node a root.
func (h *OrgHandler) Move(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req moveNodeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	actor, _ := middleware.GetIdentity(c)

	res, err := h.svc.Move(c.Request.Context(), actor, id, req.NewParentID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Dependencies handles GET /v1/structure/org/:id/dependencies?mode=delete
func (h *OrgHandler) Dependencies(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	mode, ok := orgtree.ParseMode(c.DefaultQuery("mode", string(orgtree.ModeDeactivate)))
	if !ok {
		writeBadRequest(c, "mode must be delete or deactivate")
		return
	}

	summary, err := h.svc.CheckDependencies(c.Request.Context(), middleware.GetTenantID(c), id, mode)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dependencies": summary})
}

// Deactivate handles POST /v1/structure/org/:id/deactivate
func (h *OrgHandler) Deactivate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req removeNodeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	actor, _ := middleware.GetIdentity(c)

	res, err := h.svc.Deactivate(c.Request.Context(), actor, id, orgtree.RemoveOptions{DryRun: req.DryRun, ReassignTo: req.ReassignTo})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Activate handles POST /v1/structure/org/:id/activate
func (h *OrgHandler) Activate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor, _ := middleware.GetIdentity(c)

	node, err := h.svc.Activate(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node": node})
}

// Delete handles DELETE /v1/structure/org/:id?dryRun=true&reassignTo=<id>
func (h *OrgHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	dryRun, ok := queryBool(c, "dryRun")
	if !ok {
		return
	}
	opts := orgtree.RemoveOptions{DryRun: dryRun}
	if raw := c.Query("reassignTo"); raw != "" {
		target, err := uuid.Parse(raw)
		if err != nil {
			writeBadRequest(c, "invalid reassignTo")
			return
		}
		opts.ReassignTo = &target
	}
	actor, _ := middleware.GetIdentity(c)

	res, err := h.svc.Delete(c.Request.Context(), actor, id, opts)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func queryBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeBadRequest(c, name+" must be a boolean")
		return false, false
	}
	return v, true
}
