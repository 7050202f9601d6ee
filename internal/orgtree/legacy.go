package orgtree

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/lalith-99/hospitalops/internal/repository"
)

// LegacyView serves the flat floor, department and room shapes older
// screens read. It is derived from the tree on every call and never
// written to.
type LegacyView struct {
	nodes repository.OrgNodeRepository
}

func NewLegacyView(nodes repository.OrgNodeRepository) *LegacyView {
	return &LegacyView{nodes: nodes}
}

func (v *LegacyView) Floors(ctx context.Context, tenantID uuid.UUID) ([]models.Floor, error) {
	idx, err := v.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := []models.Floor{}
	for _, n := range idx.active(models.NodeTypeFloor) {
		out = append(out, models.Floor{
			ID:       n.ID,
			TenantID: n.TenantID,
			Name:     n.Name,
			Key:      legacyKey(n, "FLOOR_"+keySuffix(n.Name)),
			Active:   n.IsActive,
		})
	}
	return out, nil
}

func (v *LegacyView) Departments(ctx context.Context, tenantID uuid.UUID) ([]models.Department, error) {
	idx, err := v.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := []models.Department{}
	for _, n := range idx.active(models.NodeTypeDepartment) {
		out = append(out, models.Department{
			ID:       n.ID,
			TenantID: n.TenantID,
			FloorID:  idx.nearest(n.ID, models.NodeTypeFloor),
			Name:     n.Name,
			Key:      legacyKey(n, "DEPT_"+strings.ToUpper(n.ID.String()[:8])),
			Active:   n.IsActive,
		})
	}
	return out, nil
}

func (v *LegacyView) Rooms(ctx context.Context, tenantID uuid.UUID) ([]models.Room, error) {
	idx, err := v.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := []models.Room{}
	for _, n := range idx.active(models.NodeTypeRoom) {
		out = append(out, models.Room{
			ID:           n.ID,
			TenantID:     n.TenantID,
			FloorID:      idx.nearest(n.ID, models.NodeTypeFloor),
			DepartmentID: idx.nearest(n.ID, models.NodeTypeDepartment),
			RoomNumber:   n.Name,
			Key:          legacyKey(n, "ROOM_"+keySuffix(n.Name)),
			Active:       n.IsActive,
		})
	}
	return out, nil
}

func (v *LegacyView) load(ctx context.Context, tenantID uuid.UUID) (*treeIndex, error) {
	all, err := v.nodes.ListByTenant(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}
	return newTreeIndex(all), nil
}

// active returns the active nodes of one type in listing order.
func (t *treeIndex) active(typ models.NodeType) []*models.OrgNode {
	var out []*models.OrgNode
	for _, id := range t.order {
		if n := t.nodes[id]; n.IsActive && n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// legacyKey prefers the node's own code and falls back to the generated
// key format of the old collections.
func legacyKey(n *models.OrgNode, fallback string) string {
	if n.Code != nil && *n.Code != "" {
		return *n.Code
	}
	return fallback
}

func keySuffix(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), "_"))
}
