package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hospitalops/internal/db"
	"github.com/lalith-99/hospitalops/internal/models"
)

const orgNodeColumns = `
	id, tenant_id, type, name, code, description, parent_id, children,
	level, path, department_id, unit_id, floor_id,
	effective_start_date, effective_end_date, is_active,
	allow_deletion, require_reassignment, metadata,
	created_at, updated_at, created_by, updated_by`

type OrgNodeStore struct {
	pool *pgxpool.Pool
}

func NewOrgNodeStore(pool *pgxpool.Pool) *OrgNodeStore {
	return &OrgNodeStore{pool: pool}
}

func scanOrgNode(row pgx.Row) (*models.OrgNode, error) {
	var n models.OrgNode
	err := row.Scan(
		&n.ID,
		&n.TenantID,
		&n.Type,
		&n.Name,
		&n.Code,
		&n.Description,
		&n.ParentID,
		&n.Children,
		&n.Level,
		&n.Path,
		&n.DepartmentID,
		&n.UnitID,
		&n.FloorID,
		&n.EffectiveStartDate,
		&n.EffectiveEndDate,
		&n.IsActive,
		&n.ValidationRules.AllowDeletion,
		&n.ValidationRules.RequireReassignment,
		&n.Metadata,
		&n.CreatedAt,
		&n.UpdatedAt,
		&n.CreatedBy,
		&n.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if n.Children == nil {
		n.Children = []uuid.UUID{}
	}
	return &n, nil
}

func (s *OrgNodeStore) ListByTenant(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]models.OrgNode, error) {
	query := `SELECT ` + orgNodeColumns + `
		FROM org_nodes
		WHERE tenant_id = $1 AND (is_active OR $2)
		ORDER BY level, name`

	rows, err := db.Conn(ctx, s.pool).Query(ctx, query, tenantID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list org nodes: %w", err)
	}
	defer rows.Close()

	nodes := []models.OrgNode{}
	for rows.Next() {
		n, err := scanOrgNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan org node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate org nodes: %w", err)
	}
	return nodes, nil
}

func (s *OrgNodeStore) GetByID(ctx context.Context, tenantID, nodeID uuid.UUID) (*models.OrgNode, error) {
	query := `SELECT ` + orgNodeColumns + `
		FROM org_nodes
		WHERE id = $1 AND tenant_id = $2`

	n, err := scanOrgNode(db.Conn(ctx, s.pool).QueryRow(ctx, query, nodeID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get org node: %w", err)
	}
	return n, nil
}

// Insert persists node as given. The caller assigns the id and computes
// level, path and ancestor ids.
func (s *OrgNodeStore) Insert(ctx context.Context, n *models.OrgNode) error {
	query := `
		INSERT INTO org_nodes (` + orgNodeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	children := n.Children
	if children == nil {
		children = []uuid.UUID{}
	}
	_, err := db.Conn(ctx, s.pool).Exec(ctx, query,
		n.ID, n.TenantID, n.Type, n.Name, n.Code, n.Description, n.ParentID, children,
		n.Level, n.Path, n.DepartmentID, n.UnitID, n.FloorID,
		n.EffectiveStartDate, n.EffectiveEndDate, n.IsActive,
		n.ValidationRules.AllowDeletion, n.ValidationRules.RequireReassignment, n.Metadata,
		n.CreatedAt, n.UpdatedAt, n.CreatedBy, n.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert org node: %w", err)
	}
	return nil
}

func (s *OrgNodeStore) Update(ctx context.Context, n *models.OrgNode) error {
	query := `
		UPDATE org_nodes
		SET name = $3, code = $4, description = $5,
		    effective_start_date = $6, effective_end_date = $7,
		    is_active = $8, allow_deletion = $9, require_reassignment = $10,
		    metadata = $11, updated_at = $12, updated_by = $13
		WHERE id = $1 AND tenant_id = $2`

	tag, err := db.Conn(ctx, s.pool).Exec(ctx, query,
		n.ID, n.TenantID, n.Name, n.Code, n.Description,
		n.EffectiveStartDate, n.EffectiveEndDate,
		n.IsActive, n.ValidationRules.AllowDeletion, n.ValidationRules.RequireReassignment,
		n.Metadata, n.UpdatedAt, n.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("update org node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update org node %s: %w", n.ID, pgx.ErrNoRows)
	}
	return nil
}

func (s *OrgNodeStore) UpdateStructure(ctx context.Context, tenantID uuid.UUID, nodes []models.OrgNode) error {
	if len(nodes) == 0 {
		return nil
	}
	query := `
		UPDATE org_nodes
		SET parent_id = $3, level = $4, path = $5,
		    department_id = $6, unit_id = $7, floor_id = $8,
		    updated_at = $9, updated_by = $10
		WHERE id = $1 AND tenant_id = $2`

	batch := &pgx.Batch{}
	for _, n := range nodes {
		batch.Queue(query,
			n.ID, tenantID, n.ParentID, n.Level, n.Path,
			n.DepartmentID, n.UnitID, n.FloorID,
			n.UpdatedAt, n.UpdatedBy,
		)
	}

	br := db.Conn(ctx, s.pool).SendBatch(ctx, batch)
	defer br.Close()
	for _, n := range nodes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("update structure of org node %s: %w", n.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close structure batch: %w", err)
	}
	return nil
}

func (s *OrgNodeStore) AddChild(ctx context.Context, tenantID, parentID, childID uuid.UUID) error {
	query := `
		UPDATE org_nodes
		SET children = array_append(array_remove(children, $3), $3)
		WHERE id = $1 AND tenant_id = $2`

	if _, err := db.Conn(ctx, s.pool).Exec(ctx, query, parentID, tenantID, childID); err != nil {
		return fmt.Errorf("add org node child: %w", err)
	}
	return nil
}

func (s *OrgNodeStore) RemoveChild(ctx context.Context, tenantID, parentID, childID uuid.UUID) error {
	query := `
		UPDATE org_nodes
		SET children = array_remove(children, $3)
		WHERE id = $1 AND tenant_id = $2`

	if _, err := db.Conn(ctx, s.pool).Exec(ctx, query, parentID, tenantID, childID); err != nil {
		return fmt.Errorf("remove org node child: %w", err)
	}
	return nil
}

func (s *OrgNodeStore) Delete(ctx context.Context, tenantID, nodeID uuid.UUID) error {
	query := `DELETE FROM org_nodes WHERE id = $1 AND tenant_id = $2`

	if _, err := db.Conn(ctx, s.pool).Exec(ctx, query, nodeID, tenantID); err != nil {
		return fmt.Errorf("delete org node: %w", err)
	}
	return nil
}

// LockTree takes a transaction-scoped advisory lock keyed by tenant. It is
// a no-op outside a transaction, where the lock would be released at once.
func (s *OrgNodeStore) LockTree(ctx context.Context, tenantID uuid.UUID) error {
	tx, ok := db.TxFromContext(ctx)
	if !ok {
		return nil
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenantID.String()); err != nil {
		return fmt.Errorf("lock org tree: %w", err)
	}
	return nil
}
