package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hospitalops/internal/db"
	"github.com/lalith-99/hospitalops/internal/repository"
)

// DependencyStore counts and rewrites references to org nodes across the
// tables in repository.DependencyCategories.
//
// users rows always carry a tenant. The operational tables may hold rows
// imported before tenant tagging (tenant_id IS NULL); those count for, and
// are reassigned by, every tenant until they are backfilled.
type DependencyStore struct {
	pool       *pgxpool.Pool
	categories []repository.DependencyCategory
}

func NewDependencyStore(pool *pgxpool.Pool) *DependencyStore {
	return &DependencyStore{pool: pool, categories: repository.DependencyCategories}
}

func tenantClause(table string) string {
	if table == "users" {
		return "tenant_id = $1"
	}
	return "(tenant_id = $1 OR tenant_id IS NULL)"
}

func (s *DependencyStore) CountChildren(ctx context.Context, tenantID, nodeID uuid.UUID) (int, int, error) {
	query := `
		SELECT count(*) FILTER (WHERE is_active),
		       count(*) FILTER (WHERE NOT is_active)
		FROM org_nodes
		WHERE tenant_id = $1 AND parent_id = $2`

	var active, inactive int
	if err := db.Conn(ctx, s.pool).QueryRow(ctx, query, tenantID, nodeID).Scan(&active, &inactive); err != nil {
		return 0, 0, fmt.Errorf("count org node children: %w", err)
	}
	return active, inactive, nil
}

func (s *DependencyStore) CountReferences(ctx context.Context, tenantID, nodeID uuid.UUID) (map[string]int, error) {
	counts := make(map[string]int, len(s.categories))
	conn := db.Conn(ctx, s.pool)

	batch := &pgx.Batch{}
	for _, cat := range s.categories {
		refs := make([]string, len(cat.Columns))
		for i, col := range cat.Columns {
			refs[i] = pgx.Identifier{col}.Sanitize() + " = $2"
		}
		query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s AND (%s)`,
			pgx.Identifier{cat.Table}.Sanitize(), tenantClause(cat.Table), strings.Join(refs, " OR "))
		batch.Queue(query, tenantID, nodeID)
	}

	br := conn.SendBatch(ctx, batch)
	defer br.Close()
	for _, cat := range s.categories {
		var n int
		if err := br.QueryRow().Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s references: %w", cat.Key, err)
		}
		counts[cat.Key] = n
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("close reference count batch: %w", err)
	}
	return counts, nil
}

// ReassignReferences rewrites each reference column independently, so a
// record that points at the node as its floor keeps its department and
// room untouched. A record referencing the node in two columns is counted
// once per column.
func (s *DependencyStore) ReassignReferences(ctx context.Context, tenantID, from, to uuid.UUID) (map[string]int64, error) {
	moved := make(map[string]int64, len(s.categories))
	conn := db.Conn(ctx, s.pool)

	for _, cat := range s.categories {
		table := pgx.Identifier{cat.Table}.Sanitize()
		for _, col := range cat.Columns {
			column := pgx.Identifier{col}.Sanitize()
			query := fmt.Sprintf(`UPDATE %s SET %s = $3 WHERE %s AND %s = $2`,
				table, column, tenantClause(cat.Table), column)
			tag, err := conn.Exec(ctx, query, tenantID, from, to)
			if err != nil {
				return nil, fmt.Errorf("reassign %s.%s: %w", cat.Table, col, err)
			}
			moved[cat.Key] += tag.RowsAffected()
		}
	}
	return moved, nil
}
