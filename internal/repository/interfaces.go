package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/models"
)

// Every tenant-owned lookup takes tenantID and filters on it in SQL. A row
// belonging to another tenant is indistinguishable from a missing one:
// lookups return nil, nil in both cases.

// Transactor runs fn inside one database transaction. Repository calls made
// with txCtx join that transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// OrgNodeRepository persists the organizational tree.
type OrgNodeRepository interface {
	// ListByTenant returns the tenant's nodes ordered by level, then name.
	// Inactive nodes are included only when includeInactive is set.
	ListByTenant(ctx context.Context, tenantID uuid.UUID, includeInactive bool) ([]models.OrgNode, error)

	// GetByID returns nil, nil when the node does not exist in the tenant.
	GetByID(ctx context.Context, tenantID, nodeID uuid.UUID) (*models.OrgNode, error)

	Insert(ctx context.Context, node *models.OrgNode) error

	// Update writes the editable fields of a node: name, code, description,
	// effective dates, metadata, validation rules, isActive and audit fields.
	Update(ctx context.Context, node *models.OrgNode) error

	// UpdateStructure writes parent, level, path and ancestor ids for a set
	// of nodes in one round trip.
	UpdateStructure(ctx context.Context, tenantID uuid.UUID, nodes []models.OrgNode) error

	AddChild(ctx context.Context, tenantID, parentID, childID uuid.UUID) error
	RemoveChild(ctx context.Context, tenantID, parentID, childID uuid.UUID) error

	Delete(ctx context.Context, tenantID, nodeID uuid.UUID) error

	// LockTree serializes structural mutations of one tenant's tree for the
	// rest of the current transaction.
	LockTree(ctx context.Context, tenantID uuid.UUID) error
}

// DependencyCategory is one record type that can reference an org node.
type DependencyCategory struct {
	Key     string
	Table   string
	Columns []string
}

// CategoryChildren is the key child nodes are reported under.
const CategoryChildren = "children"

// DependencyCategories is the full list of record types checked before a
// node is deactivated or deleted. A new referencing table must be added
// here and to the migrations.
var DependencyCategories = []DependencyCategory{
	{Key: "users", Table: "users", Columns: []string{"department_id", "unit_id", "floor_id", "room_id"}},
	{Key: "opdCensus", Table: "opd_census", Columns: []string{"department_id", "unit_id", "floor_id", "room_id"}},
	{Key: "patientExperience", Table: "patient_experience", Columns: []string{"department_id", "unit_id", "floor_id", "room_id"}},
	{Key: "policyDocuments", Table: "policy_documents", Columns: []string{"department_id", "unit_id", "floor_id"}},
	{Key: "clinics", Table: "clinics", Columns: []string{"department_id", "floor_id", "room_id"}},
}

// DependencyRepository counts and rewrites references to org nodes.
type DependencyRepository interface {
	// CountChildren returns the number of active and inactive direct children.
	CountChildren(ctx context.Context, tenantID, nodeID uuid.UUID) (active, inactive int, err error)

	// CountReferences returns, per DependencyCategories key, the number of
	// records referencing nodeID in any of the category's columns.
	CountReferences(ctx context.Context, tenantID, nodeID uuid.UUID) (map[string]int, error)

	// ReassignReferences points every reference to from at to and returns
	// the number of rows rewritten per category.
	ReassignReferences(ctx context.Context, tenantID, from, to uuid.UUID) (map[string]int64, error)
}

type TenantRepository interface {
	Create(ctx context.Context, name string) (*models.Tenant, error)
}

type UserRepository interface {
	// Create inserts u and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, u models.User) (*models.User, error)

	// GetByID returns a user by their ID, scoped to the tenant.
	GetByID(ctx context.Context, tenantID, userID uuid.UUID) (*models.User, error)

	// GetByEmail looks a user up globally. Only login uses it.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	UpdateAssignment(ctx context.Context, tenantID, userID uuid.UUID, a models.UserAssignment) (*models.User, error)
}

// SessionRepository stores server-side sessions. A user has at most one
// live session; creating a new one invalidates the previous.
type SessionRepository interface {
	Create(ctx context.Context, userID, tenantID uuid.UUID, ttl time.Duration) (*models.Session, error)

	// Get returns nil, nil when the session is unknown, expired or no longer
	// the user's active session.
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	Delete(ctx context.Context, sessionID string) error
}
