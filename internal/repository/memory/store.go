// Package memory is an in-process implementation of the repository
// interfaces. It backs handler and service tests; nothing in it is durable.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/lalith-99/hospitalops/internal/repository"
)

// Ref is one row of an operational table that points at org nodes. A nil
// TenantID is a legacy row visible to every tenant.
type Ref struct {
	Category string
	TenantID *uuid.UUID
	Columns  map[string]uuid.UUID
}

type state struct {
	nodes   map[uuid.UUID]models.OrgNode
	users   map[uuid.UUID]models.User
	tenants map[uuid.UUID]models.Tenant
	refs    []Ref
}

func (s state) clone() state {
	out := state{
		nodes:   make(map[uuid.UUID]models.OrgNode, len(s.nodes)),
		users:   make(map[uuid.UUID]models.User, len(s.users)),
		tenants: maps.Clone(s.tenants),
		refs:    make([]Ref, len(s.refs)),
	}
	for id, n := range s.nodes {
		out.nodes[id] = cloneNode(n)
	}
	for id, u := range s.users {
		u.Permissions = slices.Clone(u.Permissions)
		out.users[id] = u
	}
	for i, r := range s.refs {
		r.Columns = maps.Clone(r.Columns)
		out.refs[i] = r
	}
	return out
}

// Store implements Transactor, OrgNodeRepository and DependencyRepository.
// Users and Tenants return views over the same state.
//
// Transactions are serialized: InTx holds txMu for the whole of fn,
// snapshots the state and restores it when fn fails. Calls made outside
// InTx are not isolated from a running transaction.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
}

type txKey struct{}

func New() *Store {
	return &Store{st: state{
		nodes:   map[uuid.UUID]models.OrgNode{},
		users:   map[uuid.UUID]models.User{},
		tenants: map[uuid.UUID]models.Tenant{},
	}}
}

func cloneNode(n models.OrgNode) models.OrgNode {
	n.Children = slices.Clone(n.Children)
	if n.Children == nil {
		n.Children = []uuid.UUID{}
	}
	return n
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func (s *Store) InTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, s))
	if err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
	}
	return err
}

func (s *Store) ListByTenant(_ context.Context, tenantID uuid.UUID, includeInactive bool) ([]models.OrgNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.OrgNode{}
	for _, n := range s.st.nodes {
		if n.TenantID != tenantID || (!n.IsActive && !includeInactive) {
			continue
		}
		out = append(out, cloneNode(n))
	}
	slices.SortFunc(out, func(a, b models.OrgNode) int {
		if c := cmp.Compare(a.Level, b.Level); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) GetByID(_ context.Context, tenantID, nodeID uuid.UUID) (*models.OrgNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.st.nodes[nodeID]
	if !ok || n.TenantID != tenantID {
		return nil, nil
	}
	c := cloneNode(n)
	return &c, nil
}

// Insert enforces the per-tenant case-insensitive code uniqueness the
// Postgres index does, with the same error.
func (s *Store) Insert(_ context.Context, n *models.OrgNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Code != nil {
		for _, other := range s.st.nodes {
			if other.TenantID == n.TenantID && other.Code != nil && strings.EqualFold(*other.Code, *n.Code) {
				return &pgconn.PgError{Code: "23505", ConstraintName: "org_nodes_tenant_id_code_key"}
			}
		}
	}
	s.st.nodes[n.ID] = cloneNode(*n)
	return nil
}

func (s *Store) Update(_ context.Context, n *models.OrgNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.st.nodes[n.ID]
	if !ok || cur.TenantID != n.TenantID {
		return nil
	}
	cur.Name = n.Name
	cur.Code = n.Code
	cur.Description = n.Description
	cur.EffectiveStartDate = n.EffectiveStartDate
	cur.EffectiveEndDate = n.EffectiveEndDate
	cur.IsActive = n.IsActive
	cur.ValidationRules = n.ValidationRules
	cur.Metadata = n.Metadata
	cur.UpdatedAt = n.UpdatedAt
	cur.UpdatedBy = n.UpdatedBy
	s.st.nodes[n.ID] = cur
	return nil
}

func (s *Store) UpdateStructure(_ context.Context, tenantID uuid.UUID, nodes []models.OrgNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		cur, ok := s.st.nodes[n.ID]
		if !ok || cur.TenantID != tenantID {
			continue
		}
		cur.ParentID = cloneID(n.ParentID)
		cur.Level = n.Level
		cur.Path = n.Path
		cur.DepartmentID = cloneID(n.DepartmentID)
		cur.UnitID = cloneID(n.UnitID)
		cur.FloorID = cloneID(n.FloorID)
		cur.UpdatedAt = n.UpdatedAt
		cur.UpdatedBy = n.UpdatedBy
		s.st.nodes[n.ID] = cur
	}
	return nil
}

func (s *Store) AddChild(_ context.Context, tenantID, parentID, childID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.nodes[parentID]
	if !ok || p.TenantID != tenantID {
		return nil
	}
	if !slices.Contains(p.Children, childID) {
		p.Children = append(slices.Clone(p.Children), childID)
	}
	s.st.nodes[parentID] = p
	return nil
}

func (s *Store) RemoveChild(_ context.Context, tenantID, parentID, childID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.nodes[parentID]
	if !ok || p.TenantID != tenantID {
		return nil
	}
	p.Children = slices.DeleteFunc(slices.Clone(p.Children), func(id uuid.UUID) bool { return id == childID })
	s.st.nodes[parentID] = p
	return nil
}

func (s *Store) Delete(_ context.Context, tenantID, nodeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.st.nodes[nodeID]; ok && n.TenantID == tenantID {
		delete(s.st.nodes, nodeID)
	}
	return nil
}

func (s *Store) LockTree(context.Context, uuid.UUID) error { return nil }

func (s *Store) CountChildren(_ context.Context, tenantID, nodeID uuid.UUID) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active, inactive int
	for _, n := range s.st.nodes {
		if n.TenantID != tenantID || n.ParentID == nil || *n.ParentID != nodeID {
			continue
		}
		if n.IsActive {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive, nil
}

func refVisible(r Ref, tenantID uuid.UUID) bool {
	return r.TenantID == nil || *r.TenantID == tenantID
}

func userSlots(u *models.User) []**uuid.UUID {
	return []**uuid.UUID{&u.DepartmentID, &u.UnitID, &u.FloorID, &u.RoomID}
}

// CountReferences counts user assignments from the users map and every
// other category from the stored refs.
func (s *Store) CountReferences(_ context.Context, tenantID, nodeID uuid.UUID) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, cat := range repository.DependencyCategories {
		counts[cat.Key] = 0
	}
	for _, u := range s.st.users {
		if u.TenantID != tenantID {
			continue
		}
		for _, slot := range userSlots(&u) {
			if *slot != nil && **slot == nodeID {
				counts["users"]++
				break
			}
		}
	}
	for _, r := range s.st.refs {
		if !refVisible(r, tenantID) {
			continue
		}
		for _, id := range r.Columns {
			if id == nodeID {
				counts[r.Category]++
				break
			}
		}
	}
	return counts, nil
}

func (s *Store) ReassignReferences(_ context.Context, tenantID, from, to uuid.UUID) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	moved := map[string]int64{}
	for id, u := range s.st.users {
		if u.TenantID != tenantID {
			continue
		}
		for _, slot := range userSlots(&u) {
			if *slot != nil && **slot == from {
				target := to
				*slot = &target
				moved["users"]++
			}
		}
		s.st.users[id] = u
	}
	for i, r := range s.st.refs {
		if !refVisible(r, tenantID) {
			continue
		}
		for col, id := range r.Columns {
			if id == from {
				s.st.refs[i].Columns[col] = to
				moved[r.Category]++
			}
		}
	}
	return moved, nil
}

// AddRef records an operational row referencing nodeID through column.
func (s *Store) AddRef(category string, tenantID *uuid.UUID, column string, nodeID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.refs = append(s.st.refs, Ref{
		Category: category,
		TenantID: tenantID,
		Columns:  map[string]uuid.UUID{column: nodeID},
	})
}

// Node returns the stored node regardless of tenant.
func (s *Store) Node(id uuid.UUID) (models.OrgNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.st.nodes[id]
	return cloneNode(n), ok
}

func (s *Store) Users() *UserStore { return &UserStore{s: s} }

func (s *Store) Tenants() *TenantStore { return &TenantStore{s: s} }

type UserStore struct {
	s *Store
}

func (u *UserStore) Create(_ context.Context, in models.User) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, other := range u.s.st.users {
		if strings.EqualFold(other.Email, in.Email) {
			return nil, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
	}
	in.ID = uuid.New()
	in.CreatedAt = time.Now().UTC()
	if in.Permissions == nil {
		in.Permissions = []string{}
	}
	u.s.st.users[in.ID] = in
	out := in
	return &out, nil
}

func (u *UserStore) GetByID(_ context.Context, tenantID, userID uuid.UUID) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.st.users[userID]
	if !ok || user.TenantID != tenantID {
		return nil, nil
	}
	return &user, nil
}

func (u *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.st.users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, nil
}

func (u *UserStore) UpdateAssignment(_ context.Context, tenantID, userID uuid.UUID, a models.UserAssignment) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.st.users[userID]
	if !ok || user.TenantID != tenantID {
		return nil, nil
	}
	user.DepartmentID = cloneID(a.DepartmentID)
	user.UnitID = cloneID(a.UnitID)
	user.FloorID = cloneID(a.FloorID)
	user.RoomID = cloneID(a.RoomID)
	u.s.st.users[userID] = user
	return &user, nil
}

// SetActive toggles a user's account. The HTTP API has no endpoint for it.
func (u *UserStore) SetActive(userID uuid.UUID, active bool) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if user, ok := u.s.st.users[userID]; ok {
		user.IsActive = active
		u.s.st.users[userID] = user
	}
}

type TenantStore struct {
	s *Store
}

func (t *TenantStore) Create(_ context.Context, name string) (*models.Tenant, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	tenant := models.Tenant{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	t.s.st.tenants[tenant.ID] = tenant
	return &tenant, nil
}

var (
	_ repository.Transactor           = (*Store)(nil)
	_ repository.OrgNodeRepository    = (*Store)(nil)
	_ repository.DependencyRepository = (*Store)(nil)
	_ repository.UserRepository       = (*UserStore)(nil)
	_ repository.TenantRepository     = (*TenantStore)(nil)
)
