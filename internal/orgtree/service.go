package orgtree

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/auth"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/lalith-99/hospitalops/internal/observ"
	"github.com/lalith-99/hospitalops/internal/repository"
	"go.uber.org/zap"
)

// Mode selects what a destructive operation does to the node once its
// dependents are cleared.
type Mode string

const (
	ModeDelete     Mode = "delete"
	ModeDeactivate Mode = "deactivate"
)

// ParseMode accepts the wire names of the two removal modes. The second
// result is false for anything else.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeDelete, ModeDeactivate:
		return Mode(s), true
	}
	return "", false
}

// ListOptions filters List. Inactive nodes are hidden unless asked for so
// that soft-deleted branches do not leak into pickers.
type ListOptions struct {
	IncludeInactive bool
}

// CreateNodeInput is a new node as the caller describes it. The tenant,
// audit fields, path, level and ancestor ids are always derived, never
// taken from here. ValidationRules is merged over DefaultValidationRules,
// so an omitted flag keeps its default.
type CreateNodeInput struct {
	Type               models.NodeType
	Name               string
	Code               *string
	Description        *string
	ParentID           *uuid.UUID
	EffectiveStartDate *time.Time
	EffectiveEndDate   *time.Time
	ValidationRules    *models.ValidationRulesPatch
	Metadata           map[string]any
}

// UpdateNodeInput holds field edits. Nil fields are left unchanged; an
// empty Code or Description clears it, and the Clear flags drop an
// effective date. ValidationRules is merged over the node's current rules.
type UpdateNodeInput struct {
	Name                    *string
	Code                    *string
	Description             *string
	EffectiveStartDate      *time.Time
	EffectiveEndDate        *time.Time
	ClearEffectiveStartDate bool
	ClearEffectiveEndDate   bool
	ValidationRules         *models.ValidationRulesPatch
	Metadata                map[string]any
}

// RemoveOptions controls Delete and Deactivate. DryRun runs the same gate
// without writing; ReassignTo moves children and referencing records to
// another node before the removal instead of refusing it.
type RemoveOptions struct {
	DryRun     bool
	ReassignTo *uuid.UUID
}

// MoveResult is the moved node and how many nodes had their structure
// rewritten, the node itself included.
type MoveResult struct {
	Node    models.OrgNode `json:"node"`
	Updated int            `json:"updated"`
}

// RemovalResult describes a delete or deactivate, or with DryRun what one
// would do. Allowed is false exactly when the real call would be rejected
// with ORG_HAS_DEPENDENCIES.
type RemovalResult struct {
	NodeID            uuid.UUID                `json:"nodeId"`
	Mode              Mode                     `json:"mode"`
	DryRun            bool                     `json:"dryRun"`
	Allowed           bool                     `json:"allowed"`
	Dependencies      models.DependencySummary `json:"dependencies"`
	ReassignedTo      *uuid.UUID               `json:"reassignedTo,omitempty"`
	ChildrenMoved     int                      `json:"childrenMoved"`
	RecordsReassigned map[string]int64         `json:"recordsReassigned,omitempty"`
}

// Service is the org tree engine. Every method is scoped to one tenant,
// taken from the caller's identity or passed explicitly for reads; every
// mutation runs in one transaction holding the tenant's tree lock.
type Service struct {
	tx     repository.Transactor
	nodes  repository.OrgNodeRepository
	deps   repository.DependencyRepository
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// EventPublisher is told about every mutation once it has committed.
type EventPublisher interface {
	Publish(evt models.OrgEvent)
}

// NewService wires the engine to its stores. Events are off until
// WithEvents is called.
func NewService(tx repository.Transactor, nodes repository.OrgNodeRepository, deps repository.DependencyRepository, logger *zap.Logger) *Service {
	return &Service{
		tx:     tx,
		nodes:  nodes,
		deps:   deps,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
	}
}

// WithEvents makes the service announce committed mutations to p.
func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

func (s *Service) publish(typ models.OrgEventType, actor auth.Identity, nodeID uuid.UUID, path string, affected int) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.OrgEvent{
		Type:     typ,
		TenantID: actor.TenantID,
		NodeID:   nodeID,
		Path:     path,
		Affected: affected,
		Actor:    actor.Email,
		At:       s.now(),
	})
}

// List returns the tenant's nodes ordered by level and name, with path and
// level recomputed from the parent links rather than read from the cache.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, opts ListOptions) ([]models.OrgNode, error) {
	all, err := s.nodes.ListByTenant(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}

	idx := newTreeIndex(all)
	out := make([]models.OrgNode, 0, len(all))
	for _, id := range idx.order {
		n := *idx.nodes[id]
		if !n.IsActive && !opts.IncludeInactive {
			continue
		}
		n.Path = idx.pathOf(id)
		n.Level = idx.levelOf(id)
		out = append(out, n)
	}
	slices.SortStableFunc(out, func(a, b models.OrgNode) int {
		if c := cmp.Compare(a.Level, b.Level); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

// Get returns one node with its path and level recomputed from the live
// ancestor chain.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.OrgNode, error) {
	n, err := s.nodes.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errNotFound()
	}

	chain, err := s.ancestors(ctx, n)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		names = append(names, chain[i].Name)
	}
	n.Path = joinPath(append(names, n.Name))
	n.Level = len(chain)
	return n, nil
}

// Create inserts a node under ParentID, or as a root, after checking the
// parent exists in the tenant and is active.
func (s *Service) Create(ctx context.Context, actor auth.Identity, in CreateNodeInput) (node *models.OrgNode, err error) {
	defer func() { observ.RecordOrgMutation("create", err) }()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errInvalidBody("name is required")
	}
	if !in.Type.Valid() {
		return nil, newServiceError(http.StatusBadRequest, CodeInvalidType, fmt.Sprintf("unknown node type %q", in.Type), nil)
	}
	if err := checkWindow(in.EffectiveStartDate, in.EffectiveEndDate); err != nil {
		return nil, err
	}

	now := s.now()
	n := &models.OrgNode{
		ID:                 s.newID(),
		TenantID:           actor.TenantID,
		Type:               in.Type,
		Name:               name,
		Code:               trimOptional(in.Code),
		Description:        trimOptional(in.Description),
		Children:           []uuid.UUID{},
		EffectiveStartDate: in.EffectiveStartDate,
		EffectiveEndDate:   in.EffectiveEndDate,
		IsActive:           true,
		ValidationRules:    models.DefaultValidationRules(),
		Metadata:           in.Metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
		CreatedBy:          actor.Email,
		UpdatedBy:          actor.Email,
	}
	if in.ValidationRules != nil {
		n.ValidationRules = in.ValidationRules.Apply(n.ValidationRules)
	}

	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := s.nodes.LockTree(txCtx, actor.TenantID); err != nil {
			return err
		}

		var parent *models.OrgNode
		if in.ParentID != nil {
			p, err := s.nodes.GetByID(txCtx, actor.TenantID, *in.ParentID)
			if err != nil {
				return err
			}
			if p == nil {
				return errParentNotFound()
			}
			if !p.IsActive {
				return errParentInactive()
			}
			parent = p
		}

		place(n, parent)
		if err := s.nodes.Insert(txCtx, n); err != nil {
			return err
		}
		if parent != nil {
			return s.nodes.AddChild(txCtx, actor.TenantID, parent.ID, n.ID)
		}
		return nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	s.logger.Info("org node created",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("node_id", n.ID.String()),
		zap.String("path", n.Path),
	)
	s.publish(models.OrgNodeCreated, actor, n.ID, n.Path, 1)
	return n, nil
}

// Update edits a node's fields. A rename rewrites the path of the node and
// every node below it in the same transaction.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id uuid.UUID, in UpdateNodeInput) (node *models.OrgNode, err error) {
	defer func() { observ.RecordOrgMutation("update", err) }()

	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errInvalidBody("name must not be empty")
		}
	}

	affected := 1
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := s.nodes.LockTree(txCtx, actor.TenantID); err != nil {
			return err
		}
		n, err := s.nodes.GetByID(txCtx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if n == nil {
			return errNotFound()
		}

		renamed := in.Name != nil && name != n.Name
		if in.Name != nil {
			n.Name = name
		}
		if in.Code != nil {
			n.Code = trimOptional(in.Code)
		}
		if in.Description != nil {
			n.Description = trimOptional(in.Description)
		}
		switch {
		case in.ClearEffectiveStartDate:
			n.EffectiveStartDate = nil
		case in.EffectiveStartDate != nil:
			n.EffectiveStartDate = in.EffectiveStartDate
		}
		switch {
		case in.ClearEffectiveEndDate:
			n.EffectiveEndDate = nil
		case in.EffectiveEndDate != nil:
			n.EffectiveEndDate = in.EffectiveEndDate
		}
		if err := checkWindow(n.EffectiveStartDate, n.EffectiveEndDate); err != nil {
			return err
		}
		if in.ValidationRules != nil {
			n.ValidationRules = in.ValidationRules.Apply(n.ValidationRules)
		}
		if in.Metadata != nil {
			n.Metadata = in.Metadata
		}
		n.UpdatedAt = s.now()
		n.UpdatedBy = actor.Email

		if err := s.nodes.Update(txCtx, n); err != nil {
			return err
		}
		if !renamed {
			node = n
			return nil
		}

		idx, err := s.loadIndex(txCtx, actor.TenantID)
		if err != nil {
			return err
		}
		if cur, ok := idx.nodes[id]; ok {
			cur.Name = n.Name
		}
		changed := idx.cascade(id)
		if err := s.writeStructure(txCtx, actor, changed); err != nil {
			return err
		}
		node = changed[0]
		affected = len(changed)
		return nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	s.publish(models.OrgNodeUpdated, actor, node.ID, node.Path, affected)
	return node, nil
}

// Move relinks a node under newParentID, or makes it a root when that is
// nil, and rewrites level, path and ancestor ids for the node and its whole
// subtree.
func (s *Service) Move(ctx context.Context, actor auth.Identity, id uuid.UUID, newParentID *uuid.UUID) (res *MoveResult, err error) {
	defer func() { observ.RecordOrgMutation("move", err) }()

	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := s.nodes.LockTree(txCtx, actor.TenantID); err != nil {
			return err
		}
		idx, err := s.loadIndex(txCtx, actor.TenantID)
		if err != nil {
			return err
		}
		updated, err := s.relink(txCtx, actor, idx, id, newParentID)
		if err != nil {
			return err
		}
		res = &MoveResult{Node: *idx.nodes[id], Updated: updated}
		return nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	s.logger.Info("org node moved",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("node_id", id.String()),
		zap.String("path", res.Node.Path),
		zap.Int("updated", res.Updated),
	)
	s.publish(models.OrgNodeMoved, actor, id, res.Node.Path, res.Updated)
	return res, nil
}

// relink is the body of a move, shared with reassignment of children.
// It returns the number of nodes rewritten.
func (s *Service) relink(ctx context.Context, actor auth.Identity, idx *treeIndex, id uuid.UUID, newParentID *uuid.UUID) (int, error) {
	n, ok := idx.nodes[id]
	if !ok {
		return 0, errNotFound()
	}
	if newParentID != nil {
		p, ok := idx.nodes[*newParentID]
		if !ok {
			return 0, errParentNotFound()
		}
		if p.ID == id || idx.isDescendant(id, p.ID) {
			return 0, newServiceError(http.StatusUnprocessableEntity, CodeMoveCycle,
				"cannot move a node under itself or one of its descendants", nil)
		}
		if !p.IsActive {
			return 0, errParentInactive()
		}
	}

	oldParent := cloneID(n.ParentID)
	if oldParent != nil && (newParentID == nil || *oldParent != *newParentID) {
		if err := s.nodes.RemoveChild(ctx, actor.TenantID, *oldParent, id); err != nil {
			return 0, err
		}
	}
	if newParentID != nil {
		if err := s.nodes.AddChild(ctx, actor.TenantID, *newParentID, id); err != nil {
			return 0, err
		}
	}

	idx.reparent(id, newParentID)
	changed := idx.cascade(id)
	if err := s.writeStructure(ctx, actor, changed); err != nil {
		return 0, err
	}
	return len(changed), nil
}

// CheckDependencies reports what references the node, without changing
// anything. mode decides which counts block.
func (s *Service) CheckDependencies(ctx context.Context, tenantID, id uuid.UUID, mode Mode) (*models.DependencySummary, error) {
	n, err := s.nodes.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errNotFound()
	}
	return s.summarize(ctx, n, mode)
}

// Delete physically removes a node once nothing references it.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id uuid.UUID, opts RemoveOptions) (*RemovalResult, error) {
	return s.remove(ctx, actor, id, ModeDelete, opts)
}

// Deactivate soft-deletes a node. It stays in the tree but drops out of
// default listings.
func (s *Service) Deactivate(ctx context.Context, actor auth.Identity, id uuid.UUID, opts RemoveOptions) (*RemovalResult, error) {
	return s.remove(ctx, actor, id, ModeDeactivate, opts)
}

// Activate reverses a deactivation. It refuses while the parent is
// inactive, and is a no-op on an active node.
func (s *Service) Activate(ctx context.Context, actor auth.Identity, id uuid.UUID) (node *models.OrgNode, err error) {
	defer func() { observ.RecordOrgMutation("activate", err) }()

	activated := false
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := s.nodes.LockTree(txCtx, actor.TenantID); err != nil {
			return err
		}
		n, err := s.nodes.GetByID(txCtx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if n == nil {
			return errNotFound()
		}
		node = n
		if n.IsActive {
			return nil
		}
		if n.ParentID != nil {
			p, err := s.nodes.GetByID(txCtx, actor.TenantID, *n.ParentID)
			if err != nil {
				return err
			}
			if p == nil || !p.IsActive {
				return errParentInactive()
			}
		}
		n.IsActive = true
		n.UpdatedAt = s.now()
		n.UpdatedBy = actor.Email
		activated = true
		return s.nodes.Update(txCtx, n)
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	if activated {
		s.publish(models.OrgNodeActivated, actor, node.ID, node.Path, 1)
	}
	return node, nil
}

func (s *Service) remove(ctx context.Context, actor auth.Identity, id uuid.UUID, mode Mode, opts RemoveOptions) (res *RemovalResult, err error) {
	op := string(mode)
	if opts.DryRun {
		op += "_dry_run"
	}
	defer func() { observ.RecordOrgMutation(op, err) }()

	if opts.DryRun {
		n, err := s.nodes.GetByID(ctx, actor.TenantID, id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, errNotFound()
		}
		summary, err := s.gate(ctx, n, mode, opts.ReassignTo)
		if err != nil {
			return nil, mapPgError(err)
		}
		return &RemovalResult{
			NodeID:       id,
			Mode:         mode,
			DryRun:       true,
			Allowed:      !summary.Blocked || opts.ReassignTo != nil,
			Dependencies: *summary,
			ReassignedTo: opts.ReassignTo,
		}, nil
	}

	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := s.nodes.LockTree(txCtx, actor.TenantID); err != nil {
			return err
		}
		n, err := s.nodes.GetByID(txCtx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if n == nil {
			return errNotFound()
		}

		summary, err := s.gate(txCtx, n, mode, opts.ReassignTo)
		if err != nil {
			return err
		}
		if summary.Blocked && opts.ReassignTo == nil {
			observ.RecordDependencyBlock(summary.Counts)
			return &ServiceError{
				Status:  http.StatusConflict,
				Code:    CodeHasDependencies,
				Message: "org node has dependent records",
				Details: summary,
			}
		}

		res = &RemovalResult{NodeID: id, Mode: mode, Allowed: true, Dependencies: *summary}
		if opts.ReassignTo != nil {
			moved, refs, err := s.reassign(txCtx, actor, id, *opts.ReassignTo)
			if err != nil {
				return err
			}
			res.ReassignedTo = opts.ReassignTo
			res.ChildrenMoved = moved
			res.RecordsReassigned = refs
		}

		if mode == ModeDelete {
			if n.ParentID != nil {
				if err := s.nodes.RemoveChild(txCtx, actor.TenantID, *n.ParentID, id); err != nil {
					return err
				}
			}
			return s.nodes.Delete(txCtx, actor.TenantID, id)
		}
		n.IsActive = false
		n.UpdatedAt = s.now()
		n.UpdatedBy = actor.Email
		return s.nodes.Update(txCtx, n)
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	s.logger.Info("org node removed",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("node_id", id.String()),
		zap.String("mode", string(mode)),
		zap.Int("children_moved", res.ChildrenMoved),
	)
	typ := models.OrgNodeDeactivated
	if mode == ModeDelete {
		typ = models.OrgNodeDeleted
	}
	s.publish(typ, actor, id, "", 1+res.ChildrenMoved)
	return res, nil
}

// gate is the single pre-check behind dry runs and real removals, so both
// always report the same counts.
func (s *Service) gate(ctx context.Context, n *models.OrgNode, mode Mode, reassignTo *uuid.UUID) (*models.DependencySummary, error) {
	if mode == ModeDelete && !n.ValidationRules.AllowDeletion {
		return nil, newServiceError(http.StatusConflict, CodeDeletionNotAllowed, "deletion is disabled for this org node", nil)
	}
	summary, err := s.summarize(ctx, n, mode)
	if err != nil {
		return nil, err
	}
	if reassignTo != nil {
		if err := s.checkReassignTarget(ctx, n, *reassignTo); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// summarize counts dependents. Active children always block. A hard delete
// is also blocked by inactive children and by any referencing record; a
// deactivation is blocked by referencing records only when the node
// requires reassignment.
func (s *Service) summarize(ctx context.Context, n *models.OrgNode, mode Mode) (*models.DependencySummary, error) {
	active, inactive, err := s.deps.CountChildren(ctx, n.TenantID, n.ID)
	if err != nil {
		return nil, err
	}
	refs, err := s.deps.CountReferences(ctx, n.TenantID, n.ID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(refs)+1)
	counts[repository.CategoryChildren] = active
	refTotal := 0
	for k, v := range refs {
		counts[k] = v
		refTotal += v
	}

	blocked := active > 0
	switch mode {
	case ModeDelete:
		blocked = blocked || inactive > 0 || refTotal > 0
	default:
		blocked = blocked || (n.ValidationRules.RequireReassignment && refTotal > 0)
	}

	return &models.DependencySummary{
		NodeID:           n.ID,
		Counts:           counts,
		InactiveChildren: inactive,
		Total:            active + refTotal,
		Blocked:          blocked,
	}, nil
}

func (s *Service) checkReassignTarget(ctx context.Context, n *models.OrgNode, targetID uuid.UUID) error {
	if targetID == n.ID {
		return newServiceError(http.StatusUnprocessableEntity, CodeInvalidReassign, "cannot reassign to the node itself", nil)
	}
	target, err := s.nodes.GetByID(ctx, n.TenantID, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return newServiceError(http.StatusNotFound, CodeReassignNotFound, "reassignment target not found", nil)
	}
	if !target.IsActive {
		return newServiceError(http.StatusUnprocessableEntity, CodeInvalidReassign, "reassignment target is inactive", nil)
	}
	chain, err := s.ancestors(ctx, target)
	if err != nil {
		return err
	}
	for _, a := range chain {
		if a.ID == n.ID {
			return newServiceError(http.StatusUnprocessableEntity, CodeInvalidReassign, "reassignment target lies below the node", nil)
		}
	}
	return nil
}

// reassign moves every child of from, active or not, under to and points
// every referencing record at to.
func (s *Service) reassign(ctx context.Context, actor auth.Identity, from, to uuid.UUID) (int, map[string]int64, error) {
	idx, err := s.loadIndex(ctx, actor.TenantID)
	if err != nil {
		return 0, nil, err
	}
	children := slices.Clone(idx.children[from])
	for _, child := range children {
		target := to
		if _, err := s.relink(ctx, actor, idx, child, &target); err != nil {
			return 0, nil, err
		}
	}
	refs, err := s.deps.ReassignReferences(ctx, actor.TenantID, from, to)
	if err != nil {
		return 0, nil, err
	}
	return len(children), refs, nil
}

func (s *Service) loadIndex(ctx context.Context, tenantID uuid.UUID) (*treeIndex, error) {
	all, err := s.nodes.ListByTenant(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}
	return newTreeIndex(all), nil
}

// ancestors walks up from n one lookup at a time, nearest first.
func (s *Service) ancestors(ctx context.Context, n *models.OrgNode) ([]*models.OrgNode, error) {
	var chain []*models.OrgNode
	seen := map[uuid.UUID]bool{n.ID: true}
	cur := n
	for cur.ParentID != nil && !seen[*cur.ParentID] {
		p, err := s.nodes.GetByID(ctx, n.TenantID, *cur.ParentID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			break
		}
		seen[p.ID] = true
		chain = append(chain, p)
		cur = p
	}
	return chain, nil
}

func (s *Service) writeStructure(ctx context.Context, actor auth.Identity, changed []*models.OrgNode) error {
	now := s.now()
	batch := make([]models.OrgNode, len(changed))
	for i, n := range changed {
		n.UpdatedAt = now
		n.UpdatedBy = actor.Email
		batch[i] = *n
	}
	observ.ObserveCascade(len(batch))
	return s.nodes.UpdateStructure(ctx, actor.TenantID, batch)
}

func errParentInactive() *ServiceError {
	return newServiceError(http.StatusUnprocessableEntity, CodeParentInactive, "parent org node is inactive", nil)
}

func checkWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return errInvalidBody("effectiveEndDate must not be before effectiveStartDate")
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
