package orgtree

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/models"
)

// treeIndex is a tenant's tree materialized once per operation: nodes by id
// plus a parent -> children adjacency built from ParentID, not from the
// cached Children column.
type treeIndex struct {
	nodes    map[uuid.UUID]*models.OrgNode
	children map[uuid.UUID][]uuid.UUID
	order    []uuid.UUID
}

func newTreeIndex(nodes []models.OrgNode) *treeIndex {
	idx := &treeIndex{
		nodes:    make(map[uuid.UUID]*models.OrgNode, len(nodes)),
		children: make(map[uuid.UUID][]uuid.UUID, len(nodes)),
		order:    make([]uuid.UUID, 0, len(nodes)),
	}
	for i := range nodes {
		n := nodes[i]
		idx.nodes[n.ID] = &n
		idx.order = append(idx.order, n.ID)
	}
	for _, id := range idx.order {
		n := idx.nodes[id]
		if n.ParentID != nil {
			idx.children[*n.ParentID] = append(idx.children[*n.ParentID], id)
		}
	}
	return idx
}

// ancestors returns the ids above id, nearest first. A dangling parent id
// ends the chain; so does a repeated id, so a corrupted tree cannot loop.
func (t *treeIndex) ancestors(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	seen := map[uuid.UUID]bool{id: true}
	cur, ok := t.nodes[id]
	for ok && cur.ParentID != nil {
		pid := *cur.ParentID
		if seen[pid] {
			break
		}
		seen[pid] = true
		if cur, ok = t.nodes[pid]; ok {
			out = append(out, pid)
		}
	}
	return out
}

func (t *treeIndex) pathOf(id uuid.UUID) string {
	n, ok := t.nodes[id]
	if !ok {
		return ""
	}
	anc := t.ancestors(id)
	names := make([]string, 0, len(anc)+1)
	for i := len(anc) - 1; i >= 0; i-- {
		names = append(names, t.nodes[anc[i]].Name)
	}
	names = append(names, n.Name)
	return joinPath(names)
}

func (t *treeIndex) levelOf(id uuid.UUID) int {
	return len(t.ancestors(id))
}

// isDescendant reports whether id lies strictly below ancestor.
func (t *treeIndex) isDescendant(ancestor, id uuid.UUID) bool {
	for _, a := range t.ancestors(id) {
		if a == ancestor {
			return true
		}
	}
	return false
}

// nearest returns the closest ancestor of id with the given type.
func (t *treeIndex) nearest(id uuid.UUID, typ models.NodeType) *uuid.UUID {
	for _, a := range t.ancestors(id) {
		if t.nodes[a].Type == typ {
			found := a
			return &found
		}
	}
	return nil
}

// descendants returns every node below id in breadth-first order, so a
// node always comes after its parent.
func (t *treeIndex) descendants(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	seen := map[uuid.UUID]bool{id: true}
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range t.children[cur] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// reparent relinks id under newParent (nil makes it a root) in the
// adjacency map. Callers check for cycles first.
func (t *treeIndex) reparent(id uuid.UUID, newParent *uuid.UUID) {
	n := t.nodes[id]
	if n.ParentID != nil {
		old := *n.ParentID
		siblings := t.children[old]
		for i, c := range siblings {
			if c == id {
				t.children[old] = append(siblings[:i:i], siblings[i+1:]...)
				break
			}
		}
	}
	if newParent == nil {
		n.ParentID = nil
		return
	}
	pid := *newParent
	n.ParentID = &pid
	t.children[pid] = append(t.children[pid], id)
}

// cascade recomputes level, path and ancestor ids for id and every node
// below it, and returns them in the order they were rewritten.
func (t *treeIndex) cascade(id uuid.UUID) []*models.OrgNode {
	root := t.nodes[id]
	parent := t.parentOf(root)
	if parent != nil {
		parent.Path = t.pathOf(parent.ID)
		parent.Level = t.levelOf(parent.ID)
	}
	place(root, parent)
	out := []*models.OrgNode{root}
	for _, d := range t.descendants(id) {
		n := t.nodes[d]
		place(n, t.parentOf(n))
		out = append(out, n)
	}
	return out
}

func (t *treeIndex) parentOf(n *models.OrgNode) *models.OrgNode {
	if n.ParentID == nil {
		return nil
	}
	return t.nodes[*n.ParentID]
}

// place derives a node's structural fields from its parent, whose own
// fields must already be current.
//
// A department parent starts a new department scope, a unit parent adds a
// unit under the parent's department, a floor parent adds a floor under
// both. Other parent types pass their ancestors through unchanged.
func place(n *models.OrgNode, parent *models.OrgNode) {
	if parent == nil {
		n.ParentID = nil
		n.Level = 0
		n.Path = joinPath([]string{n.Name})
		n.DepartmentID, n.UnitID, n.FloorID = nil, nil, nil
		return
	}

	pid := parent.ID
	n.ParentID = &pid
	n.Level = parent.Level + 1
	n.Path = parent.Path + "/" + n.Name

	switch parent.Type {
	case models.NodeTypeDepartment:
		n.DepartmentID, n.UnitID, n.FloorID = &pid, nil, nil
	case models.NodeTypeUnit:
		n.DepartmentID, n.UnitID, n.FloorID = cloneID(parent.DepartmentID), &pid, nil
	case models.NodeTypeFloor:
		n.DepartmentID, n.UnitID, n.FloorID = cloneID(parent.DepartmentID), cloneID(parent.UnitID), &pid
	default:
		n.DepartmentID, n.UnitID, n.FloorID = cloneID(parent.DepartmentID), cloneID(parent.UnitID), cloneID(parent.FloorID)
	}
}

func joinPath(names []string) string {
	return "/" + strings.Join(names, "/")
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
