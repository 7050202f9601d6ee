package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the top-level isolation boundary (one hospital or hospital group).
// Every user and every org node belongs to exactly one tenant.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is a person within a tenant.
//
// Role and Permissions drive the authorization guard. The assignment fields
// (DepartmentID, UnitID, FloorID, RoomID) point at org nodes, which is why
// users show up as a dependency category when a node is deactivated.
type User struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenantId"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"displayName"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Permissions  []string   `json:"permissions"`
	IsActive     bool       `json:"isActive"`
	DepartmentID *uuid.UUID `json:"departmentId,omitempty"`
	UnitID       *uuid.UUID `json:"unitId,omitempty"`
	FloorID      *uuid.UUID `json:"floorId,omitempty"`
	RoomID       *uuid.UUID `json:"roomId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// UserAssignment places a user in the org tree. Each id, when set, must be
// an org node of the user's tenant.
type UserAssignment struct {
	DepartmentID *uuid.UUID `json:"departmentId"`
	UnitID       *uuid.UUID `json:"unitId"`
	FloorID      *uuid.UUID `json:"floorId"`
	RoomID       *uuid.UUID `json:"roomId"`
}

// NodeType is the kind of an org node. The set is fixed.
type NodeType string

const (
	NodeTypeDepartment NodeType = "department"
	NodeTypeUnit       NodeType = "unit"
	NodeTypeFloor      NodeType = "floor"
	NodeTypeRoom       NodeType = "room"
	NodeTypeLine       NodeType = "line"
	NodeTypeSection    NodeType = "section"
	NodeTypeCommittee  NodeType = "committee"
	NodeTypeCustom     NodeType = "custom"
)

// NodeTypes lists every valid NodeType, in display order.
var NodeTypes = []NodeType{
	NodeTypeDepartment,
	NodeTypeUnit,
	NodeTypeFloor,
	NodeTypeRoom,
	NodeTypeLine,
	NodeTypeSection,
	NodeTypeCommittee,
	NodeTypeCustom,
}

func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ValidationRules are per-node policy flags consulted before a destructive
// operation.
type ValidationRules struct {
	AllowDeletion       bool `json:"allowDeletion"`
	RequireReassignment bool `json:"requireReassignment"`
}

// DefaultValidationRules is what every new node starts with.
func DefaultValidationRules() ValidationRules {
	return ValidationRules{AllowDeletion: true, RequireReassignment: true}
}

// ValidationRulesPatch is a partial edit of ValidationRules. A nil flag
// keeps the value it is applied over.
type ValidationRulesPatch struct {
	AllowDeletion       *bool `json:"allowDeletion"`
	RequireReassignment *bool `json:"requireReassignment"`
}

// Apply returns base with the flags set in p overwritten.
func (p ValidationRulesPatch) Apply(base ValidationRules) ValidationRules {
	if p.AllowDeletion != nil {
		base.AllowDeletion = *p.AllowDeletion
	}
	if p.RequireReassignment != nil {
		base.RequireReassignment = *p.RequireReassignment
	}
	return base
}

// OrgNode is one node of a tenant's organizational tree.
//
// Children, Level, Path and the denormalized ancestor ids are cached
// projections of the ParentID chain. The tree engine keeps them consistent
// on every mutation and recomputes Path and Level on read.
type OrgNode struct {
	ID                 uuid.UUID       `json:"id"`
	TenantID           uuid.UUID       `json:"tenantId"`
	Type               NodeType        `json:"type"`
	Name               string          `json:"name"`
	Code               *string         `json:"code,omitempty"`
	Description        *string         `json:"description,omitempty"`
	ParentID           *uuid.UUID      `json:"parentId,omitempty"`
	Children           []uuid.UUID     `json:"children"`
	Level              int             `json:"level"`
	Path               string          `json:"path"`
	DepartmentID       *uuid.UUID      `json:"departmentId,omitempty"`
	UnitID             *uuid.UUID      `json:"unitId,omitempty"`
	FloorID            *uuid.UUID      `json:"floorId,omitempty"`
	EffectiveStartDate *time.Time      `json:"effectiveStartDate,omitempty"`
	EffectiveEndDate   *time.Time      `json:"effectiveEndDate,omitempty"`
	IsActive           bool            `json:"isActive"`
	ValidationRules    ValidationRules `json:"validationRules"`
	Metadata           map[string]any  `json:"metadata,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	CreatedBy          string          `json:"createdBy,omitempty"`
	UpdatedBy          string          `json:"updatedBy,omitempty"`
}

// Floor, Department and Room are the flat shapes older screens consume.
// They are read-only projections of floor/department/room tree nodes.
type Floor struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenantId"`
	Name     string    `json:"name"`
	Key      string    `json:"key"`
	Active   bool      `json:"active"`
}

type Department struct {
	ID       uuid.UUID  `json:"id"`
	TenantID uuid.UUID  `json:"tenantId"`
	FloorID  *uuid.UUID `json:"floorId,omitempty"`
	Name     string     `json:"name"`
	Key      string     `json:"key"`
	Active   bool       `json:"active"`
}

type Room struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenantId"`
	FloorID      *uuid.UUID `json:"floorId,omitempty"`
	DepartmentID *uuid.UUID `json:"departmentId,omitempty"`
	RoomNumber   string     `json:"roomNumber"`
	Key          string     `json:"key"`
	Active       bool       `json:"active"`
}

// DependencySummary is the result of a dependency check. Counts is keyed by
// category (children, users, opdCensus, ...). InactiveChildren only matters
// for hard deletes.
type DependencySummary struct {
	NodeID           uuid.UUID      `json:"nodeId"`
	Counts           map[string]int `json:"counts"`
	InactiveChildren int            `json:"inactiveChildren"`
	Total            int            `json:"total"`
	Blocked          bool           `json:"blocked"`
}

// Session is the server-side record a token points at. The tenant of a
// request is always read from here, never from client input.
type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	TenantID  uuid.UUID `json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type OrgEventType string

const (
	OrgNodeCreated     OrgEventType = "org.node.created"
	OrgNodeUpdated     OrgEventType = "org.node.updated"
	OrgNodeMoved       OrgEventType = "org.node.moved"
	OrgNodeActivated   OrgEventType = "org.node.activated"
	OrgNodeDeactivated OrgEventType = "org.node.deactivated"
	OrgNodeDeleted     OrgEventType = "org.node.deleted"
)

// OrgEvent announces a committed change to a tenant's tree. Affected
// counts the nodes whose structural fields were rewritten.
type OrgEvent struct {
	Type     OrgEventType `json:"type"`
	TenantID uuid.UUID    `json:"tenantId"`
	NodeID   uuid.UUID    `json:"nodeId"`
	Path     string       `json:"path,omitempty"`
	Affected int          `json:"affected"`
	Actor    string       `json:"actor"`
	At       time.Time    `json:"at"`
}
