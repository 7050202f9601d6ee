package auth

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// SuperRole bypasses every granular permission check.
const SuperRole = "admin"

const (
	PermOrgRead   = "structure.org.read"
	PermOrgCreate = "structure.org.create"
	PermOrgUpdate = "structure.org.update"
	PermOrgDelete = "structure.org.delete"

	// PermAdminUsers is the administrative permission. Holders may manage
	// users and pass any structure check.
	PermAdminUsers = "admin.users"
)

var ErrForbidden = errors.New("forbidden")

// Identity is the authorized caller, resolved after the tenant.
type Identity struct {
	UserID      uuid.UUID `json:"userId"`
	TenantID    uuid.UUID `json:"tenantId"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
}

// Requirement describes what a route needs. Any single match is enough:
// a listed role, one of the listed permissions (exact or covered by a
// wildcard the caller holds), or any caller permission under one of the
// listed prefixes.
type Requirement struct {
	Roles       []string
	Permissions []string
	Prefixes    []string
}

// Permission is a Requirement for one permission key, which admin.users also
// satisfies.
func Permission(key string) Requirement {
	return Requirement{Permissions: []string{key, PermAdminUsers}}
}

// Authorize is the single place role and permission matching happens.
func Authorize(id Identity, req Requirement) error {
	if id.Role == SuperRole {
		return nil
	}
	for _, role := range req.Roles {
		if id.Role == role {
			return nil
		}
	}
	for _, required := range req.Permissions {
		if HasPermission(id.Permissions, required) {
			return nil
		}
	}
	for _, prefix := range req.Prefixes {
		if HasPrefix(id.Permissions, prefix) {
			return nil
		}
	}
	return ErrForbidden
}

// HasPermission reports whether held covers required, either by exact
// membership or by a wildcard entry: "*" covers everything and "ns.*"
// covers every key under "ns.".
func HasPermission(held []string, required string) bool {
	if required == "" {
		return false
	}
	for _, p := range held {
		if p == required || p == "*" {
			return true
		}
		if ns, ok := strings.CutSuffix(p, "*"); ok && ns != "" && strings.HasSuffix(ns, ".") {
			if strings.HasPrefix(required, ns) {
				return true
			}
		}
	}
	return false
}

// HasPrefix reports whether any held permission starts with prefix.
func HasPrefix(held []string, prefix string) bool {
	if prefix == "" {
		return false
	}
	for _, p := range held {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
