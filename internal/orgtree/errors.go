package orgtree

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ServiceError is an error the caller can act on. Status and Code are
// surfaced to the client as-is; Cause is only logged.
type ServiceError struct {
	Status  int
	Code    string
	Message string
	Details any
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

const (
	CodeNotFound             = "ORG_NOT_FOUND"
	CodeParentNotFound       = "ORG_PARENT_NOT_FOUND"
	CodeReassignNotFound     = "ORG_REASSIGN_TARGET_NOT_FOUND"
	CodeInvalidBody          = "ORG_INVALID_BODY"
	CodeInvalidType          = "ORG_INVALID_TYPE"
	CodeMoveCycle            = "ORG_MOVE_CYCLE"
	CodeParentInactive       = "ORG_PARENT_INACTIVE"
	CodeInvalidReassign      = "ORG_INVALID_REASSIGN_TARGET"
	CodeHasDependencies      = "ORG_HAS_DEPENDENCIES"
	CodeDeletionNotAllowed   = "ORG_DELETION_NOT_ALLOWED"
	CodeCodeConflict         = "ORG_CODE_CONFLICT"
	CodeParentTenantMismatch = "ORG_PARENT_TENANT_MISMATCH"
)

func errNotFound() *ServiceError {
	return newServiceError(http.StatusNotFound, CodeNotFound, "org node not found", nil)
}

func errParentNotFound() *ServiceError {
	return newServiceError(http.StatusNotFound, CodeParentNotFound, "parent org node not found", nil)
}

func errInvalidBody(message string) *ServiceError {
	return newServiceError(http.StatusBadRequest, CodeInvalidBody, message, nil)
}

// mapPgError passes ServiceErrors through and translates the Postgres
// errors a caller can fix. Anything else is returned unchanged and ends up
// as a 500.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, CodeNotFound, "org node not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		if pgErr.ConstraintName == "org_nodes_tenant_id_code_key" {
			return newServiceError(http.StatusConflict, CodeCodeConflict, "code already exists", err)
		}
	case "23503": // foreign_key_violation
		if pgErr.ConstraintName == "org_nodes_parent_fk" {
			return newServiceError(http.StatusUnprocessableEntity, CodeParentTenantMismatch, "parent must belong to the same tenant", err)
		}
	}
	return err
}
