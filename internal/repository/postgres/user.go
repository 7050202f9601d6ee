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

const userColumns = `
	id, tenant_id, email, display_name, password_hash, role, permissions,
	is_active, department_id, unit_id, floor_id, room_id, created_at`

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.TenantID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&u.Role,
		&u.Permissions,
		&u.IsActive,
		&u.DepartmentID,
		&u.UnitID,
		&u.FloorID,
		&u.RoomID,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
	return &u, nil
}

// Create inserts a new user row. Postgres generates the UUID and timestamp.
func (s *UserStore) Create(ctx context.Context, in models.User) (*models.User, error) {
	query := `
		INSERT INTO users (tenant_id, email, display_name, password_hash, role, permissions,
		                   is_active, department_id, unit_id, floor_id, room_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING ` + userColumns

	perms := in.Permissions
	if perms == nil {
		perms = []string{}
	}
	u, err := scanUser(db.Conn(ctx, s.pool).QueryRow(ctx, query,
		in.TenantID, in.Email, in.DisplayName, in.PasswordHash, in.Role, perms,
		in.IsActive, in.DepartmentID, in.UnitID, in.FloorID, in.RoomID,
	))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND tenant_id = $2`

	u, err := scanUser(db.Conn(ctx, s.pool).QueryRow(ctx, query, userID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail looks up a user by email (globally, not tenant-scoped).
// Used for login: the tenant is only known once the user is found.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1)`

	u, err := scanUser(db.Conn(ctx, s.pool).QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateAssignment(ctx context.Context, tenantID, userID uuid.UUID, a models.UserAssignment) (*models.User, error) {
	query := `
		UPDATE users
		SET department_id = $3, unit_id = $4, floor_id = $5, room_id = $6
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + userColumns

	u, err := scanUser(db.Conn(ctx, s.pool).QueryRow(ctx, query,
		userID, tenantID, a.DepartmentID, a.UnitID, a.FloorID, a.RoomID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update user assignment: %w", err)
	}
	return u, nil
}
