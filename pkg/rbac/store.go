package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finsuite/accessgate/pkg/tenant"
)

// SQLStore reads role definitions and assignments from a relational
// administrative store.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store backed by db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the role tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS roles (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			org_id BIGINT,
			level INTEGER NOT NULL DEFAULT 0,
			inherits_lower BOOLEAN NOT NULL DEFAULT FALSE,
			permissions TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS principal_roles (
			principal_id BIGINT NOT NULL,
			role_id BIGINT NOT NULL,
			org_id BIGINT NOT NULL,
			granted_at TIMESTAMP NOT NULL,
			PRIMARY KEY (principal_id, role_id, org_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rbac: migrating schema: %w", err)
		}
	}
	return nil
}

// GetRolesForPrincipal returns the principal's assigned roles visible within
// org: roles scoped to that organization plus system-wide roles.
func (s *SQLStore) GetRolesForPrincipal(ctx context.Context, principal tenant.PrincipalID, org tenant.OrgID) ([]Role, error) {
	query := `
		SELECT r.id, r.name, r.org_id, r.level, r.inherits_lower, r.permissions, r.created_at, r.updated_at
		FROM roles r
		JOIN principal_roles pr ON r.id = pr.role_id
		WHERE pr.principal_id = $1
		  AND pr.org_id = $2
		  AND (r.org_id = $2 OR r.org_id IS NULL)
		ORDER BY r.level DESC
	`

	rows, err := s.db.QueryContext(ctx, query, int64(principal), int64(org))
	if err != nil {
		return nil, fmt.Errorf("rbac: querying roles for principal %d in org %d: %w", principal, org, err)
	}
	defer rows.Close()
	return scanRoles(rows)
}

// GetRolesBelowLevel returns every role visible within org with a level
// strictly below the given level.
func (s *SQLStore) GetRolesBelowLevel(ctx context.Context, org tenant.OrgID, level int) ([]Role, error) {
	query := `
		SELECT id, name, org_id, level, inherits_lower, permissions, created_at, updated_at
		FROM roles
		WHERE (org_id = $1 OR org_id IS NULL) AND level < $2
		ORDER BY level DESC
	`

	rows, err := s.db.QueryContext(ctx, query, int64(org), level)
	if err != nil {
		return nil, fmt.Errorf("rbac: querying roles below level %d in org %d: %w", level, org, err)
	}
	defer rows.Close()
	return scanRoles(rows)
}

// CreateRole writes a role definition. Exposed for fixtures and the admin
// layer's convenience; the decision engine itself only reads.
func (s *SQLStore) CreateRole(ctx context.Context, role *Role) error {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("rbac: encoding permissions for role %q: %w", role.Name, err)
	}

	var orgID interface{}
	if role.OrgID != nil {
		orgID = int64(*role.OrgID)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO roles (id, name, org_id, level, inherits_lower, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		int64(role.ID), role.Name, orgID, role.Level, role.InheritsLower, string(perms), now, now)
	if err != nil {
		return fmt.Errorf("rbac: creating role %q: %w", role.Name, err)
	}
	return nil
}

// AssignRole binds a role to a principal within an organization.
func (s *SQLStore) AssignRole(ctx context.Context, principal tenant.PrincipalID, role tenant.RoleID, org tenant.OrgID) error {
	query := `
		INSERT INTO principal_roles (principal_id, role_id, org_id, granted_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, int64(principal), int64(role), int64(org), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rbac: assigning role %d to principal %d: %w", role, principal, err)
	}
	return nil
}

// RevokeRole removes a role binding.
func (s *SQLStore) RevokeRole(ctx context.Context, principal tenant.PrincipalID, role tenant.RoleID, org tenant.OrgID) error {
	query := `DELETE FROM principal_roles WHERE principal_id = $1 AND role_id = $2 AND org_id = $3`
	_, err := s.db.ExecContext(ctx, query, int64(principal), int64(role), int64(org))
	if err != nil {
		return fmt.Errorf("rbac: revoking role %d from principal %d: %w", role, principal, err)
	}
	return nil
}

// UpdateRolePermissions replaces a role's permission patterns.
func (s *SQLStore) UpdateRolePermissions(ctx context.Context, role tenant.RoleID, patterns []string) error {
	perms, err := json.Marshal(patterns)
	if err != nil {
		return fmt.Errorf("rbac: encoding permissions for role %d: %w", role, err)
	}
	query := `UPDATE roles SET permissions = $1, updated_at = $2 WHERE id = $3`
	_, err = s.db.ExecContext(ctx, query, string(perms), time.Now().UTC(), int64(role))
	if err != nil {
		return fmt.Errorf("rbac: updating role %d: %w", role, err)
	}
	return nil
}

func scanRoles(rows *sql.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		var (
			role     Role
			orgID    sql.NullInt64
			permsRaw string
		)
		if err := rows.Scan(&role.ID, &role.Name, &orgID, &role.Level, &role.InheritsLower,
			&permsRaw, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		if orgID.Valid {
			o := tenant.OrgID(orgID.Int64)
			role.OrgID = &o
		}
		if err := json.Unmarshal([]byte(permsRaw), &role.Permissions); err != nil {
			return nil, fmt.Errorf("rbac: decoding permissions for role %d: %w", role.ID, err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
