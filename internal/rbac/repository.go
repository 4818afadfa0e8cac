package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tutorhub/tutorhub/internal/platform/db"
	"github.com/tutorhub/tutorhub/internal/shared"
)

const uniqueViolation = "23505"

// ErrDuplicateEntry indicates a permission tuple or role name collision.
var ErrDuplicateEntry = errors.New("rbac: duplicate entry")

// Repository provides PostgreSQL backed persistence for roles and
// permission entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, COALESCE(code, ''), is_active, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Code, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// GetRoleByCode fetches the active role bound to a base-role code.
func (r *Repository) GetRoleByCode(ctx context.Context, code RoleCode) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE code = $1`, string(code))
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("rbac: get role by code: %w", err)
	}
	return role, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	return role, nil
}

// ListRoles returns roles ordered by name with total count for paging.
func (r *Repository) ListRoles(ctx context.Context, page, pageSize int) ([]Role, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("rbac: count roles: %w", err)
	}
	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, description, code string, active bool) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description, code, is_active, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, NOW(), NOW())
		 RETURNING `+roleColumns,
		name, description, code, active)
	role, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateEntry
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// UpdateRole updates an existing role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description, code string, active bool) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, code = NULLIF($4, ''), is_active = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+roleColumns,
		id, name, description, code, active)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateEntry
		}
		return Role{}, fmt.Errorf("rbac: update role: %w", err)
	}
	return role, nil
}

// DeleteRole removes a role and, via FK cascade, its permission entries.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// HasPermission reports whether an exact-match entry exists for the role.
// Method is compared exactly for API entries and ignored for PAGE entries.
func (r *Repository) HasPermission(ctx context.Context, roleID int64, kind Kind, resourcePath, method string) (bool, error) {
	var query string
	args := []any{roleID, string(kind), resourcePath}
	if kind == KindAPI {
		query = `SELECT EXISTS (
			SELECT 1 FROM permission_entries
			WHERE role_id = $1 AND kind = $2 AND resource_path = $3 AND method = $4)`
		args = append(args, strings.ToUpper(method))
	} else {
		query = `SELECT EXISTS (
			SELECT 1 FROM permission_entries
			WHERE role_id = $1 AND kind = $2 AND resource_path = $3)`
	}
	var allowed bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&allowed); err != nil {
		return false, fmt.Errorf("rbac: has permission: %w", err)
	}
	return allowed, nil
}

// ListPermissions returns all entries for a role ordered by path.
func (r *Repository) ListPermissions(ctx context.Context, roleID int64) ([]PermissionEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role_id, kind, resource_path, COALESCE(method, ''), created_at
		 FROM permission_entries WHERE role_id = $1 ORDER BY resource_path, method`, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	var entries []PermissionEntry
	for rows.Next() {
		var e PermissionEntry
		if err := rows.Scan(&e.ID, &e.RoleID, &e.Kind, &e.ResourcePath, &e.Method, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplacePermissions swaps the full entry set for a role in one
// transaction, so concurrent permission checks never observe the
// intermediate zero-entry state.
func (r *Repository) ReplacePermissions(ctx context.Context, roleID int64, entries []PermissionEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM permission_entries WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("rbac: clear permissions: %w", err)
		}
		for _, e := range entries {
			var method any
			if e.Kind == KindAPI {
				method = strings.ToUpper(e.Method)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO permission_entries (role_id, kind, resource_path, method, created_at)
				 VALUES ($1, $2, $3, $4, NOW())`,
				roleID, string(e.Kind), e.ResourcePath, method); err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateEntry
				}
				return fmt.Errorf("rbac: insert permission: %w", err)
			}
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
