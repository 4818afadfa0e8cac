package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/tutorhub/tutorhub/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `a.id, a.username, a.email, a.first_name, a.last_name, a.password_hash,
	a.base_role, a.dynamic_role_id, COALESCE(r.name, ''), a.must_change_password, a.is_active,
	a.created_at, a.updated_at`

const accountFrom = ` FROM accounts a LEFT JOIN roles r ON r.id = a.dynamic_role_id `

func scanAccount(row pgx.Row) (*Account, error) {
	var acc Account
	err := row.Scan(&acc.ID, &acc.Username, &acc.Email, &acc.FirstName, &acc.LastName,
		&acc.PasswordHash, &acc.BaseRole, &acc.DynamicRoleID, &acc.DynamicRoleName,
		&acc.MustChangePassword, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// FindByIdentifier fetches an account by username or email.
func (r *Repository) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+accountFrom+`WHERE a.username = $1 OR a.email = $1`, identifier)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("accounts: find by identifier: %w", err)
	}
	return acc, nil
}

// GetByID fetches an account by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+accountFrom+`WHERE a.id = $1`, id)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("accounts: get by id: %w", err)
	}
	return acc, nil
}

// UpdatePassword stores a new password hash and clears the
// must-change-password flag.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, must_change_password = FALSE, updated_at = NOW() WHERE id = $1`,
		id, hash)
	if err != nil {
		return fmt.Errorf("accounts: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssignDynamicRole links (or with nil unlinks) an account to a dynamic role.
func (r *Repository) AssignDynamicRole(ctx context.Context, id int64, roleID *int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET dynamic_role_id = $2, updated_at = NOW() WHERE id = $1`, id, roleID)
	if err != nil {
		return fmt.Errorf("accounts: assign dynamic role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns a page of accounts ordered by ID with the total count.
func (r *Repository) List(ctx context.Context, page, pageSize int) ([]Account, int, error) {
	var total int
	var accs []Account
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
			return fmt.Errorf("accounts: count: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		offset := (page - 1) * pageSize
		rows, err := r.pool.Query(ctx,
			`SELECT `+accountColumns+accountFrom+`ORDER BY a.id LIMIT $1 OFFSET $2`, pageSize, offset)
		if err != nil {
			return fmt.Errorf("accounts: list: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			acc, err := scanAccount(rows)
			if err != nil {
				return err
			}
			accs = append(accs, *acc)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return accs, total, nil
}
