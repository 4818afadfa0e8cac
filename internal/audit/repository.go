package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for audit records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one record. Payload is stored as JSONB.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_records
		 (actor_id, role_id, impersonated_by, action_kind, resource_type, resource_id,
		  resource_name, description, client_ip, user_agent, payload, response_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''), $10, $11, $12, NOW())`,
		rec.ActorID, rec.RoleID, rec.ImpersonatedBy, string(rec.ActionKind), rec.ResourceType,
		rec.ResourceID, rec.ResourceName, rec.Description, rec.ClientIP, rec.UserAgent,
		payload, rec.ResponseStatus)
	if err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}
	return nil
}

// List returns one page of records most-recent-first. It fetches one row
// beyond the page size to learn whether a next page exists.
func (r *Repository) List(ctx context.Context, filters ListFilters) (Result, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	query := `SELECT ar.id, ar.actor_id, COALESCE(a.username, ''), ar.role_id, COALESCE(ro.name, ''),
		ar.impersonated_by, ar.action_kind, ar.resource_type, COALESCE(ar.resource_id, ''),
		COALESCE(ar.resource_name, ''), ar.description, COALESCE(ar.client_ip, ''), ar.user_agent,
		ar.payload, ar.response_status, ar.created_at
		FROM audit_records ar
		LEFT JOIN accounts a ON a.id = ar.actor_id
		LEFT JOIN roles ro ON ro.id = ar.role_id
		WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filters.ActorID > 0 {
		query += ` AND ar.actor_id = ` + arg(filters.ActorID)
	}
	if filters.RoleID > 0 {
		query += ` AND ar.role_id = ` + arg(filters.RoleID)
	}
	if filters.ActionKind != "" {
		query += ` AND ar.action_kind = ` + arg(string(filters.ActionKind))
	}
	if filters.ResourceType != "" {
		query += ` AND ar.resource_type = ` + arg(filters.ResourceType)
	}
	query += ` ORDER BY ar.created_at DESC, ar.id DESC LIMIT ` + arg(pageSize+1) + ` OFFSET ` + arg((page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("audit: list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.ActorName, &rec.RoleID, &rec.RoleName,
			&rec.ImpersonatedBy, &rec.ActionKind, &rec.ResourceType, &rec.ResourceID,
			&rec.ResourceName, &rec.Description, &rec.ClientIP, &rec.UserAgent,
			&payload, &rec.ResponseStatus, &rec.CreatedAt); err != nil {
			return Result{}, err
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &rec.Payload)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	hasNext := len(records) > pageSize
	if hasNext {
		records = records[:pageSize]
	}
	return Result{Records: records, Page: page, PageSize: pageSize, HasNext: hasNext}, nil
}

// DeleteOlderThan prunes records created before the cutoff. Used by the
// retention job only.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: prune records: %w", err)
	}
	return tag.RowsAffected(), nil
}
