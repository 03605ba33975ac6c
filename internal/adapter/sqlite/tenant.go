package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/neomorfeo/fleetpulse/internal/domain"
)

func (s *Store) Create(ctx context.Context, t domain.Tenant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, lifecycle_stage, lifecycle_stage_changed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, string(t.Stage),
		t.StageChangedAt.Format(timeFormat),
		t.CreatedAt.Format(timeFormat),
		t.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return scanTenant(s.db.QueryRowContext(ctx,
		`SELECT id, name, lifecycle_stage, lifecycle_stage_changed_at, created_at, updated_at
		 FROM tenants WHERE id = ?`, id,
	))
}

func (s *Store) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	query := `SELECT id, name, lifecycle_stage, lifecycle_stage_changed_at, created_at, updated_at FROM tenants`
	var args []any

	if filter.Stage != nil {
		query += ` WHERE lifecycle_stage = ?`
		args = append(args, string(*filter.Stage))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenantFromRows(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}

// scanTenant scans a single row from QueryRow into a domain.Tenant.
func scanTenant(row *sql.Row) (domain.Tenant, error) {
	var t domain.Tenant
	var stage, stageChangedAt, createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.Name, &stage, &stageChangedAt, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}

	t.Stage = domain.Stage(stage)
	t.StageChangedAt, _ = time.Parse(timeFormat, stageChangedAt)
	t.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	t.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return t, nil
}

// scanTenantFromRows scans a single row from Rows (used in List).
func scanTenantFromRows(rows *sql.Rows) (domain.Tenant, error) {
	var t domain.Tenant
	var stage, stageChangedAt, createdAt, updatedAt string

	err := rows.Scan(&t.ID, &t.Name, &stage, &stageChangedAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("scanning tenant row: %w", err)
	}

	t.Stage = domain.Stage(stage)
	t.StageChangedAt, _ = time.Parse(timeFormat, stageChangedAt)
	t.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	t.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return t, nil
}
