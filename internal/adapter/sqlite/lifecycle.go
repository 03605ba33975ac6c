package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/fleetpulse/internal/domain"
)

// RecordTransition appends one lifecycle event and updates the tenant's
// stage in a single transaction. The event insert comes first so a crash
// between the two statements can never commit one without the other.
func (s *Store) RecordTransition(ctx context.Context, ev domain.LifecycleEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lifecycle_events (tenant_id, from_stage, to_stage, trigger_type, trigger_reason, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.TenantID, string(ev.FromStage), string(ev.ToStage),
		string(ev.TriggerType), ev.TriggerReason,
		ev.OccurredAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting lifecycle event: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE tenants SET lifecycle_stage = ?, lifecycle_stage_changed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(ev.ToStage),
		ev.OccurredAt.Format(timeFormat),
		time.Now().UTC().Format(timeFormat),
		ev.TenantID,
	)
	if err != nil {
		return fmt.Errorf("updating tenant stage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transition: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, tenantID string) ([]domain.LifecycleEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, from_stage, to_stage, trigger_type, trigger_reason, occurred_at
		 FROM lifecycle_events WHERE tenant_id = ? ORDER BY occurred_at, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing lifecycle events: %w", err)
	}
	defer rows.Close()

	var events []domain.LifecycleEvent
	for rows.Next() {
		var ev domain.LifecycleEvent
		var fromStage, toStage, triggerType, occurredAt string

		if err := rows.Scan(&ev.ID, &ev.TenantID, &fromStage, &toStage, &triggerType, &ev.TriggerReason, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning lifecycle event: %w", err)
		}

		ev.FromStage = domain.Stage(fromStage)
		ev.ToStage = domain.Stage(toStage)
		ev.TriggerType = domain.TriggerType(triggerType)
		ev.OccurredAt, _ = time.Parse(timeFormat, occurredAt)
		events = append(events, ev)
	}

	return events, rows.Err()
}
