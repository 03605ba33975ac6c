package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/neomorfeo/fleetpulse/internal/domain"
)

// Upsert overwrites the tenant's score record, keyed by tenant. At most
// one row per tenant; no history is retained here.
func (s *Store) Upsert(ctx context.Context, rec domain.HealthScoreRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_scores (tenant_id, score, login_score, device_score, feature_score, support_score, payment_score, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id) DO UPDATE SET
		   score = excluded.score,
		   login_score = excluded.login_score,
		   device_score = excluded.device_score,
		   feature_score = excluded.feature_score,
		   support_score = excluded.support_score,
		   payment_score = excluded.payment_score,
		   computed_at = excluded.computed_at`,
		rec.TenantID,
		rec.Score.Composite, rec.Score.Login, rec.Score.Device,
		rec.Score.Feature, rec.Score.Support, rec.Score.Payment,
		rec.ComputedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("upserting health score: %w", err)
	}
	return nil
}

func (s *Store) GetByTenant(ctx context.Context, tenantID string) (domain.HealthScoreRecord, error) {
	var rec domain.HealthScoreRecord
	var computedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, score, login_score, device_score, feature_score, support_score, payment_score, computed_at
		 FROM health_scores WHERE tenant_id = ?`, tenantID,
	).Scan(
		&rec.TenantID,
		&rec.Score.Composite, &rec.Score.Login, &rec.Score.Device,
		&rec.Score.Feature, &rec.Score.Support, &rec.Score.Payment,
		&computedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.HealthScoreRecord{}, domain.ErrHealthScoreNotFound
		}
		return domain.HealthScoreRecord{}, fmt.Errorf("scanning health score: %w", err)
	}

	rec.ComputedAt, _ = time.Parse(timeFormat, computedAt)
	return rec, nil
}
