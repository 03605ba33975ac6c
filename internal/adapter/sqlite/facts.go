package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/neomorfeo/fleetpulse/internal/domain"
)

// Read-only fact queries over the collaborator tables. Each mirrors one
// count the dashboard's batch jobs need; missing rows are zero counts,
// never errors.

func (s *Store) Insert(ctx context.Context, n domain.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (tenant_id, recipient_id, message, created_at)
		 VALUES (?, ?, ?, ?)`,
		n.TenantID, n.RecipientID, n.Message, n.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

func (s *Store) LoginCount(ctx context.Context, tenantID string, since time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE tenant_id = ? AND action = 'login' AND created_at >= ?`,
		tenantID, since.Format(timeFormat),
	)
}

func (s *Store) MemberCount(ctx context.Context, tenantID string) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM members WHERE tenant_id = ?`, tenantID)
}

func (s *Store) ReportCount(ctx context.Context, tenantID string) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE tenant_id = ? AND resource_type = 'report'`,
		tenantID,
	)
}

func (s *Store) LastLoginAt(ctx context.Context, tenantID string) (time.Time, error) {
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM audit_log WHERE tenant_id = ? AND action = 'login'`,
		tenantID,
	).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("querying last login: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}

	t, err := time.Parse(timeFormat, last.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last login: %w", err)
	}
	return t, nil
}

func (s *Store) DeviceCounts(ctx context.Context, tenantID string, activeSince time.Time) (total, active int, err error) {
	total, err = s.count(ctx, `SELECT COUNT(*) FROM devices WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return 0, 0, err
	}

	active, err = s.count(ctx,
		`SELECT COUNT(*) FROM devices WHERE tenant_id = ? AND last_seen >= ?`,
		tenantID, activeSince.Format(timeFormat),
	)
	if err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

func (s *Store) ActiveAlertRuleCount(ctx context.Context, tenantID string) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM alert_rules WHERE tenant_id = ? AND is_active = 1`,
		tenantID,
	)
}

func (s *Store) CriticalAlertCount(ctx context.Context, tenantID string, since time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM alerts WHERE tenant_id = ? AND severity = 'critical' AND created_at >= ?`,
		tenantID, since.Format(timeFormat),
	)
}

func (s *Store) InvoiceCounts(ctx context.Context, tenantID string, since time.Time) (paid, total int, err error) {
	paid, err = s.count(ctx,
		`SELECT COUNT(*) FROM invoices WHERE tenant_id = ? AND status = 'paid' AND created_at >= ?`,
		tenantID, since.Format(timeFormat),
	)
	if err != nil {
		return 0, 0, err
	}

	total, err = s.count(ctx,
		`SELECT COUNT(*) FROM invoices WHERE tenant_id = ? AND created_at >= ?`,
		tenantID, since.Format(timeFormat),
	)
	if err != nil {
		return 0, 0, err
	}
	return paid, total, nil
}

func (s *Store) PaidInvoiceCount(ctx context.Context, tenantID string) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM invoices WHERE tenant_id = ? AND status = 'paid'`,
		tenantID,
	)
}

func (s *Store) FailedPaymentCount(ctx context.Context, tenantID string, since time.Time) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM payments WHERE tenant_id = ? AND status = 'failed' AND created_at >= ?`,
		tenantID, since.Format(timeFormat),
	)
}

func (s *Store) SubscriptionStatuses(ctx context.Context, tenantID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT status FROM subscriptions WHERE tenant_id = ?`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying subscription statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]bool)
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, fmt.Errorf("scanning subscription status: %w", err)
		}
		statuses[status] = true
	}

	return statuses, rows.Err()
}

func (s *Store) ActiveAdmins(ctx context.Context) ([]domain.Admin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email FROM admins WHERE is_active = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying active admins: %w", err)
	}
	defer rows.Close()

	var admins []domain.Admin
	for rows.Next() {
		var a domain.Admin
		if err := rows.Scan(&a.ID, &a.Email); err != nil {
			return nil, fmt.Errorf("scanning admin: %w", err)
		}
		admins = append(admins, a)
	}

	return admins, rows.Err()
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}
