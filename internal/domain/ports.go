package domain

import (
	"context"
	"time"
)

// TenantRepository defines the persistence contract for the tenant roster.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context, filter ListFilter) ([]Tenant, error)
}

// ListFilter holds optional criteria for listing tenants.
type ListFilter struct {
	Stage  *Stage
	Limit  int
	Offset int
}

// HealthScoreRepository persists the latest score per tenant.
// Upsert semantics: at most one record per tenant.
type HealthScoreRepository interface {
	Upsert(ctx context.Context, rec HealthScoreRecord) error
	GetByTenant(ctx context.Context, tenantID string) (HealthScoreRecord, error)
}

// LifecycleRepository persists stage transitions. RecordTransition must
// insert the event and update the tenant's stage as one unit, so a crash
// never leaves an event without a stage change or vice versa.
type LifecycleRepository interface {
	RecordTransition(ctx context.Context, ev LifecycleEvent) error
	ListEvents(ctx context.Context, tenantID string) ([]LifecycleEvent, error)
}

// NotificationRepository inserts admin notifications. Insert-only.
type NotificationRepository interface {
	Insert(ctx context.Context, n Notification) error
}

// AuditStore reads login and report activity. Owned by an external
// collaborator; read-only from this core.
type AuditStore interface {
	LoginCount(ctx context.Context, tenantID string, since time.Time) (int, error)
	MemberCount(ctx context.Context, tenantID string) (int, error)
	ReportCount(ctx context.Context, tenantID string) (int, error)
	// LastLoginAt returns the most recent login by any member of the
	// tenant, or the zero time when no login was ever recorded.
	LastLoginAt(ctx context.Context, tenantID string) (time.Time, error)
}

// DeviceStore reads the device roster and alert configuration.
type DeviceStore interface {
	DeviceCounts(ctx context.Context, tenantID string, activeSince time.Time) (total, active int, err error)
	ActiveAlertRuleCount(ctx context.Context, tenantID string) (int, error)
	CriticalAlertCount(ctx context.Context, tenantID string, since time.Time) (int, error)
}

// BillingStore reads invoice, payment and subscription facts.
type BillingStore interface {
	InvoiceCounts(ctx context.Context, tenantID string, since time.Time) (paid, total int, err error)
	PaidInvoiceCount(ctx context.Context, tenantID string) (int, error)
	FailedPaymentCount(ctx context.Context, tenantID string, since time.Time) (int, error)
	SubscriptionStatuses(ctx context.Context, tenantID string) (map[string]bool, error)
}

// AdminStore reads the platform-wide administrator roster.
type AdminStore interface {
	ActiveAdmins(ctx context.Context) ([]Admin, error)
}

// EventPublisher emits recorded transitions for async consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev LifecycleEvent, tenant Tenant) error
}

// TransitionValidator checks that a stage change follows a permitted edge.
type TransitionValidator interface {
	Validate(ctx context.Context, from, to Stage) error
}
