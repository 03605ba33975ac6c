package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/fleetpulse/internal/domain"
)

// RunSummary reports the outcome of one batch run. The run is never
// fatal as a whole; callers inspect Errors for partial failures.
type RunSummary struct {
	Checked      int                `json:"checked"`
	Computed     int                `json:"computed"`
	Transitioned int                `json:"transitioned"`
	Notified     int                `json:"notified"`
	Errors       []string           `json:"errors"`
	Transitions  []TransitionDetail `json:"transitions"`
}

// TransitionDetail describes one stage change made during a run.
type TransitionDetail struct {
	TenantID   string       `json:"tenant_id"`
	TenantName string       `json:"tenant_name"`
	From       domain.Stage `json:"from"`
	To         domain.Stage `json:"to"`
}

// Stores bundles the collaborator ports the batch job reads and writes.
type Stores struct {
	Tenants       domain.TenantRepository
	Scores        domain.HealthScoreRepository
	Lifecycle     domain.LifecycleRepository
	Notifications domain.NotificationRepository
	Audit         domain.AuditStore
	Devices       domain.DeviceStore
	Billing       domain.BillingStore
	Admins        domain.AdminStore
}

// Job is the batch orchestrator: it walks the tenant roster, scores each
// tenant, evaluates the transition rules, and fans out at-risk
// notifications. The only component with I/O and side effects.
type Job struct {
	stores    Stores
	publisher domain.EventPublisher
}

// NewJob creates the batch job with the given adapters.
func NewJob(stores Stores, publisher domain.EventPublisher) *Job {
	return &Job{stores: stores, publisher: publisher}
}

// Run executes one batch over all tenants. A failure for one tenant is
// recorded in the summary and processing continues; the returned error
// is non-nil only when the roster itself cannot be listed.
func (j *Job) Run(ctx context.Context) (RunSummary, error) {
	now := time.Now().UTC()

	tenants, err := j.stores.Tenants.List(ctx, domain.ListFilter{})
	if err != nil {
		return RunSummary{}, fmt.Errorf("listing tenants: %w", err)
	}

	sum := RunSummary{
		Checked:     len(tenants),
		Errors:      []string{},
		Transitions: []TransitionDetail{},
	}
	for _, tenant := range tenants {
		j.checkTenant(ctx, tenant, now, &sum)
	}

	slog.InfoContext(ctx, "batch run complete",
		"checked", sum.Checked,
		"computed", sum.Computed,
		"transitioned", sum.Transitioned,
		"notified", sum.Notified,
		"errors", len(sum.Errors),
	)
	return sum, nil
}

// checkTenant is the per-tenant error boundary: gather facts, score,
// persist, evaluate, transition, notify. Ordering is strict; each step
// depends on the previous one having succeeded.
func (j *Job) checkTenant(ctx context.Context, tenant domain.Tenant, now time.Time, sum *RunSummary) {
	facts, err := j.gatherFacts(ctx, tenant.ID, now)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("tenant %s: %v", tenant.ID, err))
		return
	}

	score := domain.ComputeHealthScore(facts.bundle)
	rec := domain.HealthScoreRecord{TenantID: tenant.ID, Score: score, ComputedAt: now}
	if err := j.stores.Scores.Upsert(ctx, rec); err != nil {
		// No persisted score means no safe transition decision.
		sum.Errors = append(sum.Errors, fmt.Sprintf("tenant %s: storing health score: %v", tenant.ID, err))
		return
	}
	sum.Computed++

	to, reason, ok := domain.Evaluate(domain.RuleInput{
		Now:            now,
		Stage:          tenant.Stage,
		StageChangedAt: tenant.StageChangedAt,
		Composite:      score.Composite,
		DeviceCount:    facts.bundle.TotalDevices,
		PaidInvoices:   facts.paidInvoicesEver,
		SubStatuses:    facts.subStatuses,
		LastLoginAt:    facts.lastLoginAt,
	})
	if !ok {
		return
	}

	ev := domain.LifecycleEvent{
		TenantID:      tenant.ID,
		FromStage:     tenant.Stage,
		ToStage:       to,
		TriggerType:   domain.TriggerAutomatic,
		TriggerReason: reason,
		OccurredAt:    now,
	}
	if err := j.stores.Lifecycle.RecordTransition(ctx, ev); err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("tenant %s: recording transition: %v", tenant.ID, err))
		return
	}
	sum.Transitioned++
	sum.Transitions = append(sum.Transitions, TransitionDetail{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		From:       tenant.Stage,
		To:         to,
	})

	if err := j.publisher.Publish(ctx, ev, tenant); err != nil {
		// Async consumers are best effort; the transition is committed.
		slog.WarnContext(ctx, "publishing transition", "tenant_id", tenant.ID, "error", err)
	}

	if to == domain.StageAtRisk {
		sum.Notified += j.notifyAtRisk(ctx, tenant, now, sum)
	}
}

// notifyAtRisk inserts one notification per active platform admin.
// Failures here never roll back the already-committed transition.
func (j *Job) notifyAtRisk(ctx context.Context, tenant domain.Tenant, now time.Time, sum *RunSummary) int {
	admins, err := j.stores.Admins.ActiveAdmins(ctx)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("tenant %s: fetching admins: %v", tenant.ID, err))
		return 0
	}

	notified := 0
	msg := fmt.Sprintf("%s has entered at-risk stage", tenant.Name)
	for _, admin := range admins {
		n := domain.Notification{
			TenantID:    tenant.ID,
			RecipientID: admin.ID,
			Message:     msg,
			CreatedAt:   now,
		}
		if err := j.stores.Notifications.Insert(ctx, n); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("tenant %s: notifying admin %s: %v", tenant.ID, admin.ID, err))
			continue
		}
		notified++
	}
	return notified
}

// tenantFacts is the full fact bundle for one tenant: scoring counts
// plus the billing and login facts the transition rules inspect.
type tenantFacts struct {
	bundle           domain.FactBundle
	paidInvoicesEver int
	subStatuses      map[string]bool
	lastLoginAt      time.Time
}

func (j *Job) gatherFacts(ctx context.Context, tenantID string, now time.Time) (tenantFacts, error) {
	var (
		dayAgo        = now.Add(-24 * time.Hour)
		thirtyDaysAgo = now.Add(-30 * 24 * time.Hour)
		ninetyDaysAgo = now.Add(-90 * 24 * time.Hour)
		facts         tenantFacts
		err           error
	)

	if facts.bundle.LoginCount30d, err = j.stores.Audit.LoginCount(ctx, tenantID, thirtyDaysAgo); err != nil {
		return facts, fmt.Errorf("fetching login count: %w", err)
	}
	if facts.bundle.MemberCount, err = j.stores.Audit.MemberCount(ctx, tenantID); err != nil {
		return facts, fmt.Errorf("fetching member count: %w", err)
	}
	if facts.bundle.ReportCount, err = j.stores.Audit.ReportCount(ctx, tenantID); err != nil {
		return facts, fmt.Errorf("fetching report count: %w", err)
	}
	if facts.lastLoginAt, err = j.stores.Audit.LastLoginAt(ctx, tenantID); err != nil {
		return facts, fmt.Errorf("fetching last login: %w", err)
	}

	total, active, err := j.stores.Devices.DeviceCounts(ctx, tenantID, dayAgo)
	if err != nil {
		return facts, fmt.Errorf("fetching device counts: %w", err)
	}
	facts.bundle.TotalDevices, facts.bundle.ActiveDevices24h = total, active

	if facts.bundle.ActiveAlertRules, err = j.stores.Devices.ActiveAlertRuleCount(ctx, tenantID); err != nil {
		return facts, fmt.Errorf("fetching alert rule count: %w", err)
	}
	if facts.bundle.CriticalTicketCount90d, err = j.stores.Devices.CriticalAlertCount(ctx, tenantID, ninetyDaysAgo); err != nil {
		return facts, fmt.Errorf("fetching critical alert count: %w", err)
	}

	paid, totalInvoices, err := j.stores.Billing.InvoiceCounts(ctx, tenantID, ninetyDaysAgo)
	if err != nil {
		return facts, fmt.Errorf("fetching invoice counts: %w", err)
	}
	facts.bundle.PaidInvoices90d, facts.bundle.TotalInvoices90d = paid, totalInvoices

	if facts.bundle.FailedPayments90d, err = j.stores.Billing.FailedPaymentCount(ctx, tenantID, ninetyDaysAgo); err != nil {
		return facts, fmt.Errorf("fetching failed payment count: %w", err)
	}
	if facts.paidInvoicesEver, err = j.stores.Billing.PaidInvoiceCount(ctx, tenantID); err != nil {
		return facts, fmt.Errorf("fetching paid invoice count: %w", err)
	}
	if facts.subStatuses, err = j.stores.Billing.SubscriptionStatuses(ctx, tenantID); err != nil {
		return facts, fmt.Errorf("fetching subscription statuses: %w", err)
	}

	return facts, nil
}
