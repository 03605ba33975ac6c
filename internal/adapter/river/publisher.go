package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/fleetpulse/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// TransitionJobArgs carries one recorded stage change for async
// processing. River serializes this as JSON into its job queue table.
// It includes a snapshot of the tenant at transition time, so the worker
// never needs to query the database.
type TransitionJobArgs struct {
	TenantID      string `json:"tenant_id"`
	TenantName    string `json:"tenant_name"`
	FromStage     string `json:"from_stage"`
	ToStage       string `json:"to_stage"`
	TriggerType   string `json:"trigger_type"`
	TriggerReason string `json:"trigger_reason"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TransitionJobArgs) Kind() string { return "lifecycle.transition" }

// RunJobArgs triggers one batch run. Enqueued by the periodic scheduler.
type RunJobArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (RunJobArgs) Kind() string { return "lifecycle.run" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a recorded transition as an async job in River.
func (p *Publisher) Publish(ctx context.Context, ev domain.LifecycleEvent, tenant domain.Tenant) error {
	_, err := p.client.Insert(ctx, TransitionJobArgs{
		TenantID:      ev.TenantID,
		TenantName:    tenant.Name,
		FromStage:     string(ev.FromStage),
		ToStage:       string(ev.ToStage),
		TriggerType:   string(ev.TriggerType),
		TriggerReason: ev.TriggerReason,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}
