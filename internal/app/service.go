package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/fleetpulse/internal/domain"
)

// TenantService serves dashboard reads and operator-initiated stage
// changes. Automatic transitions go through Job instead.
type TenantService struct {
	tenants   domain.TenantRepository
	scores    domain.HealthScoreRepository
	lifecycle domain.LifecycleRepository
	validator domain.TransitionValidator
	publisher domain.EventPublisher
}

// NewTenantService creates a service with the given adapters.
func NewTenantService(
	tenants domain.TenantRepository,
	scores domain.HealthScoreRepository,
	lifecycle domain.LifecycleRepository,
	validator domain.TransitionValidator,
	publisher domain.EventPublisher,
) *TenantService {
	return &TenantService{
		tenants:   tenants,
		scores:    scores,
		lifecycle: lifecycle,
		validator: validator,
		publisher: publisher,
	}
}

// GetByID returns a tenant by its unique identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

// List returns tenants matching the given filter.
func (s *TenantService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	return s.tenants.List(ctx, filter)
}

// Health returns the tenant's latest health score record.
func (s *TenantService) Health(ctx context.Context, id string) (domain.HealthScoreRecord, error) {
	if _, err := s.tenants.GetByID(ctx, id); err != nil {
		return domain.HealthScoreRecord{}, err
	}
	return s.scores.GetByTenant(ctx, id)
}

// Events returns the tenant's append-only lifecycle timeline.
func (s *TenantService) Events(ctx context.Context, id string) ([]domain.LifecycleEvent, error) {
	if _, err := s.tenants.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.lifecycle.ListEvents(ctx, id)
}

// TransitionStage applies an operator-initiated stage change. The move
// must follow one of the permitted edges; manual moves get no shortcut.
func (s *TenantService) TransitionStage(ctx context.Context, id string, to domain.Stage, reason string) (domain.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	if err := s.validator.Validate(ctx, tenant.Stage, to); err != nil {
		return domain.Tenant{}, err
	}

	if reason == "" {
		reason = fmt.Sprintf("Manually moved from %s to %s", tenant.Stage, to)
	}

	ev := domain.LifecycleEvent{
		TenantID:      tenant.ID,
		FromStage:     tenant.Stage,
		ToStage:       to,
		TriggerType:   domain.TriggerManual,
		TriggerReason: reason,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.lifecycle.RecordTransition(ctx, ev); err != nil {
		return domain.Tenant{}, fmt.Errorf("recording transition: %w", err)
	}

	tenant.Stage = to
	tenant.StageChangedAt = ev.OccurredAt

	if err := s.publisher.Publish(ctx, ev, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("publishing transition: %w", err)
	}

	return tenant, nil
}
