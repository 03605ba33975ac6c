package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/fleetpulse/internal/app"
	"github.com/neomorfeo/fleetpulse/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// Runner executes one batch run. Satisfied by *app.Job and its decorators.
type Runner interface {
	Run(ctx context.Context) (app.RunSummary, error)
}

// TenantResponse is the API representation of a tenant.
type TenantResponse struct {
	ID             string `json:"id" doc:"Unique identifier"`
	Name           string `json:"name" doc:"Display name"`
	Stage          string `json:"lifecycle_stage" doc:"Current lifecycle stage"`
	StageChangedAt string `json:"lifecycle_stage_changed_at" doc:"When the stage last changed (ISO 8601)"`
	CreatedAt      string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt      string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toTenantResponse(t domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:             t.ID,
		Name:           t.Name,
		Stage:          string(t.Stage),
		StageChangedAt: t.StageChangedAt.Format(timeFormat),
		CreatedAt:      t.CreatedAt.Format(timeFormat),
		UpdatedAt:      t.UpdatedAt.Format(timeFormat),
	}
}

// HealthResponse is the API representation of a tenant's latest score.
type HealthResponse struct {
	TenantID   string `json:"tenant_id" doc:"Tenant identifier"`
	Score      int    `json:"score" doc:"Weighted composite score (0-100)"`
	Login      int    `json:"login_score" doc:"Login frequency sub-score"`
	Device     int    `json:"device_score" doc:"Device activity sub-score"`
	Feature    int    `json:"feature_score" doc:"Feature adoption sub-score"`
	Support    int    `json:"support_score" doc:"Support ticket sub-score"`
	Payment    int    `json:"payment_score" doc:"Payment health sub-score"`
	ComputedAt string `json:"computed_at" doc:"When the score was computed (ISO 8601)"`
}

// EventResponse is the API representation of one lifecycle event.
type EventResponse struct {
	ID            int64  `json:"id" doc:"Event sequence number"`
	TenantID      string `json:"tenant_id" doc:"Tenant identifier"`
	FromStage     string `json:"from_stage" doc:"Stage before the transition"`
	ToStage       string `json:"to_stage" doc:"Stage after the transition"`
	TriggerType   string `json:"trigger_type" doc:"automatic or manual"`
	TriggerReason string `json:"trigger_reason" doc:"Why the transition happened"`
	OccurredAt    string `json:"occurred_at" doc:"When the transition happened (ISO 8601)"`
}

// --- Run batch job ---

type RunJobInput struct {
	Authorization string `header:"Authorization" required:"false" doc:"Bearer service token"`
}

type RunJobOutput struct {
	Body app.RunSummary
}

// --- Get Tenant ---

type GetTenantInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body TenantResponse
}

// --- List Tenants ---

type ListTenantsInput struct {
	Stage  string `query:"stage" required:"false" doc:"Filter by lifecycle stage"`
	Limit  int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListTenantsOutput struct {
	Body []TenantResponse
}

// --- Tenant health ---

type GetHealthInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type GetHealthOutput struct {
	Body HealthResponse
}

// --- Tenant timeline ---

type ListEventsInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type ListEventsOutput struct {
	Body []EventResponse
}

// --- Manual stage transition ---

type TransitionInput struct {
	Authorization string `header:"Authorization" required:"false" doc:"Bearer service token"`
	ID            string `path:"id" doc:"Tenant ID"`
	Body          struct {
		Stage  string `json:"stage" doc:"Target lifecycle stage" enum:"trial,onboarding,active,at_risk,churned,reactivated"`
		Reason string `json:"reason,omitempty" maxLength:"500" doc:"Free-text reason recorded on the event"`
	}
}

type TransitionOutput struct {
	Body TenantResponse
}

// Register adds all API routes to the Huma API. Job and manual-transition
// endpoints require the service token; reads are open.
func Register(api huma.API, svc *app.TenantService, runner Runner, serviceToken string) {
	huma.Register(api, huma.Operation{
		OperationID: "run-lifecycle-check",
		Method:      http.MethodPost,
		Path:        "/api/v1/jobs/run",
		Summary:     "Run the health-score and lifecycle batch job",
		Tags:        []string{"Jobs"},
	}, func(ctx context.Context, input *RunJobInput) (*RunJobOutput, error) {
		if err := authorize(serviceToken, input.Authorization); err != nil {
			return nil, err
		}

		sum, err := runner.Run(ctx)
		if err != nil {
			// Only a roster-listing failure aborts a run; per-tenant
			// failures are inside the summary with a 200.
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return &RunJobOutput{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		tenant, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Stage != "" {
			s := domain.Stage(input.Stage)
			filter.Stage = &s
		}

		tenants, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]TenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = toTenantResponse(t)
		}
		return &ListTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant-health",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}/health",
		Summary:     "Get a tenant's latest health score",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetHealthInput) (*GetHealthOutput, error) {
		rec, err := svc.Health(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetHealthOutput{Body: HealthResponse{
			TenantID:   rec.TenantID,
			Score:      rec.Score.Composite,
			Login:      rec.Score.Login,
			Device:     rec.Score.Device,
			Feature:    rec.Score.Feature,
			Support:    rec.Score.Support,
			Payment:    rec.Score.Payment,
			ComputedAt: rec.ComputedAt.Format(timeFormat),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenant-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}/events",
		Summary:     "List a tenant's lifecycle timeline",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListEventsInput) (*ListEventsOutput, error) {
		events, err := svc.Events(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]EventResponse, len(events))
		for i, ev := range events {
			resp[i] = EventResponse{
				ID:            ev.ID,
				TenantID:      ev.TenantID,
				FromStage:     string(ev.FromStage),
				ToStage:       string(ev.ToStage),
				TriggerType:   string(ev.TriggerType),
				TriggerReason: ev.TriggerReason,
				OccurredAt:    ev.OccurredAt.Format(timeFormat),
			}
		}
		return &ListEventsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-tenant-stage",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/stage",
		Summary:     "Manually move a tenant to another stage",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		if err := authorize(serviceToken, input.Authorization); err != nil {
			return nil, err
		}

		tenant, err := svc.TransitionStage(ctx, input.ID, domain.Stage(input.Body.Stage), input.Body.Reason)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TransitionOutput{Body: toTenantResponse(tenant)}, nil
	})
}

// authorize checks the bearer service token. An empty configured token
// disables the guard (local development).
func authorize(serviceToken, header string) error {
	if serviceToken == "" {
		return nil
	}
	if header == "" {
		return huma.Error401Unauthorized("missing bearer token")
	}

	got := strings.TrimPrefix(header, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(got), []byte(serviceToken)) != 1 {
		return huma.Error403Forbidden("invalid service token")
	}
	return nil
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrTenantNotFound) {
		return huma.Error404NotFound("tenant not found")
	}
	if errors.Is(err, domain.ErrHealthScoreNotFound) {
		return huma.Error404NotFound("health score not computed yet")
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
