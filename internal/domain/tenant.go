package domain

import "time"

// Stage represents a tenant's commercial lifecycle stage.
type Stage string

const (
	StageTrial       Stage = "trial"
	StageOnboarding  Stage = "onboarding"
	StageActive      Stage = "active"
	StageAtRisk      Stage = "at_risk"
	StageChurned     Stage = "churned"
	StageReactivated Stage = "reactivated"
)

// Stages lists every valid lifecycle stage.
var Stages = []Stage{
	StageTrial,
	StageOnboarding,
	StageActive,
	StageAtRisk,
	StageChurned,
	StageReactivated,
}

// Valid reports whether s is a recognized lifecycle stage.
func (s Stage) Valid() bool {
	for _, v := range Stages {
		if s == v {
			return true
		}
	}
	return false
}

// Edge is a permitted stage change. Only these pairs may ever be written
// to the event log, whether the trigger is automatic or manual.
type Edge struct {
	From Stage
	To   Stage
}

// Edges defines all permitted stage changes in the tenant lifecycle.
// This is domain knowledge consumed by the FSM adapter and the rule table.
var Edges = []Edge{
	{From: StageTrial, To: StageOnboarding},
	{From: StageTrial, To: StageActive},
	{From: StageActive, To: StageAtRisk},
	{From: StageAtRisk, To: StageChurned},
	{From: StageChurned, To: StageReactivated},
}

// Tenant is the core domain entity representing a customer organization.
// Its stage fields are mutated only through recorded lifecycle transitions.
type Tenant struct {
	ID             string
	Name           string
	Stage          Stage
	StageChangedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTenant creates a tenant in the initial "trial" stage.
func NewTenant(id, name string) Tenant {
	now := time.Now().UTC()
	return Tenant{
		ID:             id,
		Name:           name,
		Stage:          StageTrial,
		StageChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
