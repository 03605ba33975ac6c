package domain

import (
	"fmt"
	"time"
)

// TriggerType distinguishes rule-driven transitions from operator ones.
type TriggerType string

const (
	TriggerAutomatic TriggerType = "automatic"
	TriggerManual    TriggerType = "manual"
)

// LifecycleEvent is one row of the append-only stage-change log. Events
// are never updated or deleted; every stage change produces exactly one.
type LifecycleEvent struct {
	ID            int64
	TenantID      string
	FromStage     Stage
	ToStage       Stage
	TriggerType   TriggerType
	TriggerReason string
	OccurredAt    time.Time
}

// Notification is an in-app message for a platform administrator,
// consumed by an external inbox view. Insert-only, not deduplicated.
type Notification struct {
	ID          int64
	TenantID    string
	RecipientID string
	Message     string
	CreatedAt   time.Time
}

// Admin is a platform administrator eligible for at-risk notifications.
type Admin struct {
	ID    string
	Email string
}

// Subscription statuses consumed by the transition rules.
const (
	SubStatusActive   = "active"
	SubStatusTrialing = "trialing"
	SubStatusPastDue  = "past_due"
	SubStatusCanceled = "canceled"
)

// RuleInput is everything a transition rule may inspect for one tenant:
// the current stage and its age, the latest composite score, and billing
// and login facts fetched by the orchestrator.
type RuleInput struct {
	Now            time.Time
	Stage          Stage
	StageChangedAt time.Time
	Composite      int
	DeviceCount    int
	PaidInvoices   int             // all-time paid invoice count
	SubStatuses    map[string]bool // subscription statuses present for the tenant
	LastLoginAt    time.Time       // most recent login by any member; zero if never
}

// Tenure thresholds used by the rule predicates.
const (
	atRiskScoreThreshold = 40
	atRiskTenure         = 14 * 24 * time.Hour
	churnInactivity      = 60 * 24 * time.Hour
)

// Rule is one ordered transition rule: when Match holds for a tenant
// currently in From, the tenant moves to To with the given reason.
type Rule struct {
	From   Stage
	To     Stage
	Match  func(in RuleInput) bool
	Reason func(in RuleInput) string
}

// Rules is the transition table, evaluated top to bottom with first
// match winning. The paid-invoice rule is deliberately listed before the
// device-only onboarding rule: payment success always takes precedence.
var Rules = []Rule{
	{
		From: StageTrial,
		To:   StageActive,
		Match: func(in RuleInput) bool {
			return in.PaidInvoices > 0
		},
		Reason: func(RuleInput) string {
			return "First payment succeeded"
		},
	},
	{
		From: StageTrial,
		To:   StageOnboarding,
		Match: func(in RuleInput) bool {
			return in.DeviceCount > 0
		},
		Reason: func(RuleInput) string {
			return "First device added, entering onboarding"
		},
	},
	{
		From: StageActive,
		To:   StageAtRisk,
		Match: func(in RuleInput) bool {
			if in.SubStatuses[SubStatusPastDue] {
				return true
			}
			return in.Composite < atRiskScoreThreshold &&
				in.Now.Sub(in.StageChangedAt) >= atRiskTenure
		},
		Reason: func(in RuleInput) string {
			if in.SubStatuses[SubStatusPastDue] {
				return "Subscription payment past due"
			}
			return fmt.Sprintf("Health score %d (below %d) for 14+ days", in.Composite, atRiskScoreThreshold)
		},
	},
	{
		From: StageAtRisk,
		To:   StageChurned,
		Match: func(in RuleInput) bool {
			if in.SubStatuses[SubStatusCanceled] {
				return true
			}
			return in.LastLoginAt.IsZero() || in.Now.Sub(in.LastLoginAt) > churnInactivity
		},
		Reason: func(in RuleInput) string {
			if in.SubStatuses[SubStatusCanceled] {
				return "Subscription cancelled"
			}
			return "No user login for 60+ days"
		},
	},
	{
		From: StageChurned,
		To:   StageReactivated,
		Match: func(in RuleInput) bool {
			return in.SubStatuses[SubStatusActive] || in.SubStatuses[SubStatusTrialing]
		},
		Reason: func(RuleInput) string {
			return "New active subscription created"
		},
	},
}

// Evaluate runs the rule table for a tenant's current stage. Only rules
// whose From matches the current stage are considered, so a single run
// never makes multi-hop transitions. Returns false when no rule matches,
// the common case on most runs.
func Evaluate(in RuleInput) (to Stage, reason string, ok bool) {
	for _, r := range Rules {
		if r.From != in.Stage {
			continue
		}
		if r.Match(in) {
			return r.To, r.Reason(in), true
		}
	}
	return "", "", false
}
