package domain

import (
	"math"
	"time"
)

// FactBundle holds the raw per-tenant counts gathered before scoring.
// Missing facts must be zeroed by the caller; scoring is total over
// the whole domain and never errors.
type FactBundle struct {
	LoginCount30d          int
	MemberCount            int
	TotalDevices           int
	ActiveDevices24h       int
	ActiveAlertRules       int
	ReportCount            int
	CriticalTicketCount90d int
	PaidInvoices90d        int
	TotalInvoices90d       int
	FailedPayments90d      int
}

// HealthScore holds the five weighted sub-scores and their composite,
// all integers in [0, 100].
type HealthScore struct {
	Login     int
	Device    int
	Feature   int
	Support   int
	Payment   int
	Composite int
}

// HealthScoreRecord is the persisted form of a tenant's latest score.
// One row per tenant, overwritten each run; no history is kept here.
type HealthScoreRecord struct {
	TenantID   string
	Score      HealthScore
	ComputedAt time.Time
}

// ComputeHealthScore converts raw counts into sub-scores and the
// weighted composite. Pure function, no I/O.
func ComputeHealthScore(f FactBundle) HealthScore {
	s := HealthScore{
		Login:   loginScore(f.LoginCount30d, f.MemberCount),
		Device:  deviceActivityScore(f.ActiveDevices24h, f.TotalDevices),
		Feature: featureAdoptionScore(f.ActiveAlertRules, f.ReportCount),
		Support: supportScore(f.CriticalTicketCount90d),
		Payment: paymentHealthScore(f.PaidInvoices90d, f.TotalInvoices90d, f.FailedPayments90d),
	}
	s.Composite = compositeScore(s)
	return s
}

// loginScore rates login frequency over 30 days relative to member count.
// Expects roughly one login every 3 days per member (10 per 30d).
func loginScore(loginCount, memberCount int) int {
	if memberCount == 0 {
		return 0
	}
	ratio := float64(loginCount) / float64(memberCount*10)
	return min(100, int(math.Round(ratio*100)))
}

// deviceActivityScore is the percentage of devices seen in the last 24h.
// A tenant with no devices is still onboarding, not unhealthy: neutral 50.
func deviceActivityScore(activeDevices, totalDevices int) int {
	if totalDevices == 0 {
		return 50
	}
	return int(math.Round(float64(activeDevices) / float64(totalDevices) * 100))
}

// featureAdoptionScore rewards configured alert rules and generated reports.
// Alert rules: 0 = +0, 1-2 = +40, 3+ = +60. Any report = +40.
func featureAdoptionScore(alertRuleCount, reportCount int) int {
	score := 0
	switch {
	case alertRuleCount >= 3:
		score += 60
	case alertRuleCount >= 1:
		score += 40
	}
	if reportCount > 0 {
		score += 40
	}
	return min(100, score)
}

// supportScore is the inverse of critical ticket volume. Coarse bands
// rather than interpolation, to avoid false precision:
// 0 = 100, 1-2 = 80, 3-5 = 60, 6-10 = 30, 10+ = 0.
func supportScore(ticketCount int) int {
	switch {
	case ticketCount == 0:
		return 100
	case ticketCount <= 2:
		return 80
	case ticketCount <= 5:
		return 60
	case ticketCount <= 10:
		return 30
	default:
		return 0
	}
}

// paymentHealthScore is the paid-invoice ratio over 90 days minus a
// failed-payment penalty. No billing history yet is not a red flag.
func paymentHealthScore(paidInvoices, totalInvoices, failedPayments int) int {
	if totalInvoices == 0 {
		return 100
	}
	penalty := min(50, failedPayments*20)
	paidRatio := float64(paidInvoices) / float64(totalInvoices)
	return max(0, int(math.Round(paidRatio*100))-penalty)
}

// compositeScore weights the sub-scores: login 25%, device 25%,
// feature 20%, support 15%, payment 15%.
func compositeScore(s HealthScore) int {
	return int(math.Round(
		float64(s.Login)*0.25 +
			float64(s.Device)*0.25 +
			float64(s.Feature)*0.20 +
			float64(s.Support)*0.15 +
			float64(s.Payment)*0.15,
	))
}
