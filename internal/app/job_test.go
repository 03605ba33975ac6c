package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neomorfeo/fleetpulse/internal/app"
	"github.com/neomorfeo/fleetpulse/internal/domain"
)

// --- Mocks ---

// mockStore implements every port the job needs, the same way the real
// sqlite store backs them all.
type mockStore struct {
	tenants []domain.Tenant
	listErr error

	facts     map[string]domain.FactBundle
	factErr   map[string]error
	paidEver  map[string]int
	statuses  map[string]map[string]bool
	lastLogin map[string]time.Time

	scores    map[string]domain.HealthScoreRecord
	upsertErr map[string]error

	events    []domain.LifecycleEvent
	recordErr map[string]error

	admins    []domain.Admin
	adminsErr error

	notifs   []domain.Notification
	notifErr error
}

func newMockStore(tenants ...domain.Tenant) *mockStore {
	return &mockStore{
		tenants:   tenants,
		facts:     make(map[string]domain.FactBundle),
		factErr:   make(map[string]error),
		paidEver:  make(map[string]int),
		statuses:  make(map[string]map[string]bool),
		lastLogin: make(map[string]time.Time),
		scores:    make(map[string]domain.HealthScoreRecord),
		upsertErr: make(map[string]error),
		recordErr: make(map[string]error),
		admins: []domain.Admin{
			{ID: "admin-1", Email: "one@example.com"},
			{ID: "admin-2", Email: "two@example.com"},
		},
	}
}

func (m *mockStore) stores() app.Stores {
	return app.Stores{
		Tenants: m, Scores: m, Lifecycle: m, Notifications: m,
		Audit: m, Devices: m, Billing: m, Admins: m,
	}
}

func (m *mockStore) Create(_ context.Context, t domain.Tenant) error {
	m.tenants = append(m.tenants, t)
	return nil
}

func (m *mockStore) GetByID(_ context.Context, id string) (domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (m *mockStore) List(_ context.Context, _ domain.ListFilter) ([]domain.Tenant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.tenants, nil
}

func (m *mockStore) Upsert(_ context.Context, rec domain.HealthScoreRecord) error {
	if err := m.upsertErr[rec.TenantID]; err != nil {
		return err
	}
	m.scores[rec.TenantID] = rec
	return nil
}

func (m *mockStore) GetByTenant(_ context.Context, tenantID string) (domain.HealthScoreRecord, error) {
	rec, ok := m.scores[tenantID]
	if !ok {
		return domain.HealthScoreRecord{}, domain.ErrHealthScoreNotFound
	}
	return rec, nil
}

func (m *mockStore) RecordTransition(_ context.Context, ev domain.LifecycleEvent) error {
	if err := m.recordErr[ev.TenantID]; err != nil {
		return err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockStore) ListEvents(_ context.Context, tenantID string) ([]domain.LifecycleEvent, error) {
	var out []domain.LifecycleEvent
	for _, ev := range m.events {
		if ev.TenantID == tenantID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockStore) Insert(_ context.Context, n domain.Notification) error {
	if m.notifErr != nil {
		return m.notifErr
	}
	m.notifs = append(m.notifs, n)
	return nil
}

func (m *mockStore) LoginCount(_ context.Context, tenantID string, _ time.Time) (int, error) {
	if err := m.factErr[tenantID]; err != nil {
		return 0, err
	}
	return m.facts[tenantID].LoginCount30d, nil
}

func (m *mockStore) MemberCount(_ context.Context, tenantID string) (int, error) {
	return m.facts[tenantID].MemberCount, nil
}

func (m *mockStore) ReportCount(_ context.Context, tenantID string) (int, error) {
	return m.facts[tenantID].ReportCount, nil
}

func (m *mockStore) LastLoginAt(_ context.Context, tenantID string) (time.Time, error) {
	return m.lastLogin[tenantID], nil
}

func (m *mockStore) DeviceCounts(_ context.Context, tenantID string, _ time.Time) (int, int, error) {
	f := m.facts[tenantID]
	return f.TotalDevices, f.ActiveDevices24h, nil
}

func (m *mockStore) ActiveAlertRuleCount(_ context.Context, tenantID string) (int, error) {
	return m.facts[tenantID].ActiveAlertRules, nil
}

func (m *mockStore) CriticalAlertCount(_ context.Context, tenantID string, _ time.Time) (int, error) {
	return m.facts[tenantID].CriticalTicketCount90d, nil
}

func (m *mockStore) InvoiceCounts(_ context.Context, tenantID string, _ time.Time) (int, int, error) {
	f := m.facts[tenantID]
	return f.PaidInvoices90d, f.TotalInvoices90d, nil
}

func (m *mockStore) PaidInvoiceCount(_ context.Context, tenantID string) (int, error) {
	return m.paidEver[tenantID], nil
}

func (m *mockStore) FailedPaymentCount(_ context.Context, tenantID string, _ time.Time) (int, error) {
	return m.facts[tenantID].FailedPayments90d, nil
}

func (m *mockStore) SubscriptionStatuses(_ context.Context, tenantID string) (map[string]bool, error) {
	if s := m.statuses[tenantID]; s != nil {
		return s, nil
	}
	return map[string]bool{}, nil
}

func (m *mockStore) ActiveAdmins(_ context.Context) ([]domain.Admin, error) {
	if m.adminsErr != nil {
		return nil, m.adminsErr
	}
	return m.admins, nil
}

type mockPublisher struct {
	events []domain.LifecycleEvent
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, ev domain.LifecycleEvent, _ domain.Tenant) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

// --- Helpers ---

func daysAgo(n int) time.Time {
	return time.Now().UTC().Add(-time.Duration(n) * 24 * time.Hour)
}

func activeTenant(id, name string, stageAgeDays int) domain.Tenant {
	t := domain.NewTenant(id, name)
	t.Stage = domain.StageActive
	t.StageChangedAt = daysAgo(stageAgeDays)
	return t
}

// lowScoreFacts produces a composite well below 40: login 0, device 50
// (no devices), feature 0, support 0, payment 100 → composite 28.
var lowScoreFacts = domain.FactBundle{CriticalTicketCount90d: 11}

// healthyFacts produces a composite of 100.
var healthyFacts = domain.FactBundle{
	LoginCount30d:    100,
	MemberCount:      5,
	TotalDevices:     4,
	ActiveDevices24h: 4,
	ActiveAlertRules: 3,
	ReportCount:      2,
	PaidInvoices90d:  3,
	TotalInvoices90d: 3,
}

// --- Tests ---

func TestRun_HealthyActiveNoTransition(t *testing.T) {
	store := newMockStore(activeTenant("t-1", "Acme", 100))
	store.facts["t-1"] = healthyFacts

	job := app.NewJob(store.stores(), &mockPublisher{})
	sum, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Checked != 1 || sum.Computed != 1 {
		t.Errorf("checked/computed = %d/%d, want 1/1", sum.Checked, sum.Computed)
	}
	if sum.Transitioned != 0 {
		t.Errorf("transitioned = %d, want 0", sum.Transitioned)
	}
	if len(store.events) != 0 {
		t.Errorf("got %d events, want 0", len(store.events))
	}
	if rec := store.scores["t-1"]; rec.Score.Composite != 100 {
		t.Errorf("stored composite = %d, want 100", rec.Score.Composite)
	}
}

func TestRun_ActiveLowScoreBecomesAtRisk(t *testing.T) {
	store := newMockStore(activeTenant("t-1", "Globex", 20))
	store.facts["t-1"] = lowScoreFacts
	pub := &mockPublisher{}

	job := app.NewJob(store.stores(), pub)
	sum, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Transitioned != 1 {
		t.Fatalf("transitioned = %d, want 1", sum.Transitioned)
	}
	if len(store.events) != 1 {
		t.Fatalf("got %d events, want 1", len(store.events))
	}

	ev := store.events[0]
	if ev.FromStage != domain.StageActive || ev.ToStage != domain.StageAtRisk {
		t.Errorf("event = %s -> %s, want active -> at_risk", ev.FromStage, ev.ToStage)
	}
	if ev.TriggerType != domain.TriggerAutomatic {
		t.Errorf("trigger = %q, want automatic", ev.TriggerType)
	}
	if !strings.Contains(ev.TriggerReason, "14+") {
		t.Errorf("reason = %q, want tenure mention", ev.TriggerReason)
	}

	// One notification per active admin.
	if sum.Notified != 2 {
		t.Errorf("notified = %d, want 2", sum.Notified)
	}
	if len(store.notifs) != 2 {
		t.Fatalf("got %d notifications, want 2", len(store.notifs))
	}
	for _, n := range store.notifs {
		if n.TenantID != "t-1" {
			t.Errorf("notification tenant = %q, want t-1", n.TenantID)
		}
		if !strings.Contains(n.Message, "Globex") {
			t.Errorf("message = %q, want tenant name", n.Message)
		}
	}

	if len(pub.events) != 1 {
		t.Errorf("published %d events, want 1", len(pub.events))
	}

	if len(sum.Transitions) != 1 || sum.Transitions[0].To != domain.StageAtRisk {
		t.Errorf("transitions detail = %+v", sum.Transitions)
	}
}

func TestRun_ActiveLowScoreTooRecent(t *testing.T) {
	store := newMockStore(activeTenant("t-1", "Acme", 10))
	store.facts["t-1"] = lowScoreFacts

	job := app.NewJob(store.stores(), &mockPublisher{})
	sum, _ := job.Run(context.Background())

	if sum.Transitioned != 0 {
		t.Errorf("transitioned = %d, want 0 before 14 days of tenure", sum.Transitioned)
	}
}

func TestRun_TrialPaidBeatsDevices(t *testing.T) {
	tenant := domain.NewTenant("t-1", "Acme")
	store := newMockStore(tenant)
	store.facts["t-1"] = domain.FactBundle{TotalDevices: 3}
	store.paidEver["t-1"] = 1

	job := app.NewJob(store.stores(), &mockPublisher{})
	sum, _ := job.Run(context.Background())

	if sum.Transitioned != 1 {
		t.Fatalf("transitioned = %d, want 1", sum.Transitioned)
	}
	if to := store.events[0].ToStage; to != domain.StageActive {
		t.Errorf("to = %q, want active (payment beats devices)", to)
	}
	if sum.Notified != 0 {
		t.Errorf("notified = %d, want 0 for non-at-risk transition", sum.Notified)
	}
}

func TestRun_ChurnedReactivated(t *testing.T) {
	tenant := domain.NewTenant("t-1", "Acme")
	tenant.Stage = domain.StageChurned
	store := newMockStore(tenant)
	store.statuses["t-1"] = map[string]bool{domain.SubStatusTrialing: true}

	job := app.NewJob(store.stores(), &mockPublisher{})
	sum, _ := job.Run(context.Background())

	if sum.Transitioned != 1 {
		t.Fatalf("transitioned = %d, want 1", sum.Transitioned)
	}
	if to := store.events[0].ToStage; to != domain.StageReactivated {
		t.Errorf("to = %q, want reactivated", to)
	}
}

func TestRun_FactErrorIsolation(t *testing.T) {
	store := newMockStore(
		activeTenant("t-1", "A", 100),
		activeTenant("t-2", "B", 100),
		activeTenant("t-3", "C", 100),
	)
	store.facts["t-1"] = healthyFacts
	store.facts["t-3"] = healthyFacts
	store.factErr["t-2"] = errors.New("table offline")

	job := app.NewJob(store.stores(), &mockPublisher{})
	sum, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Checked != 3 || sum.Computed != 2 {
		t.Errorf("checked/computed = %d/%d, want 3/2", sum.Checked, sum.Computed)
	}
	if len(sum.Errors) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(sum.Errors), sum.Errors)
	}
	if !strings.Contains(sum.Errors[0], "t-2") {
		t.Errorf("error = %q, want tenant id", sum.Errors[0])
	}
	if _, ok := store.scores["t-1"]; !ok {
		t.Error("tenant t-1 should still be scored")
	}
	if _, ok := store.scores["t-3"]; !ok {
		t.Error("tenant t-3 should still be scored")
	}
}

func TestRun_ScoreUpsertFailureSkipsTransition(t *testing.T) {
	store := newMockStore(activeTenant("t-1", "Acme", 20))
	store.facts["t-1"] = lowScoreFacts
	store.upsertErr["t-1"] = errors.New("disk full")

	job := app.NewJob(store.stores(), &mockPublisher{})
	sum, _ := job.Run(context.Background())

	// No persisted score means no safe transition decision.
	if sum.Transitioned != 0 {
		t.Errorf("transitioned = %d, want 0", sum.Transitioned)
	}
	if len(store.events) != 0 {
		t.Errorf("got %d events, want 0", len(store.events))
	}
	if len(sum.Errors) != 1 {
		t.Errorf("got %d errors, want 1", len(sum.Errors))
	}
}

func TestRun_TransitionFailureSkipsNotifications(t *testing.T) {
	store := newMockStore(activeTenant("t-1", "Acme", 20))
	store.facts["t-1"] = lowScoreFacts
	store.recordErr["t-1"] = errors.New("write conflict")

	job := app.NewJob(store.stores(), &mockPublisher{})
	sum, _ := job.Run(context.Background())

	if sum.Transitioned != 0 {
		t.Errorf("transitioned = %d, want 0", sum.Transitioned)
	}
	if sum.Notified != 0 || len(store.notifs) != 0 {
		t.Errorf("notified = %d (%d rows), want 0", sum.Notified, len(store.notifs))
	}
	if len(sum.Errors) != 1 {
		t.Errorf("got %d errors, want 1", len(sum.Errors))
	}
}

func TestRun_NotifyFailureKeepsTransition(t *testing.T) {
	store := newMockStore(activeTenant("t-1", "Acme", 20))
	store.facts["t-1"] = lowScoreFacts
	store.notifErr = errors.New("inbox unavailable")

	job := app.NewJob(store.stores(), &mockPublisher{})
	sum, _ := job.Run(context.Background())

	// Fan-out failure never rolls back the committed transition.
	if sum.Transitioned != 1 {
		t.Errorf("transitioned = %d, want 1", sum.Transitioned)
	}
	if sum.Notified != 0 {
		t.Errorf("notified = %d, want 0", sum.Notified)
	}
	if len(sum.Errors) != 2 {
		t.Errorf("got %d errors, want one per admin (2): %v", len(sum.Errors), sum.Errors)
	}
}

func TestRun_AdminFetchFailureKeepsTransition(t *testing.T) {
	store := newMockStore(activeTenant("t-1", "Acme", 20))
	store.facts["t-1"] = lowScoreFacts
	store.adminsErr = errors.New("directory down")

	job := app.NewJob(store.stores(), &mockPublisher{})
	sum, _ := job.Run(context.Background())

	if sum.Transitioned != 1 {
		t.Errorf("transitioned = %d, want 1", sum.Transitioned)
	}
	if sum.Notified != 0 {
		t.Errorf("notified = %d, want 0", sum.Notified)
	}
	if len(sum.Errors) != 1 {
		t.Errorf("got %d errors, want 1", len(sum.Errors))
	}
}

func TestRun_PublishFailureIsNotAnError(t *testing.T) {
	store := newMockStore(activeTenant("t-1", "Acme", 20))
	store.facts["t-1"] = lowScoreFacts

	job := app.NewJob(store.stores(), &mockPublisher{err: errors.New("queue full")})
	sum, _ := job.Run(context.Background())

	if sum.Transitioned != 1 {
		t.Errorf("transitioned = %d, want 1", sum.Transitioned)
	}
	if len(sum.Errors) != 0 {
		t.Errorf("got %d errors, want 0 (publishing is best effort): %v", len(sum.Errors), sum.Errors)
	}
}

func TestRun_ListFailureAbortsRun(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("roster unavailable")

	job := app.NewJob(store.stores(), &mockPublisher{})
	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when the roster cannot be listed")
	}
}
