package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"opsgate/internal/domain/approval"
	"opsgate/internal/ports"
)

func setupRuleRepository(t *testing.T) *RuleRepository {
	t.Helper()
	return NewRuleRepository(setupDB(t))
}

func sampleRule(ruleID string, code string, createdAt time.Time) ports.RuleRecord {
	return ports.RuleRecord{
		RuleID:         ruleID,
		RuleCode:       code,
		RuleName:       "rule " + code,
		Active:         true,
		RequestTypes:   []approval.RequestType{approval.RequestShiftChange, approval.RequestSiteTransfer},
		PriorityLevels: []approval.Priority{approval.PriorityNormal},
		SameSiteOnly:   true,
		CreatedAt:      createdAt,
	}
}

func TestCreateRuleRoundTrip(t *testing.T) {
	repo := setupRuleRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	variance := 20
	record := sampleRule("rule-1", "same-site", at)
	record.MaxTimeVarianceMinutes = &variance
	record.ConditionsJSON = `{"max_late_minutes": 15}`

	if _, err := repo.CreateRule(ctx, record); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	got, err := repo.GetRule(ctx, "rule-1")
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if len(got.RequestTypes) != 2 || got.RequestTypes[0] != approval.RequestShiftChange {
		t.Fatalf("request types lost: %v", got.RequestTypes)
	}
	if len(got.PriorityLevels) != 1 || got.PriorityLevels[0] != approval.PriorityNormal {
		t.Fatalf("priority levels lost: %v", got.PriorityLevels)
	}
	if !got.SameSiteOnly {
		t.Fatal("same_site_only lost")
	}
	if got.MaxTimeVarianceMinutes == nil || *got.MaxTimeVarianceMinutes != 20 {
		t.Fatalf("variance lost: %v", got.MaxTimeVarianceMinutes)
	}
	if got.ConditionsJSON != `{"max_late_minutes": 15}` {
		t.Fatalf("conditions lost: %q", got.ConditionsJSON)
	}
	if got.TimesApplied != 0 || got.LastAppliedAt != nil {
		t.Fatalf("fresh rule has usage stats: %+v", got)
	}

	byCode, err := repo.GetRuleByCode(ctx, "same-site")
	if err != nil {
		t.Fatalf("get rule by code: %v", err)
	}
	if byCode.RuleID != "rule-1" {
		t.Fatalf("unexpected rule %q", byCode.RuleID)
	}

	if _, err := repo.GetRule(ctx, "absent"); !errors.Is(err, ports.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestCreateRuleDuplicateCode(t *testing.T) {
	repo := setupRuleRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	if _, err := repo.CreateRule(ctx, sampleRule("rule-1", "same-site", at)); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	_, err := repo.CreateRule(ctx, sampleRule("rule-2", "same-site", at.Add(time.Minute)))
	if !errors.Is(err, ports.ErrDuplicateRuleCode) {
		t.Fatalf("expected ErrDuplicateRuleCode, got %v", err)
	}

	rules, err := repo.ListRules(ctx, true)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("duplicate insert leaked a row, got %d rules", len(rules))
	}
}

func TestListActiveRulesKeepsCreationOrder(t *testing.T) {
	repo := setupRuleRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	if _, err := repo.CreateRule(ctx, sampleRule("rule-b", "second", at.Add(time.Minute))); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := repo.CreateRule(ctx, sampleRule("rule-a", "first", at)); err != nil {
		t.Fatalf("create first: %v", err)
	}
	dormant := sampleRule("rule-c", "dormant", at.Add(2*time.Minute))
	dormant.Active = false
	if _, err := repo.CreateRule(ctx, dormant); err != nil {
		t.Fatalf("create dormant: %v", err)
	}

	active, err := repo.ListActiveRules(ctx)
	if err != nil {
		t.Fatalf("list active rules: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active rules, got %d", len(active))
	}
	if active[0].RuleCode != "first" || active[1].RuleCode != "second" {
		t.Fatalf("rules out of creation order: %s, %s", active[0].RuleCode, active[1].RuleCode)
	}

	all, err := repo.ListRules(ctx, true)
	if err != nil {
		t.Fatalf("list all rules: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(all))
	}

	stored, err := repo.GetRule(ctx, "rule-c")
	if err != nil {
		t.Fatalf("get dormant rule: %v", err)
	}
	if stored.Active {
		t.Fatal("rule inserted with active=false persisted as active")
	}
}

func TestSetRuleActive(t *testing.T) {
	repo := setupRuleRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	if _, err := repo.CreateRule(ctx, sampleRule("rule-1", "same-site", at)); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if err := repo.SetRuleActive(ctx, "rule-1", false); err != nil {
		t.Fatalf("disable rule: %v", err)
	}

	active, err := repo.ListActiveRules(ctx)
	if err != nil {
		t.Fatalf("list active rules: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("disabled rule still listed: %+v", active)
	}

	if err := repo.SetRuleActive(ctx, "absent", true); !errors.Is(err, ports.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestRecordRuleApplicationIncrements(t *testing.T) {
	repo := setupRuleRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	if _, err := repo.CreateRule(ctx, sampleRule("rule-1", "same-site", at)); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	first := at.Add(time.Hour)
	second := at.Add(2 * time.Hour)
	if err := repo.RecordRuleApplication(ctx, "rule-1", first); err != nil {
		t.Fatalf("first application: %v", err)
	}
	if err := repo.RecordRuleApplication(ctx, "rule-1", second); err != nil {
		t.Fatalf("second application: %v", err)
	}

	got, err := repo.GetRule(ctx, "rule-1")
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if got.TimesApplied != 2 {
		t.Fatalf("times_applied: got %d want 2", got.TimesApplied)
	}
	if got.LastAppliedAt == nil || !got.LastAppliedAt.Equal(second) {
		t.Fatalf("last_applied_at: got %v want %v", got.LastAppliedAt, second)
	}

	if err := repo.RecordRuleApplication(ctx, "absent", first); !errors.Is(err, ports.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}
