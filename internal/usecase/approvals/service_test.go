package approvals

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"opsgate/internal/domain/approval"
	"opsgate/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "opsgate/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "opsgate/internal/infrastructure/persistence/sqlite/uow"
	"opsgate/internal/ports"
)

type testCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{
		data: make(map[string]string),
	}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func setupServiceWithDB(t *testing.T) (*Service, *testCache, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "approvals.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(
		&model.ApprovalRequest{},
		&model.AutoApprovalRule{},
		&model.ApprovalAction{},
		&model.ApprovalKV{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	cache := newTestCache()
	requests := sqliterepo.NewApprovalRepository(db)
	rules := sqliterepo.NewRuleRepository(db)
	uow := sqliteuow.NewUnitOfWork(db)
	return NewService(requests, rules, uow, cache), cache, db
}

func setupService(t *testing.T) (*Service, *testCache) {
	t.Helper()
	svc, cache, _ := setupServiceWithDB(t)
	return svc, cache
}

func fixTime(svc *Service, at time.Time) {
	svc.clock = func() time.Time { return at }
}

func submitPending(t *testing.T, svc *Service, priority string) ports.RequestRecord {
	t.Helper()
	record, err := svc.Submit(context.Background(), SubmitInput{
		RequestType: "SHIFT_CHANGE",
		Priority:    priority,
		Title:       "swap thursday night",
		RequestedBy: "guard-7",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.Status != approval.StatusPending {
		t.Fatalf("expected PENDING, got %s", record.Status)
	}
	return record
}

func TestSubmitUrgentWithoutMatchingRule(t *testing.T) {
	svc, cache := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fixTime(svc, at)

	record, err := svc.Submit(ctx, SubmitInput{
		RequestType: "emergency_assignment",
		Priority:    "URGENT",
		Title:       "cover gate 3 now",
		RequestedBy: "dispatcher-1",
		SiteID:      "site-9",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if record.Status != approval.StatusPending {
		t.Fatalf("expected PENDING, got %s", record.Status)
	}
	if record.RequestType != approval.RequestEmergencyAssignment {
		t.Fatalf("unexpected request type %s", record.RequestType)
	}
	if record.RequestedFor != "dispatcher-1" {
		t.Fatalf("requested_for should default to requester, got %q", record.RequestedFor)
	}
	if got, want := record.ExpiresAt, at.Add(2*time.Hour); !got.Equal(want) {
		t.Fatalf("urgent expiry: got %v want %v", got, want)
	}

	detail, err := svc.GetRequest(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if len(detail.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(detail.Actions))
	}
	action := detail.Actions[0]
	if action.ActionType != approval.ActionCreated {
		t.Fatalf("expected CREATED action, got %s", action.ActionType)
	}
	if action.Actor == nil || *action.Actor != "dispatcher-1" {
		t.Fatalf("CREATED actor should be the requester, got %v", action.Actor)
	}

	if status, ok, _ := cache.Get(ctx, "request_status:"+record.RequestID); !ok || status != "PENDING" {
		t.Fatalf("cache status: got %q found=%v", status, ok)
	}
}

func TestSubmitDefaultPriorityAndExpiry(t *testing.T) {
	svc, _ := setupService(t)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fixTime(svc, at)

	record, err := svc.Submit(context.Background(), SubmitInput{
		RequestType: "SHIFT_CHANGE",
		Title:       "swap",
		RequestedBy: "guard-7",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.Priority != approval.PriorityNormal {
		t.Fatalf("empty priority should default to NORMAL, got %s", record.Priority)
	}
	if got, want := record.ExpiresAt, at.Add(24*time.Hour); !got.Equal(want) {
		t.Fatalf("default expiry: got %v want %v", got, want)
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, SubmitInput{RequestType: "NOT_A_TYPE", RequestedBy: "x"}); !errors.Is(err, approval.ErrInvalidRequestType) {
		t.Fatalf("expected ErrInvalidRequestType, got %v", err)
	}
	if _, err := svc.Submit(ctx, SubmitInput{RequestType: "SHIFT_CHANGE", Priority: "WHENEVER", RequestedBy: "x"}); !errors.Is(err, approval.ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
	if _, err := svc.Submit(ctx, SubmitInput{RequestType: "SHIFT_CHANGE"}); !errors.Is(err, errRequesterRequired) {
		t.Fatalf("expected requester error, got %v", err)
	}
	if _, err := svc.Submit(ctx, SubmitInput{RequestType: "SHIFT_CHANGE", RequestedBy: "x", MetadataJSON: "{broken"}); !errors.Is(err, errMetadataNotJSON) {
		t.Fatalf("expected metadata error, got %v", err)
	}
}

func TestSubmitAutoApprovedByMatchingRule(t *testing.T) {
	svc, cache := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fixTime(svc, at)

	rule, err := svc.CreateRule(ctx, RuleDefinition{
		Code:         "late-grace",
		Name:         "Late check-in within grace window",
		RequestTypes: []string{"LATE_CHECKIN_APPROVAL"},
		Conditions:   map[string]any{"max_late_minutes": 15},
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	record, err := svc.Submit(ctx, SubmitInput{
		RequestType:  "LATE_CHECKIN_APPROVAL",
		Title:        "stuck in traffic",
		RequestedBy:  "guard-3",
		MetadataJSON: `{"late_minutes": 8}`,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if record.Status != approval.StatusAutoApproved {
		t.Fatalf("expected AUTO_APPROVED, got %s", record.Status)
	}
	if !record.AutoApproved {
		t.Fatal("auto_approved flag not set")
	}
	if record.AutoApprovalRuleID == nil || *record.AutoApprovalRuleID != rule.RuleID {
		t.Fatalf("rule id not recorded, got %v", record.AutoApprovalRuleID)
	}
	if record.ReviewedAt == nil || !record.ReviewedAt.Equal(at) {
		t.Fatalf("reviewed_at not set to decision time, got %v", record.ReviewedAt)
	}

	detail, err := svc.GetRequest(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if len(detail.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(detail.Actions))
	}
	if detail.Actions[0].ActionType != approval.ActionCreated {
		t.Fatalf("first action should be CREATED, got %s", detail.Actions[0].ActionType)
	}
	approvedAction := detail.Actions[1]
	if approvedAction.ActionType != approval.ActionApproved {
		t.Fatalf("second action should be APPROVED, got %s", approvedAction.ActionType)
	}
	if approvedAction.Actor != nil {
		t.Fatalf("auto approval actor should be nil, got %q", *approvedAction.Actor)
	}
	if !strings.Contains(approvedAction.Notes, "Late check-in within grace window") {
		t.Fatalf("approval note should name the rule, got %q", approvedAction.Notes)
	}
	if !strings.Contains(approvedAction.MetadataJSON, rule.RuleID) {
		t.Fatalf("approval metadata should carry the rule id, got %q", approvedAction.MetadataJSON)
	}

	stored, err := svc.rules.GetRule(ctx, rule.RuleID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if stored.TimesApplied != 1 {
		t.Fatalf("times_applied: got %d want 1", stored.TimesApplied)
	}
	if stored.LastAppliedAt == nil {
		t.Fatal("last_applied_at not recorded")
	}

	if status, _, _ := cache.Get(ctx, "request_status:"+record.RequestID); status != "AUTO_APPROVED" {
		t.Fatalf("cache status: got %q", status)
	}
}

func TestRuleEvaluationFollowsCreationOrder(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	fixTime(svc, at)
	first, err := svc.CreateRule(ctx, RuleDefinition{
		Code:         "first",
		Name:         "first rule",
		RequestTypes: []string{"SHIFT_CHANGE"},
	})
	if err != nil {
		t.Fatalf("create first rule: %v", err)
	}
	fixTime(svc, at.Add(time.Minute))
	if _, err := svc.CreateRule(ctx, RuleDefinition{
		Code:         "second",
		Name:         "second rule",
		RequestTypes: []string{"SHIFT_CHANGE"},
	}); err != nil {
		t.Fatalf("create second rule: %v", err)
	}

	record, err := svc.Submit(ctx, SubmitInput{
		RequestType: "SHIFT_CHANGE",
		Title:       "swap",
		RequestedBy: "guard-7",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.Status != approval.StatusAutoApproved {
		t.Fatalf("expected AUTO_APPROVED, got %s", record.Status)
	}
	if record.AutoApprovalRuleID == nil || *record.AutoApprovalRuleID != first.RuleID {
		t.Fatalf("oldest rule should win, got %v want %s", record.AutoApprovalRuleID, first.RuleID)
	}
}

func TestMalformedRuleIsSkippedNotFatal(t *testing.T) {
	svc, _, db := setupServiceWithDB(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fixTime(svc, at)

	// A broken conditions payload cannot enter through CreateRule, so seed
	// it at the storage level.
	rules := sqliterepo.NewRuleRepository(db)
	if _, err := rules.CreateRule(ctx, ports.RuleRecord{
		RuleID:         "rule-broken",
		RuleCode:       "broken",
		RuleName:       "broken rule",
		Active:         true,
		RequestTypes:   []approval.RequestType{approval.RequestShiftChange},
		ConditionsJSON: "{not json",
		CreatedAt:      at,
	}); err != nil {
		t.Fatalf("seed broken rule: %v", err)
	}

	fixTime(svc, at.Add(time.Minute))
	if _, err := svc.CreateRule(ctx, RuleDefinition{
		Code:         "good",
		Name:         "good rule",
		RequestTypes: []string{"SHIFT_CHANGE"},
	}); err != nil {
		t.Fatalf("create good rule: %v", err)
	}

	record, err := svc.Submit(ctx, SubmitInput{
		RequestType: "SHIFT_CHANGE",
		Title:       "swap",
		RequestedBy: "guard-7",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record.Status != approval.StatusAutoApproved {
		t.Fatalf("good rule should still apply, got %s", record.Status)
	}

	broken, err := rules.GetRule(ctx, "rule-broken")
	if err != nil {
		t.Fatalf("get broken rule: %v", err)
	}
	if broken.TimesApplied != 0 {
		t.Fatalf("broken rule must never apply, times_applied=%d", broken.TimesApplied)
	}
}

func TestApproveRecordsReviewerAndResponseTime(t *testing.T) {
	svc, cache := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fixTime(svc, at)

	record := submitPending(t, svc, "HIGH")

	fixTime(svc, at.Add(30*time.Minute))
	decided, err := svc.Approve(ctx, ApproveInput{
		RequestID: record.RequestID,
		Reviewer:  "supervisor-2",
		Notes:     "coverage confirmed",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if decided.Status != approval.StatusManuallyApproved {
		t.Fatalf("expected MANUALLY_APPROVED, got %s", decided.Status)
	}
	if decided.ReviewedBy == nil || *decided.ReviewedBy != "supervisor-2" {
		t.Fatalf("reviewer not recorded, got %v", decided.ReviewedBy)
	}
	if decided.ResponseTimeMinutes == nil || *decided.ResponseTimeMinutes != 30 {
		t.Fatalf("response minutes: got %v want 30", decided.ResponseTimeMinutes)
	}

	detail, err := svc.GetRequest(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if len(detail.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(detail.Actions))
	}
	last := detail.Actions[1]
	if last.ActionType != approval.ActionApproved || last.Actor == nil || *last.Actor != "supervisor-2" {
		t.Fatalf("unexpected decision action %+v", last)
	}

	if status, _, _ := cache.Get(ctx, "request_status:"+record.RequestID); status != "MANUALLY_APPROVED" {
		t.Fatalf("cache status: got %q", status)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc, _ := setupService(t)
	record := submitPending(t, svc, "NORMAL")

	_, err := svc.Reject(context.Background(), RejectInput{
		RequestID: record.RequestID,
		Reviewer:  "supervisor-2",
	})
	if !errors.Is(err, errReasonRequired) {
		t.Fatalf("expected reason error, got %v", err)
	}
}

func TestDecideTwiceFailsWithInvalidState(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	record := submitPending(t, svc, "NORMAL")

	if _, err := svc.Reject(ctx, RejectInput{
		RequestID: record.RequestID,
		Reviewer:  "supervisor-2",
		Reason:    "no coverage available",
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	_, err := svc.Approve(ctx, ApproveInput{
		RequestID: record.RequestID,
		Reviewer:  "supervisor-3",
	})
	if !errors.Is(err, approval.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	var stateErr *approval.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError, got %T", err)
	}
	if stateErr.Status != approval.StatusRejected || stateErr.Op != "approve" {
		t.Fatalf("unexpected state error %+v", stateErr)
	}

	detail, err := svc.GetRequest(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if len(detail.Actions) != 2 {
		t.Fatalf("failed decision must not append an action, got %d actions", len(detail.Actions))
	}
}

func TestCancelLeavesNoResponseTime(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	record := submitPending(t, svc, "NORMAL")

	cancelled, err := svc.Cancel(ctx, CancelInput{
		RequestID:   record.RequestID,
		CancelledBy: "guard-7",
		Reason:      "no longer needed",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if cancelled.Status != approval.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if cancelled.ResponseTimeMinutes != nil {
		t.Fatalf("cancellation must not record response time, got %v", *cancelled.ResponseTimeMinutes)
	}
	if cancelled.ReviewedBy != nil {
		t.Fatalf("cancellation must not set a reviewer, got %q", *cancelled.ReviewedBy)
	}

	detail, err := svc.GetRequest(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	last := detail.Actions[len(detail.Actions)-1]
	if last.ActionType != approval.ActionCancelled || last.Actor == nil || *last.Actor != "guard-7" {
		t.Fatalf("unexpected cancel action %+v", last)
	}
}

func TestCheckAndExpireIsIdempotent(t *testing.T) {
	svc, cache := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fixTime(svc, at)

	record := submitPending(t, svc, "NORMAL")

	// Still inside the window: no transition.
	fixTime(svc, at.Add(23*time.Hour))
	expired, err := svc.CheckAndExpire(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("check and expire: %v", err)
	}
	if expired {
		t.Fatal("request expired before its deadline")
	}

	fixTime(svc, at.Add(25*time.Hour))
	expired, err = svc.CheckAndExpire(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("check and expire: %v", err)
	}
	if !expired {
		t.Fatal("request past deadline should expire")
	}

	expired, err = svc.CheckAndExpire(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("second check and expire: %v", err)
	}
	if expired {
		t.Fatal("second call must be a no-op")
	}

	detail, err := svc.GetRequest(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if detail.Request.Status != approval.StatusExpired {
		t.Fatalf("expected EXPIRED, got %s", detail.Request.Status)
	}
	expiredActions := 0
	for _, action := range detail.Actions {
		if action.ActionType == approval.ActionExpired {
			expiredActions++
			if action.Actor != nil {
				t.Fatalf("expiry actor should be nil, got %q", *action.Actor)
			}
		}
	}
	if expiredActions != 1 {
		t.Fatalf("expected exactly 1 EXPIRED action, got %d", expiredActions)
	}

	if status, _, _ := cache.Get(ctx, "request_status:"+record.RequestID); status != "EXPIRED" {
		t.Fatalf("cache status: got %q", status)
	}
}

func TestSweepExpiredSkipsLiveRequests(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	fixTime(svc, at)
	urgent1 := submitPending(t, svc, "URGENT")
	urgent2 := submitPending(t, svc, "URGENT")
	normal := submitPending(t, svc, "NORMAL")

	fixTime(svc, at.Add(3*time.Hour))
	count, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 2 {
		t.Fatalf("sweep count: got %d want 2", count)
	}

	for _, requestID := range []string{urgent1.RequestID, urgent2.RequestID} {
		detail, err := svc.GetRequest(ctx, requestID)
		if err != nil {
			t.Fatalf("get request: %v", err)
		}
		if detail.Request.Status != approval.StatusExpired {
			t.Fatalf("urgent request should be EXPIRED, got %s", detail.Request.Status)
		}
	}
	detail, err := svc.GetRequest(ctx, normal.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if detail.Request.Status != approval.StatusPending {
		t.Fatalf("normal request should stay PENDING, got %s", detail.Request.Status)
	}

	count, err = svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if count != 0 {
		t.Fatalf("second sweep should expire nothing, got %d", count)
	}
}

func TestConcurrentDecisionsHaveOneWinner(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	record := submitPending(t, svc, "NORMAL")

	const attempts = 6
	results := make(chan error, attempts)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		reviewer := "supervisor-" + string(rune('a'+i))
		go func() {
			start.Wait()
			_, err := svc.Approve(ctx, ApproveInput{
				RequestID: record.RequestID,
				Reviewer:  reviewer,
			})
			results <- err
		}()
	}
	start.Done()

	wins := 0
	invalidState := 0
	for i := 0; i < attempts; i++ {
		err := <-results
		switch {
		case err == nil:
			wins++
		case errors.Is(err, approval.ErrInvalidTransition):
			invalidState++
		default:
			// Contending writers may also lose on storage-level locking.
			lower := strings.ToLower(err.Error())
			if !strings.Contains(lower, "lock") && !strings.Contains(lower, "busy") {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one decision must win, got %d", wins)
	}

	detail, err := svc.GetRequest(ctx, record.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if detail.Request.Status != approval.StatusManuallyApproved {
		t.Fatalf("expected MANUALLY_APPROVED, got %s", detail.Request.Status)
	}
	decisions := 0
	for _, action := range detail.Actions {
		if action.ActionType == approval.ActionApproved {
			decisions++
		}
	}
	if decisions != 1 {
		t.Fatalf("audit trail must carry exactly one decision, got %d", decisions)
	}
}

func TestDecisionOnUnknownRequest(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Approve(context.Background(), ApproveInput{
		RequestID: "no-such-request",
		Reviewer:  "supervisor-2",
	})
	if !errors.Is(err, ports.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}
