package approvals

import (
	"context"
	"errors"
	"time"

	"opsgate/internal/ports"
)

var (
	errRequesterRequired = errors.New("requester is required")
	errReviewerRequired  = errors.New("reviewer is required")
	errActorRequired     = errors.New("actor is required")
	errReasonRequired    = errors.New("rejection reason is required")
	errRequestIDRequired = errors.New("request id is required")
	errMetadataNotJSON   = errors.New("metadata is not valid JSON")
)

// Service implements the approval request lifecycle: submission with
// auto-approval evaluation, manual decisions, cancellation and expiry.
// Every transition runs in one unit-of-work transaction that re-checks the
// status before writing, so concurrent decisions resolve to one winner.
type Service struct {
	requests ports.ApprovalRepository
	rules    ports.RuleRepository
	uow      ports.UnitOfWork
	cache    ports.Cache
	clock    func() time.Time
}

// NewService wires the workflow with its stores and optional cache.
func NewService(requests ports.ApprovalRepository, rules ports.RuleRepository, uow ports.UnitOfWork, cache ports.Cache) *Service {
	return &Service{
		requests: requests,
		rules:    rules,
		uow:      uow,
		cache:    cache,
		clock:    time.Now,
	}
}

type SubmitInput struct {
	RequestType  string
	Priority     string
	Title        string
	Description  string
	RequestedBy  string
	RequestedFor string

	SiteID       string
	PostID       string
	ShiftID      string
	AssignmentID string
	TicketID     string

	ValidationFailureReason  string
	ValidationFailureDetails string
	MetadataJSON             string
}

type ApproveInput struct {
	RequestID string
	Reviewer  string
	Notes     string
}

type RejectInput struct {
	RequestID string
	Reviewer  string
	Reason    string
}

type CancelInput struct {
	RequestID   string
	CancelledBy string
	Reason      string
}

// RequestDetail pairs the current state with the full audit trail.
type RequestDetail struct {
	Request ports.RequestRecord
	Actions []ports.ActionRecord
}

func (s *Service) guard(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.requests == nil {
		return errors.New("approval repository is required")
	}
	if s.rules == nil {
		return errors.New("rule repository is required")
	}
	if s.uow == nil {
		return errors.New("unit of work is required")
	}
	return nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func cacheRequestStatusKey(requestID string) string {
	return "request_status:" + requestID
}
