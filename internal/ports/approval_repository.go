package ports

import (
	"context"
	"errors"
	"time"

	"opsgate/internal/domain/approval"
)

var ErrRequestNotFound = errors.New("approval request not found")

// RequestRecord is the persisted shape of an approval request. Context
// references are weak: ids only, nullable, no ownership implied.
type RequestRecord struct {
	RequestID   string
	RequestType approval.RequestType
	Priority    approval.Priority
	Status      approval.Status

	Title       string
	Description string

	RequestedBy  string
	RequestedFor string
	ReviewedBy   *string

	SiteID       *string
	PostID       *string
	ShiftID      *string
	AssignmentID *string
	TicketID     *string

	RequestedAt         time.Time
	ExpiresAt           time.Time
	ReviewedAt          *time.Time
	ResponseTimeMinutes *int

	ValidationFailureReason  string
	ValidationFailureDetails string
	MetadataJSON             string

	AutoApproved       bool
	AutoApprovalRuleID *string
	ApprovalNotes      string
	RejectionReason    string
}

// ActionRecord is one immutable entry of a request's audit trail.
// A nil actor means the system acted (rule engine or expiration sweep).
type ActionRecord struct {
	ActionID     uint64
	RequestID    string
	ActionType   approval.ActionType
	Actor        *string
	Notes        string
	MetadataJSON string
	CreatedAt    time.Time
}

type ActionCreate struct {
	RequestID    string
	ActionType   approval.ActionType
	Actor        *string
	Notes        string
	MetadataJSON string
	CreatedAt    time.Time
}

type RequestFilter struct {
	Statuses    []approval.Status
	RequestedBy string
	SiteID      string
	Limit       int
}

type ApprovalReadRepository interface {
	GetRequest(ctx context.Context, requestID string) (RequestRecord, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]RequestRecord, error)
	// ListExpiredPending returns PENDING requests whose expiry deadline lies
	// before the given instant, oldest deadline first.
	ListExpiredPending(ctx context.Context, before time.Time) ([]RequestRecord, error)
	ListActions(ctx context.Context, requestID string) ([]ActionRecord, error)
}

// ApprovalRepository mutates requests one transition at a time. Mutators write
// only the fields of their transition; precondition checks belong to the
// workflow, executed under the same transaction as the write.
type ApprovalRepository interface {
	ApprovalReadRepository
	CreateRequest(ctx context.Context, record RequestRecord) (RequestRecord, error)
	MarkManuallyApproved(ctx context.Context, requestID string, reviewer string, reviewedAt time.Time, notes string, responseMinutes int) error
	MarkRejected(ctx context.Context, requestID string, reviewer string, reviewedAt time.Time, reason string, responseMinutes int) error
	MarkCancelled(ctx context.Context, requestID string, notes string) error
	MarkExpired(ctx context.Context, requestID string) error
	MarkAutoApproved(ctx context.Context, requestID string, ruleID string, reviewedAt time.Time) error
	AppendAction(ctx context.Context, input ActionCreate) error
}
