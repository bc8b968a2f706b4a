package approval

import (
	"fmt"
	"strings"
)

// RequestType classifies what operational exception a request asks for.
type RequestType string

const (
	RequestValidationOverride  RequestType = "VALIDATION_OVERRIDE"
	RequestEmergencyAssignment RequestType = "EMERGENCY_ASSIGNMENT"
	RequestShiftChange         RequestType = "SHIFT_CHANGE"
	RequestPostReassignment    RequestType = "POST_REASSIGNMENT"
	RequestRestPeriodWaiver    RequestType = "REST_PERIOD_WAIVER"
	RequestLateCheckinApproval RequestType = "LATE_CHECKIN_APPROVAL"
	RequestSiteTransfer        RequestType = "SITE_TRANSFER"
	RequestCoverageGapFill     RequestType = "COVERAGE_GAP_FILL"
)

var requestTypes = map[RequestType]struct{}{
	RequestValidationOverride:  {},
	RequestEmergencyAssignment: {},
	RequestShiftChange:         {},
	RequestPostReassignment:    {},
	RequestRestPeriodWaiver:    {},
	RequestLateCheckinApproval: {},
	RequestSiteTransfer:        {},
	RequestCoverageGapFill:     {},
}

func ParseRequestType(raw string) (RequestType, error) {
	candidate := RequestType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := requestTypes[candidate]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRequestType, raw)
	}
	return candidate, nil
}

// Priority drives the expiry window of a request.
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

var priorities = map[Priority]struct{}{
	PriorityUrgent: {},
	PriorityHigh:   {},
	PriorityNormal: {},
	PriorityLow:    {},
}

func ParsePriority(raw string) (Priority, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PriorityNormal, nil
	}
	candidate := Priority(strings.ToUpper(trimmed))
	if _, ok := priorities[candidate]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
	return candidate, nil
}

// Status is the current position of a request in its lifecycle.
// PENDING is the only non-terminal status.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusAutoApproved     Status = "AUTO_APPROVED"
	StatusManuallyApproved Status = "MANUALLY_APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusExpired          Status = "EXPIRED"
	StatusCancelled        Status = "CANCELLED"
)

// ActionType names one entry of the append-only audit trail.
type ActionType string

const (
	ActionCreated      ActionType = "CREATED"
	ActionApproved     ActionType = "APPROVED"
	ActionRejected     ActionType = "REJECTED"
	ActionCancelled    ActionType = "CANCELLED"
	ActionExpired      ActionType = "EXPIRED"
	ActionEscalated    ActionType = "ESCALATED"
	ActionCommentAdded ActionType = "COMMENT_ADDED"
)
