package approvals

import (
	"context"
	"strings"

	"opsgate/internal/domain/approval"
	"opsgate/internal/ports"
)

// GetRequest returns the current state plus the complete audit trail.
func (s *Service) GetRequest(ctx context.Context, requestID string) (RequestDetail, error) {
	if err := s.guard(ctx); err != nil {
		return RequestDetail{}, err
	}

	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return RequestDetail{}, errRequestIDRequired
	}

	record, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return RequestDetail{}, err
	}
	actions, err := s.requests.ListActions(ctx, requestID)
	if err != nil {
		return RequestDetail{}, err
	}

	return RequestDetail{Request: record, Actions: actions}, nil
}

// ListPending returns PENDING requests, oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]ports.RequestRecord, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	return s.requests.ListRequests(ctx, ports.RequestFilter{
		Statuses: []approval.Status{approval.StatusPending},
		Limit:    limit,
	})
}

func (s *Service) ListRules(ctx context.Context, includeInactive bool) ([]ports.RuleRecord, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	return s.rules.ListRules(ctx, includeInactive)
}
