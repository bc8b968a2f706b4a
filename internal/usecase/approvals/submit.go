package approvals

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"opsgate/internal/domain/approval"
	"opsgate/internal/ports"
)

// Submit persists a new request and immediately evaluates auto-approval rules
// in the same transaction, so a request never sits PENDING while a matching
// rule exists. The returned record reflects the post-evaluation state.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (ports.RequestRecord, error) {
	if err := s.guard(ctx); err != nil {
		return ports.RequestRecord{}, err
	}

	requestType, err := approval.ParseRequestType(input.RequestType)
	if err != nil {
		return ports.RequestRecord{}, err
	}
	priority, err := approval.ParsePriority(input.Priority)
	if err != nil {
		return ports.RequestRecord{}, err
	}

	requestedBy := strings.TrimSpace(input.RequestedBy)
	if requestedBy == "" {
		return ports.RequestRecord{}, errRequesterRequired
	}
	requestedFor := strings.TrimSpace(input.RequestedFor)
	if requestedFor == "" {
		requestedFor = requestedBy
	}

	metadataJSON := strings.TrimSpace(input.MetadataJSON)
	if metadataJSON != "" {
		if !json.Valid([]byte(metadataJSON)) {
			return ports.RequestRecord{}, errMetadataNotJSON
		}
	}

	now := s.now()
	record := ports.RequestRecord{
		RequestID:                uuid.NewString(),
		RequestType:              requestType,
		Priority:                 priority,
		Status:                   approval.StatusPending,
		Title:                    strings.TrimSpace(input.Title),
		Description:              strings.TrimSpace(input.Description),
		RequestedBy:              requestedBy,
		RequestedFor:             requestedFor,
		SiteID:                   optionalID(input.SiteID),
		PostID:                   optionalID(input.PostID),
		ShiftID:                  optionalID(input.ShiftID),
		AssignmentID:             optionalID(input.AssignmentID),
		TicketID:                 optionalID(input.TicketID),
		RequestedAt:              now,
		ExpiresAt:                approval.ExpiryFor(priority, now),
		ValidationFailureReason:  strings.TrimSpace(input.ValidationFailureReason),
		ValidationFailureDetails: strings.TrimSpace(input.ValidationFailureDetails),
		MetadataJSON:             metadataJSON,
	}

	var submitted ports.RequestRecord
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		created, err := s.requests.CreateRequest(txCtx, record)
		if err != nil {
			return err
		}

		if err := s.requests.AppendAction(txCtx, ports.ActionCreate{
			RequestID:  created.RequestID,
			ActionType: approval.ActionCreated,
			Actor:      &created.RequestedBy,
			Notes:      created.Title,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		if _, err := s.tryAutoApproveTx(txCtx, &created); err != nil {
			return err
		}

		submitted = created
		return nil
	}); err != nil {
		return ports.RequestRecord{}, err
	}

	s.setCacheBestEffort(ctx, cacheRequestStatusKey(submitted.RequestID), string(submitted.Status))
	return submitted, nil
}

func optionalID(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
