package approvals

import (
	"context"
	"strings"

	"opsgate/internal/domain/approval"
	"opsgate/internal/ports"
)

// Approve records a manual approval. The PENDING precondition is re-checked
// inside the transaction, so two racing decisions yield one success and one
// InvalidStateError.
func (s *Service) Approve(ctx context.Context, input ApproveInput) (ports.RequestRecord, error) {
	if err := s.guard(ctx); err != nil {
		return ports.RequestRecord{}, err
	}

	requestID := strings.TrimSpace(input.RequestID)
	if requestID == "" {
		return ports.RequestRecord{}, errRequestIDRequired
	}
	reviewer := strings.TrimSpace(input.Reviewer)
	if reviewer == "" {
		return ports.RequestRecord{}, errReviewerRequired
	}
	notes := strings.TrimSpace(input.Notes)

	var decided ports.RequestRecord
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err := s.requests.GetRequest(txCtx, requestID)
		if err != nil {
			return err
		}
		if !approval.CanTransition(record.Status, approval.StatusManuallyApproved) {
			return &approval.InvalidStateError{Op: "approve", RequestID: requestID, Status: record.Status}
		}

		now := s.now()
		responseMinutes := approval.ResponseMinutes(record.RequestedAt, now)

		if err := s.requests.MarkManuallyApproved(txCtx, requestID, reviewer, now, notes, responseMinutes); err != nil {
			return err
		}
		if err := s.requests.AppendAction(txCtx, ports.ActionCreate{
			RequestID:  requestID,
			ActionType: approval.ActionApproved,
			Actor:      &reviewer,
			Notes:      notes,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		record.Status = approval.StatusManuallyApproved
		record.ReviewedBy = &reviewer
		record.ReviewedAt = &now
		record.ApprovalNotes = notes
		record.ResponseTimeMinutes = &responseMinutes
		decided = record
		return nil
	}); err != nil {
		return ports.RequestRecord{}, err
	}

	s.setCacheBestEffort(ctx, cacheRequestStatusKey(requestID), string(decided.Status))
	return decided, nil
}

// Reject records a manual rejection; the reason is mandatory.
func (s *Service) Reject(ctx context.Context, input RejectInput) (ports.RequestRecord, error) {
	if err := s.guard(ctx); err != nil {
		return ports.RequestRecord{}, err
	}

	requestID := strings.TrimSpace(input.RequestID)
	if requestID == "" {
		return ports.RequestRecord{}, errRequestIDRequired
	}
	reviewer := strings.TrimSpace(input.Reviewer)
	if reviewer == "" {
		return ports.RequestRecord{}, errReviewerRequired
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return ports.RequestRecord{}, errReasonRequired
	}

	var decided ports.RequestRecord
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err := s.requests.GetRequest(txCtx, requestID)
		if err != nil {
			return err
		}
		if !approval.CanTransition(record.Status, approval.StatusRejected) {
			return &approval.InvalidStateError{Op: "reject", RequestID: requestID, Status: record.Status}
		}

		now := s.now()
		responseMinutes := approval.ResponseMinutes(record.RequestedAt, now)

		if err := s.requests.MarkRejected(txCtx, requestID, reviewer, now, reason, responseMinutes); err != nil {
			return err
		}
		if err := s.requests.AppendAction(txCtx, ports.ActionCreate{
			RequestID:  requestID,
			ActionType: approval.ActionRejected,
			Actor:      &reviewer,
			Notes:      reason,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		record.Status = approval.StatusRejected
		record.ReviewedBy = &reviewer
		record.ReviewedAt = &now
		record.RejectionReason = reason
		record.ResponseTimeMinutes = &responseMinutes
		decided = record
		return nil
	}); err != nil {
		return ports.RequestRecord{}, err
	}

	s.setCacheBestEffort(ctx, cacheRequestStatusKey(requestID), string(decided.Status))
	return decided, nil
}

// Cancel withdraws a PENDING request. A cancellation is not a decision, so
// neither reviewer fields nor response time are touched.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (ports.RequestRecord, error) {
	if err := s.guard(ctx); err != nil {
		return ports.RequestRecord{}, err
	}

	requestID := strings.TrimSpace(input.RequestID)
	if requestID == "" {
		return ports.RequestRecord{}, errRequestIDRequired
	}
	cancelledBy := strings.TrimSpace(input.CancelledBy)
	if cancelledBy == "" {
		return ports.RequestRecord{}, errActorRequired
	}
	reason := strings.TrimSpace(input.Reason)

	var cancelled ports.RequestRecord
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err := s.requests.GetRequest(txCtx, requestID)
		if err != nil {
			return err
		}
		if !approval.CanTransition(record.Status, approval.StatusCancelled) {
			return &approval.InvalidStateError{Op: "cancel", RequestID: requestID, Status: record.Status}
		}

		if err := s.requests.MarkCancelled(txCtx, requestID, reason); err != nil {
			return err
		}
		if err := s.requests.AppendAction(txCtx, ports.ActionCreate{
			RequestID:  requestID,
			ActionType: approval.ActionCancelled,
			Actor:      &cancelledBy,
			Notes:      reason,
			CreatedAt:  s.now(),
		}); err != nil {
			return err
		}

		record.Status = approval.StatusCancelled
		record.ApprovalNotes = reason
		cancelled = record
		return nil
	}); err != nil {
		return ports.RequestRecord{}, err
	}

	s.setCacheBestEffort(ctx, cacheRequestStatusKey(requestID), string(cancelled.Status))
	return cancelled, nil
}
