package approvals

import (
	"context"
	"log/slog"
	"strings"

	"opsgate/internal/bootstrap/logging"
	"opsgate/internal/domain/approval"
	"opsgate/internal/errs"
	"opsgate/internal/ports"
)

// CheckAndExpire marks the request EXPIRED when its deadline has passed and
// it is still PENDING at commit time. Returns true only when this call
// performed the transition; calling it again is a no-op.
func (s *Service) CheckAndExpire(ctx context.Context, requestID string) (bool, error) {
	if err := s.guard(ctx); err != nil {
		return false, err
	}

	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return false, errRequestIDRequired
	}

	expired := false
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err := s.requests.GetRequest(txCtx, requestID)
		if err != nil {
			return err
		}

		now := s.now()
		if !approval.CanTransition(record.Status, approval.StatusExpired) || !now.After(record.ExpiresAt) {
			return nil
		}

		if err := s.requests.MarkExpired(txCtx, requestID); err != nil {
			return err
		}
		// Nil actor: expiry is a system action.
		if err := s.requests.AppendAction(txCtx, ports.ActionCreate{
			RequestID:  requestID,
			ActionType: approval.ActionExpired,
			Notes:      "request expired without a decision",
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		expired = true
		return nil
	}); err != nil {
		return false, err
	}

	if expired {
		s.setCacheBestEffort(ctx, cacheRequestStatusKey(requestID), string(approval.StatusExpired))
	}
	return expired, nil
}

// SweepExpired expires every PENDING request past its deadline and returns
// how many were expired. Intended for periodic invocation by a scheduler.
// Each request expires in its own transaction, so a sweep racing a manual
// decision loses cleanly on that request and carries on.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	if err := s.guard(ctx); err != nil {
		return 0, err
	}

	candidates, err := s.requests.ListExpiredPending(ctx, s.now())
	if err != nil {
		return 0, err
	}

	count := 0
	for _, candidate := range candidates {
		expired, err := s.CheckAndExpire(ctx, candidate.RequestID)
		if err != nil {
			logging.Error(ctx, "expire request failed",
				slog.String("request_id", candidate.RequestID),
				slog.Any("err", errs.Loggable(err)),
			)
			return count, err
		}
		if expired {
			count++
		}
	}

	if count > 0 {
		logging.Info(ctx, "expiration sweep finished", slog.Int("expired", count))
	}
	return count, nil
}
