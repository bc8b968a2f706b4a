package approvals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"opsgate/internal/bootstrap/logging"
	"opsgate/internal/domain/approval"
	"opsgate/internal/errs"
	"opsgate/internal/ports"
)

// tryAutoApproveTx evaluates active rules against the request and applies the
// first match. Runs inside the caller's transaction; on a match it mutates
// request in place to the auto-approved state. A malformed rule is skipped
// with a warning, never failing the whole evaluation.
func (s *Service) tryAutoApproveTx(txCtx context.Context, request *ports.RequestRecord) (bool, error) {
	rules, err := s.rules.ListActiveRules(txCtx)
	if err != nil {
		return false, err
	}

	attrs := requestAttributes(*request)
	for _, rule := range rules {
		matched, reason, err := approval.Matches(rule.Criteria(), attrs)
		if err != nil {
			if errors.Is(err, approval.ErrRuleConditions) {
				logging.Warn(txCtx, "skipping malformed auto-approval rule",
					slog.String("rule_code", rule.RuleCode),
					slog.Any("err", errs.Loggable(err)),
				)
				continue
			}
			return false, err
		}
		if !matched {
			continue
		}

		if err := s.applyRuleTx(txCtx, request, rule); err != nil {
			return false, err
		}

		logging.Info(txCtx, "request auto-approved",
			slog.String("request_id", request.RequestID),
			slog.String("rule_code", rule.RuleCode),
			slog.String("reason", reason),
		)
		return true, nil
	}

	return false, nil
}

// applyRuleTx commits all three effects of an auto-approval as one unit with
// the caller's transaction: request transition, rule usage stats, audit entry.
func (s *Service) applyRuleTx(txCtx context.Context, request *ports.RequestRecord, rule ports.RuleRecord) error {
	now := s.now()

	if err := s.requests.MarkAutoApproved(txCtx, request.RequestID, rule.RuleID, now); err != nil {
		return err
	}
	if err := s.rules.RecordRuleApplication(txCtx, rule.RuleID, now); err != nil {
		return err
	}

	metadata, err := json.Marshal(map[string]string{
		"rule_id":   rule.RuleID,
		"rule_code": rule.RuleCode,
	})
	if err != nil {
		return errs.Wrap(err, "encode rule metadata")
	}

	// Nil actor: the decision was automatic.
	if err := s.requests.AppendAction(txCtx, ports.ActionCreate{
		RequestID:    request.RequestID,
		ActionType:   approval.ActionApproved,
		Notes:        fmt.Sprintf("Auto-approved by rule: %s", rule.RuleName),
		MetadataJSON: string(metadata),
		CreatedAt:    now,
	}); err != nil {
		return err
	}

	request.Status = approval.StatusAutoApproved
	request.AutoApproved = true
	request.AutoApprovalRuleID = &rule.RuleID
	request.ReviewedAt = &now
	return nil
}

func requestAttributes(record ports.RequestRecord) approval.RequestAttributes {
	attrs := approval.RequestAttributes{
		RequestType:  record.RequestType,
		Priority:     record.Priority,
		MetadataJSON: record.MetadataJSON,
	}
	if record.SiteID != nil {
		attrs.SiteID = *record.SiteID
	}
	return attrs
}
