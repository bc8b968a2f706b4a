package approvals

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"opsgate/internal/domain/approval"
	"opsgate/internal/errs"
	"opsgate/internal/ports"
)

var (
	errRuleCodeRequired = errors.New("rule code is required")
	errRuleNameRequired = errors.New("rule name is required")
)

// CreateRule validates a rule definition and persists it. The rule becomes
// part of the evaluation order immediately (creation order is evaluation
// order).
func (s *Service) CreateRule(ctx context.Context, def RuleDefinition) (ports.RuleRecord, error) {
	if err := s.guard(ctx); err != nil {
		return ports.RuleRecord{}, err
	}

	code := strings.TrimSpace(def.Code)
	if code == "" {
		return ports.RuleRecord{}, errRuleCodeRequired
	}
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return ports.RuleRecord{}, errRuleNameRequired
	}

	requestTypes := make([]approval.RequestType, 0, len(def.RequestTypes))
	for _, raw := range def.RequestTypes {
		requestType, err := approval.ParseRequestType(raw)
		if err != nil {
			return ports.RuleRecord{}, err
		}
		requestTypes = append(requestTypes, requestType)
	}

	priorityLevels := make([]approval.Priority, 0, len(def.PriorityLevels))
	for _, raw := range def.PriorityLevels {
		priority, err := approval.ParsePriority(raw)
		if err != nil {
			return ports.RuleRecord{}, err
		}
		priorityLevels = append(priorityLevels, priority)
	}

	conditionsJSON := ""
	if len(def.Conditions) > 0 {
		encoded, err := json.Marshal(def.Conditions)
		if err != nil {
			return ports.RuleRecord{}, errs.Wrap(err, "encode rule conditions")
		}
		conditionsJSON = string(encoded)
	}

	active := true
	if def.Active != nil {
		active = *def.Active
	}

	record := ports.RuleRecord{
		RuleID:                     uuid.NewString(),
		RuleCode:                   code,
		RuleName:                   name,
		Active:                     active,
		RequestTypes:               requestTypes,
		PriorityLevels:             priorityLevels,
		SameSiteOnly:               def.SameSiteOnly,
		RequiresQualificationMatch: def.RequiresQualificationMatch,
		MaxDistanceFromSiteMeters:  def.MaxDistanceFromSiteMeters,
		MaxTimeVarianceMinutes:     def.MaxTimeVarianceMinutes,
		ConditionsJSON:             conditionsJSON,
		CreatedAt:                  s.now(),
	}

	return s.rules.CreateRule(ctx, record)
}

// SetRuleActiveByCode toggles a rule without touching its criteria or stats.
func (s *Service) SetRuleActiveByCode(ctx context.Context, ruleCode string, active bool) error {
	if err := s.guard(ctx); err != nil {
		return err
	}

	code := strings.TrimSpace(ruleCode)
	if code == "" {
		return errRuleCodeRequired
	}

	rule, err := s.rules.GetRuleByCode(ctx, code)
	if err != nil {
		return err
	}
	return s.rules.SetRuleActive(ctx, rule.RuleID, active)
}
