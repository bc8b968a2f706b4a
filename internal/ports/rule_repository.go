package ports

import (
	"context"
	"errors"
	"time"

	"opsgate/internal/domain/approval"
)

var (
	ErrRuleNotFound      = errors.New("auto-approval rule not found")
	ErrDuplicateRuleCode = errors.New("rule code already exists")
)

// RuleRecord is the persisted shape of an auto-approval rule. Criteria fields
// mirror approval.RuleCriteria; usage counters are monotonic.
type RuleRecord struct {
	RuleID   string
	RuleCode string
	RuleName string
	Active   bool

	RequestTypes               []approval.RequestType
	PriorityLevels             []approval.Priority
	SameSiteOnly               bool
	RequiresQualificationMatch bool
	MaxDistanceFromSiteMeters  *float64
	MaxTimeVarianceMinutes     *int
	ConditionsJSON             string

	TimesApplied  uint64
	LastAppliedAt *time.Time
	CreatedAt     time.Time
}

// Criteria projects the record onto the domain matching surface.
func (r RuleRecord) Criteria() approval.RuleCriteria {
	return approval.RuleCriteria{
		RequestTypes:               r.RequestTypes,
		PriorityLevels:             r.PriorityLevels,
		SameSiteOnly:               r.SameSiteOnly,
		RequiresQualificationMatch: r.RequiresQualificationMatch,
		MaxDistanceFromSiteMeters:  r.MaxDistanceFromSiteMeters,
		MaxTimeVarianceMinutes:     r.MaxTimeVarianceMinutes,
		ConditionsJSON:             r.ConditionsJSON,
	}
}

type RuleRepository interface {
	// ListActiveRules returns active rules in creation order. The workflow
	// applies the first match, so this order is the evaluation order.
	ListActiveRules(ctx context.Context) ([]RuleRecord, error)
	ListRules(ctx context.Context, includeInactive bool) ([]RuleRecord, error)
	GetRule(ctx context.Context, ruleID string) (RuleRecord, error)
	GetRuleByCode(ctx context.Context, ruleCode string) (RuleRecord, error)
	CreateRule(ctx context.Context, record RuleRecord) (RuleRecord, error)
	SetRuleActive(ctx context.Context, ruleID string, active bool) error
	// RecordRuleApplication increments times_applied in the database so
	// concurrent applications never lose an increment.
	RecordRuleApplication(ctx context.Context, ruleID string, appliedAt time.Time) error
}
