package model

import "time"

// Criteria sets (request types, priority levels) are stored as JSON arrays;
// rules are few and always loaded whole, so no join table is warranted.
type AutoApprovalRule struct {
	RuleID   string `gorm:"column:rule_id;type:text;primaryKey"`
	RuleCode string `gorm:"column:rule_code;type:text;not null;uniqueIndex"`
	RuleName string `gorm:"column:rule_name;type:text;not null"`
	// No column default here: gorm drops zero-value fields that carry one
	// from the INSERT, which would turn a rule created inactive into an
	// active one. Every insert supplies the value explicitly.
	Active bool `gorm:"column:active;not null;index"`

	RequestTypesJSON           string   `gorm:"column:request_types_json;type:text;not null"`
	PriorityLevelsJSON         string   `gorm:"column:priority_levels_json;type:text;not null"`
	SameSiteOnly               bool     `gorm:"column:same_site_only;not null;default:0"`
	RequiresQualificationMatch bool     `gorm:"column:requires_qualification_match;not null;default:0"`
	MaxDistanceFromSiteMeters  *float64 `gorm:"column:max_distance_from_site_meters"`
	MaxTimeVarianceMinutes     *int     `gorm:"column:max_time_variance_minutes"`
	ConditionsJSON             string   `gorm:"column:conditions_json;type:text;not null"`

	TimesApplied  uint64     `gorm:"column:times_applied;not null;default:0"`
	LastAppliedAt *time.Time `gorm:"column:last_applied_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
}

func (AutoApprovalRule) TableName() string {
	return "auto_approval_rules"
}
