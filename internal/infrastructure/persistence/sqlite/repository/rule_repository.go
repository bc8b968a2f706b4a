package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opsgate/internal/domain/approval"
	"opsgate/internal/errs"
	"opsgate/internal/infrastructure/persistence/sqlite/model"
	"opsgate/internal/ports"
)

type RuleRepository struct {
	db *gorm.DB
}

var _ ports.RuleRepository = (*RuleRepository)(nil)

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *RuleRepository) ListActiveRules(ctx context.Context) ([]ports.RuleRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return listRules(db.Where("active = ?", true))
}

func (r *RuleRepository) ListRules(ctx context.Context, includeInactive bool) ([]ports.RuleRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !includeInactive {
		db = db.Where("active = ?", true)
	}
	return listRules(db)
}

func (r *RuleRepository) GetRule(ctx context.Context, ruleID string) (ports.RuleRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RuleRecord{}, err
	}
	return getRule(db.Where("rule_id = ?", ruleID))
}

func (r *RuleRepository) GetRuleByCode(ctx context.Context, ruleCode string) (ports.RuleRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RuleRecord{}, err
	}
	return getRule(db.Where("rule_code = ?", ruleCode))
}

func (r *RuleRepository) CreateRule(ctx context.Context, record ports.RuleRecord) (ports.RuleRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RuleRecord{}, err
	}

	row, err := ruleToModel(record)
	if err != nil {
		return ports.RuleRecord{}, err
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rule_code"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return ports.RuleRecord{}, errs.Wrap(result.Error, "insert rule")
	}
	if result.RowsAffected == 0 {
		return ports.RuleRecord{}, ports.ErrDuplicateRuleCode
	}
	return mapRule(row)
}

func (r *RuleRepository) SetRuleActive(ctx context.Context, ruleID string, active bool) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.AutoApprovalRule{}).
		Where("rule_id = ?", ruleID).
		Update("active", active)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update rule active flag")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRuleNotFound
	}
	return nil
}

func (r *RuleRepository) RecordRuleApplication(ctx context.Context, ruleID string, appliedAt time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	// In-database increment so concurrent applications never lose a count.
	result := db.Model(&model.AutoApprovalRule{}).
		Where("rule_id = ?", ruleID).
		Updates(map[string]any{
			"times_applied":   gorm.Expr("times_applied + 1"),
			"last_applied_at": appliedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "record rule application")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRuleNotFound
	}
	return nil
}

func listRules(db *gorm.DB) ([]ports.RuleRecord, error) {
	var rows []model.AutoApprovalRule
	if err := db.Order("created_at asc, rule_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query rules")
	}

	items := make([]ports.RuleRecord, 0, len(rows))
	for _, row := range rows {
		record, err := mapRule(row)
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	return items, nil
}

func getRule(db *gorm.DB) (ports.RuleRecord, error) {
	var row model.AutoApprovalRule
	if err := db.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RuleRecord{}, ports.ErrRuleNotFound
		}
		return ports.RuleRecord{}, errs.Wrap(err, "query rule")
	}
	return mapRule(row)
}

func ruleToModel(record ports.RuleRecord) (model.AutoApprovalRule, error) {
	requestTypes, err := json.Marshal(record.RequestTypes)
	if err != nil {
		return model.AutoApprovalRule{}, errs.Wrap(err, "encode request types")
	}
	priorityLevels, err := json.Marshal(record.PriorityLevels)
	if err != nil {
		return model.AutoApprovalRule{}, errs.Wrap(err, "encode priority levels")
	}

	return model.AutoApprovalRule{
		RuleID:                     record.RuleID,
		RuleCode:                   record.RuleCode,
		RuleName:                   record.RuleName,
		Active:                     record.Active,
		RequestTypesJSON:           string(requestTypes),
		PriorityLevelsJSON:         string(priorityLevels),
		SameSiteOnly:               record.SameSiteOnly,
		RequiresQualificationMatch: record.RequiresQualificationMatch,
		MaxDistanceFromSiteMeters:  record.MaxDistanceFromSiteMeters,
		MaxTimeVarianceMinutes:     record.MaxTimeVarianceMinutes,
		ConditionsJSON:             record.ConditionsJSON,
		TimesApplied:               record.TimesApplied,
		LastAppliedAt:              record.LastAppliedAt,
		CreatedAt:                  record.CreatedAt,
	}, nil
}

func mapRule(row model.AutoApprovalRule) (ports.RuleRecord, error) {
	var requestTypes []approval.RequestType
	if row.RequestTypesJSON != "" {
		if err := json.Unmarshal([]byte(row.RequestTypesJSON), &requestTypes); err != nil {
			return ports.RuleRecord{}, errs.Wrapf(err, "decode request types of rule %s", row.RuleCode)
		}
	}
	var priorityLevels []approval.Priority
	if row.PriorityLevelsJSON != "" {
		if err := json.Unmarshal([]byte(row.PriorityLevelsJSON), &priorityLevels); err != nil {
			return ports.RuleRecord{}, errs.Wrapf(err, "decode priority levels of rule %s", row.RuleCode)
		}
	}

	return ports.RuleRecord{
		RuleID:                     row.RuleID,
		RuleCode:                   row.RuleCode,
		RuleName:                   row.RuleName,
		Active:                     row.Active,
		RequestTypes:               requestTypes,
		PriorityLevels:             priorityLevels,
		SameSiteOnly:               row.SameSiteOnly,
		RequiresQualificationMatch: row.RequiresQualificationMatch,
		MaxDistanceFromSiteMeters:  row.MaxDistanceFromSiteMeters,
		MaxTimeVarianceMinutes:     row.MaxTimeVarianceMinutes,
		ConditionsJSON:             row.ConditionsJSON,
		TimesApplied:               row.TimesApplied,
		LastAppliedAt:              row.LastAppliedAt,
		CreatedAt:                  row.CreatedAt,
	}, nil
}
