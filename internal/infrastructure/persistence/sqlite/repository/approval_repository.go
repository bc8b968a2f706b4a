package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"opsgate/internal/domain/approval"
	"opsgate/internal/errs"
	"opsgate/internal/infrastructure/persistence/sqlite/model"
	"opsgate/internal/ports"
)

type ApprovalRepository struct {
	db *gorm.DB
}

var _ ports.ApprovalRepository = (*ApprovalRepository)(nil)

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *ApprovalRepository) GetRequest(ctx context.Context, requestID string) (ports.RequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RequestRecord{}, err
	}

	var row model.ApprovalRequest
	if err := db.Where("request_id = ?", requestID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RequestRecord{}, ports.ErrRequestNotFound
		}
		return ports.RequestRecord{}, errs.Wrap(err, "query request")
	}
	return mapRequest(row), nil
}

func (r *ApprovalRepository) ListRequests(ctx context.Context, filter ports.RequestFilter) ([]ports.RequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.ApprovalRequest{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		query = query.Where("status IN ?", statuses)
	}
	if requestedBy := strings.TrimSpace(filter.RequestedBy); requestedBy != "" {
		query = query.Where("requested_by = ?", requestedBy)
	}
	if siteID := strings.TrimSpace(filter.SiteID); siteID != "" {
		query = query.Where("site_id = ?", siteID)
	}
	query = query.Order("requested_at asc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.ApprovalRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query requests")
	}

	items := make([]ports.RequestRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRequest(row))
	}
	return items, nil
}

func (r *ApprovalRepository) ListExpiredPending(ctx context.Context, before time.Time) ([]ports.RequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ApprovalRequest
	if err := db.
		Where("status = ? AND expires_at < ?", string(approval.StatusPending), before).
		Order("expires_at asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query expired pending requests")
	}

	items := make([]ports.RequestRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRequest(row))
	}
	return items, nil
}

func (r *ApprovalRepository) ListActions(ctx context.Context, requestID string) ([]ports.ActionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ApprovalAction
	if err := db.
		Where("request_id = ?", requestID).
		Order("action_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query actions")
	}

	items := make([]ports.ActionRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.ActionRecord{
			ActionID:     row.ActionID,
			RequestID:    row.RequestID,
			ActionType:   approval.ActionType(row.ActionType),
			Actor:        row.Actor,
			Notes:        row.Notes,
			MetadataJSON: row.MetadataJSON,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *ApprovalRepository) CreateRequest(ctx context.Context, record ports.RequestRecord) (ports.RequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RequestRecord{}, err
	}

	row := model.ApprovalRequest{
		RequestID:                record.RequestID,
		RequestType:              string(record.RequestType),
		Priority:                 string(record.Priority),
		Status:                   string(record.Status),
		Title:                    record.Title,
		Description:              record.Description,
		RequestedBy:              record.RequestedBy,
		RequestedFor:             record.RequestedFor,
		ReviewedBy:               record.ReviewedBy,
		SiteID:                   record.SiteID,
		PostID:                   record.PostID,
		ShiftID:                  record.ShiftID,
		AssignmentID:             record.AssignmentID,
		TicketID:                 record.TicketID,
		RequestedAt:              record.RequestedAt,
		ExpiresAt:                record.ExpiresAt,
		ReviewedAt:               record.ReviewedAt,
		ResponseTimeMinutes:      record.ResponseTimeMinutes,
		ValidationFailureReason:  record.ValidationFailureReason,
		ValidationFailureDetails: record.ValidationFailureDetails,
		MetadataJSON:             record.MetadataJSON,
		AutoApproved:             record.AutoApproved,
		AutoApprovalRuleID:       record.AutoApprovalRuleID,
		ApprovalNotes:            record.ApprovalNotes,
		RejectionReason:          record.RejectionReason,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.RequestRecord{}, errs.Wrap(err, "insert request")
	}
	return mapRequest(row), nil
}

func (r *ApprovalRepository) MarkManuallyApproved(ctx context.Context, requestID string, reviewer string, reviewedAt time.Time, notes string, responseMinutes int) error {
	return r.updateRequest(ctx, requestID, map[string]any{
		"status":                string(approval.StatusManuallyApproved),
		"reviewed_by":           reviewer,
		"reviewed_at":           reviewedAt,
		"approval_notes":        notes,
		"response_time_minutes": responseMinutes,
	}, "mark request manually approved")
}

func (r *ApprovalRepository) MarkRejected(ctx context.Context, requestID string, reviewer string, reviewedAt time.Time, reason string, responseMinutes int) error {
	return r.updateRequest(ctx, requestID, map[string]any{
		"status":                string(approval.StatusRejected),
		"reviewed_by":           reviewer,
		"reviewed_at":           reviewedAt,
		"rejection_reason":      reason,
		"response_time_minutes": responseMinutes,
	}, "mark request rejected")
}

func (r *ApprovalRepository) MarkCancelled(ctx context.Context, requestID string, notes string) error {
	return r.updateRequest(ctx, requestID, map[string]any{
		"status":         string(approval.StatusCancelled),
		"approval_notes": notes,
	}, "mark request cancelled")
}

func (r *ApprovalRepository) MarkExpired(ctx context.Context, requestID string) error {
	return r.updateRequest(ctx, requestID, map[string]any{
		"status": string(approval.StatusExpired),
	}, "mark request expired")
}

func (r *ApprovalRepository) MarkAutoApproved(ctx context.Context, requestID string, ruleID string, reviewedAt time.Time) error {
	// reviewed_by stays null: auto-approval has no human reviewer.
	return r.updateRequest(ctx, requestID, map[string]any{
		"status":                string(approval.StatusAutoApproved),
		"auto_approved":         true,
		"auto_approval_rule_id": ruleID,
		"reviewed_at":           reviewedAt,
	}, "mark request auto-approved")
}

func (r *ApprovalRepository) AppendAction(ctx context.Context, input ports.ActionCreate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.ApprovalAction{
		RequestID:    input.RequestID,
		ActionType:   string(input.ActionType),
		Actor:        input.Actor,
		Notes:        input.Notes,
		MetadataJSON: input.MetadataJSON,
		CreatedAt:    input.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert action")
	}
	return nil
}

func (r *ApprovalRepository) updateRequest(ctx context.Context, requestID string, fields map[string]any, opName string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.ApprovalRequest{}).
		Where("request_id = ?", requestID).
		Updates(fields)
	if result.Error != nil {
		return errs.Wrap(result.Error, opName)
	}
	if result.RowsAffected == 0 {
		return ports.ErrRequestNotFound
	}
	return nil
}

func mapRequest(row model.ApprovalRequest) ports.RequestRecord {
	return ports.RequestRecord{
		RequestID:                row.RequestID,
		RequestType:              approval.RequestType(row.RequestType),
		Priority:                 approval.Priority(row.Priority),
		Status:                   approval.Status(row.Status),
		Title:                    row.Title,
		Description:              row.Description,
		RequestedBy:              row.RequestedBy,
		RequestedFor:             row.RequestedFor,
		ReviewedBy:               row.ReviewedBy,
		SiteID:                   row.SiteID,
		PostID:                   row.PostID,
		ShiftID:                  row.ShiftID,
		AssignmentID:             row.AssignmentID,
		TicketID:                 row.TicketID,
		RequestedAt:              row.RequestedAt,
		ExpiresAt:                row.ExpiresAt,
		ReviewedAt:               row.ReviewedAt,
		ResponseTimeMinutes:      row.ResponseTimeMinutes,
		ValidationFailureReason:  row.ValidationFailureReason,
		ValidationFailureDetails: row.ValidationFailureDetails,
		MetadataJSON:             row.MetadataJSON,
		AutoApproved:             row.AutoApproved,
		AutoApprovalRuleID:       row.AutoApprovalRuleID,
		ApprovalNotes:            row.ApprovalNotes,
		RejectionReason:          row.RejectionReason,
	}
}
