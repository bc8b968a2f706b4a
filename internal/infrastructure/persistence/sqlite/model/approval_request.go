package model

import "time"

type ApprovalRequest struct {
	RequestID   string `gorm:"column:request_id;type:text;primaryKey"`
	RequestType string `gorm:"column:request_type;type:text;not null;index"`
	Priority    string `gorm:"column:priority;type:text;not null"`
	Status      string `gorm:"column:status;type:text;not null;index"`

	Title       string `gorm:"column:title;type:text;not null"`
	Description string `gorm:"column:description;type:text;not null"`

	RequestedBy  string  `gorm:"column:requested_by;type:text;not null;index"`
	RequestedFor string  `gorm:"column:requested_for;type:text;not null"`
	ReviewedBy   *string `gorm:"column:reviewed_by;type:text"`

	SiteID       *string `gorm:"column:site_id;type:text;index"`
	PostID       *string `gorm:"column:post_id;type:text"`
	ShiftID      *string `gorm:"column:shift_id;type:text"`
	AssignmentID *string `gorm:"column:assignment_id;type:text"`
	TicketID     *string `gorm:"column:ticket_id;type:text"`

	RequestedAt         time.Time  `gorm:"column:requested_at;not null"`
	ExpiresAt           time.Time  `gorm:"column:expires_at;not null;index"`
	ReviewedAt          *time.Time `gorm:"column:reviewed_at"`
	ResponseTimeMinutes *int       `gorm:"column:response_time_minutes"`

	ValidationFailureReason  string `gorm:"column:validation_failure_reason;type:text;not null"`
	ValidationFailureDetails string `gorm:"column:validation_failure_details;type:text;not null"`
	MetadataJSON             string `gorm:"column:metadata_json;type:text;not null"`

	AutoApproved       bool    `gorm:"column:auto_approved;not null;default:0"`
	AutoApprovalRuleID *string `gorm:"column:auto_approval_rule_id;type:text"`
	ApprovalNotes      string  `gorm:"column:approval_notes;type:text;not null"`
	RejectionReason    string  `gorm:"column:rejection_reason;type:text;not null"`
}

func (ApprovalRequest) TableName() string {
	return "approval_requests"
}
