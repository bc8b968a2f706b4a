package model

import "time"

// ApprovalAction rows are append-only: inserted once, never updated or
// deleted. They are the history; the request row is only the current state.
type ApprovalAction struct {
	ActionID     uint64    `gorm:"column:action_id;primaryKey;autoIncrement"`
	RequestID    string    `gorm:"column:request_id;type:text;not null;index"`
	ActionType   string    `gorm:"column:action_type;type:text;not null"`
	Actor        *string   `gorm:"column:actor;type:text"`
	Notes        string    `gorm:"column:notes;type:text;not null"`
	MetadataJSON string    `gorm:"column:metadata_json;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (ApprovalAction) TableName() string {
	return "approval_actions"
}
