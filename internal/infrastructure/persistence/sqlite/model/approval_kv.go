package model

import "time"

type ApprovalKV struct {
	Key       string    `gorm:"column:key;type:text;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (ApprovalKV) TableName() string {
	return "approval_kv"
}
