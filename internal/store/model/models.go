package model

import (
	"time"

	"gorm.io/datatypes"
)

// CheckRecordModel is the persisted outcome of one availability check.
type CheckRecordModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	CheckedAt  time.Time `gorm:"index"`
	Trigger    string    `gorm:"size:16;index"`
	Available  bool
	Notified   bool
	StatusCode int
	Err        string
	Detail     datatypes.JSON
}

func (CheckRecordModel) TableName() string { return "check_records" }
