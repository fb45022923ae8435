package model

import (
	"time"

	"gorm.io/gorm"
)

type History struct {
	gorm.Model
	JobID      string        `gorm:"index;not null" json:"job_id"`
	Outcome    TransferState `gorm:"not null" json:"outcome"`
	SrcPath    string        `gorm:"not null" json:"src_path"`
	DstPath    string        `gorm:"not null" json:"dst_path"`
	Copies     int           `json:"copies"`
	ErrMsg     string        `json:"err_msg,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	FinishedAt time.Time     `gorm:"not null" json:"finished_at"`
}
