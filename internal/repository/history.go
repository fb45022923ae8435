package repository

import (
	"time"

	"github.com/nclack/mirror/internal/db"
	"github.com/nclack/mirror/internal/model"
)

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) Save(result model.TransferResult) error {
	errMsg := ""
	if result.Err != nil {
		errMsg = result.Err.Error()
	}

	history := model.History{
		JobID:      result.Job.ID,
		Outcome:    result.Job.State,
		SrcPath:    result.Job.Src,
		DstPath:    result.Job.Dst,
		Copies:     result.Job.Copies,
		ErrMsg:     errMsg,
		DurationMS: result.Duration.Milliseconds(),
		FinishedAt: time.Now(),
	}

	return db.DB.Create(&history).Error
}

type Stats struct {
	Total      int64 `json:"total"`
	Matched    int64 `json:"matched"`
	Mismatched int64 `json:"mismatched"`
	Failed     int64 `json:"failed"`
}

func (r *HistoryRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.History{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	counts := map[model.TransferState]*int64{
		model.StateMatched:    &stats.Matched,
		model.StateMismatched: &stats.Mismatched,
		model.StateFailed:     &stats.Failed,
	}
	for outcome, dst := range counts {
		if err := db.DB.Model(&model.History{}).
			Where("outcome = ?", outcome).
			Count(dst).Error; err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func (r *HistoryRepository) GetRecent(limit int) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Order("finished_at desc").
		Order("id desc").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}

// GetUnresolved returns mismatched and failed transfers, newest first.
func (r *HistoryRepository) GetUnresolved() ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Where("outcome IN ?", []model.TransferState{model.StateMismatched, model.StateFailed}).
		Order("finished_at desc").
		Find(&histories)

	return histories, result.Error
}
