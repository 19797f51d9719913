// Package adapters provides repository implementations for the classification feature.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"photo_classifier/internal/feature/classification/domain/entity"
)

const (
	// DefaultHistoryLimit is used when a non-positive limit is requested.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps a single history query.
	MaxHistoryLimit = 200
)

// ClassificationModel is the gorm row for a successful classification.
type ClassificationModel struct {
	ID             uint      `gorm:"primaryKey"`
	FileName       string    `gorm:"size:64;not null"`
	ModelDigest    string    `gorm:"size:64;not null;index"`
	PredictedIndex int       `gorm:"not null"`
	Result         string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

func (ClassificationModel) TableName() string {
	return "classifications"
}

type historyGorm struct {
	db *gorm.DB
}

// NewHistoryRepository creates a gorm-backed classification history.
func NewHistoryRepository(db *gorm.DB) *historyGorm {
	return &historyGorm{db: db}
}

func toModel(r *entity.ClassificationRecord) (*ClassificationModel, error) {
	b, err := json.Marshal(r.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &ClassificationModel{
		FileName:       r.FileName,
		ModelDigest:    r.ModelDigest,
		PredictedIndex: r.PredictedIndex,
		Result:         string(b),
		CreatedAt:      r.CreatedAt,
	}, nil
}

// Save persists a record and fills in its ID.
func (h *historyGorm) Save(ctx context.Context, r *entity.ClassificationRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m, err := toModel(r)
	if err != nil {
		return err
	}
	if err := h.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	r.ID = m.ID
	return nil
}

// Recent returns the newest records first.
func (h *historyGorm) Recent(ctx context.Context, limit int) ([]entity.ClassificationRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var rows []ClassificationModel
	if err := h.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]entity.ClassificationRecord, 0, len(rows))
	for _, m := range rows {
		var result []string
		if err := json.Unmarshal([]byte(m.Result), &result); err != nil {
			return nil, fmt.Errorf("record %d has a corrupt result: %w", m.ID, err)
		}
		out = append(out, entity.ClassificationRecord{
			ID:             m.ID,
			FileName:       m.FileName,
			ModelDigest:    m.ModelDigest,
			PredictedIndex: m.PredictedIndex,
			Result:         result,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, nil
}
