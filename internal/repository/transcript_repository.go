package repository

import (
	"context"
	"time"

	"nft-sage-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TranscriptFilter 是审计记录的查询条件，零值字段不参与过滤。
type TranscriptFilter struct {
	UserID   string
	Platform string
	Start    time.Time
	End      time.Time
	Limit    int
}

// TranscriptRepository 接口定义了问答审计记录的持久化操作。
type TranscriptRepository interface {
	Create(ctx context.Context, t *model.Transcript) error
	List(ctx context.Context, f TranscriptFilter) ([]model.Transcript, error)
}

type transcriptRepository struct {
	db *gorm.DB
}

// NewTranscriptRepository 创建一个新的 TranscriptRepository 实例。
func NewTranscriptRepository(db *gorm.DB) TranscriptRepository {
	return &transcriptRepository{db: db}
}

// Create 写入一条记录。相同 InteractionID 的重复写入被忽略，因此 Kafka 重放是幂等的。
func (r *transcriptRepository) Create(ctx context.Context, t *model.Transcript) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "interaction_id"}}, DoNothing: true}).
		Create(t).Error
}

// List 按时间倒序返回满足条件的记录。
func (r *transcriptRepository) List(ctx context.Context, f TranscriptFilter) ([]model.Transcript, error) {
	q := r.db.WithContext(ctx).Model(&model.Transcript{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Platform != "" {
		q = q.Where("platform = ?", f.Platform)
	}
	if !f.Start.IsZero() {
		q = q.Where("created_at >= ?", f.Start)
	}
	if !f.End.IsZero() {
		q = q.Where("created_at <= ?", f.End)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var out []model.Transcript
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}
