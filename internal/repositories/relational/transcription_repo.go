package relational

import (
	"context"

	"gorm.io/gorm"

	"github.com/yoockh/scribe/internal/models"
)

type TranscriptionRepository interface {
	Insert(ctx context.Context, t *models.Transcription) error
	// ListByUser returns newest first; limit <= 0 means no limit.
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Transcription, error)
	// GetByIDForUser filters on the owner, so a foreign id is utils.ErrNotFound.
	GetByIDForUser(ctx context.Context, id, userID uint) (*models.Transcription, error)
	ExistsByFilenameForUser(ctx context.Context, userID uint, filename string) (bool, error)
}

type transcriptionRepo struct {
	db *gorm.DB
}

func NewTranscriptionRepo(db *gorm.DB) TranscriptionRepository {
	return &transcriptionRepo{db: db}
}

func (r *transcriptionRepo) Insert(ctx context.Context, t *models.Transcription) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *transcriptionRepo) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Transcription, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	rows := []models.Transcription{}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r *transcriptionRepo) GetByIDForUser(ctx context.Context, id, userID uint) (*models.Transcription, error) {
	var row models.Transcription
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

func (r *transcriptionRepo) ExistsByFilenameForUser(ctx context.Context, userID uint, filename string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transcription{}).
		Where("user_id = ? AND filename = ?", userID, filename).
		Count(&count).Error
	return count > 0, translate(err)
}
