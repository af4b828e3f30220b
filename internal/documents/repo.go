package documents

import (
	"context"

	"github.com/suPer8Hu/kbchat/internal/models"
	"gorm.io/gorm"
)

// listColumns leaves the embedding out of list views.
var listColumns = []string{"id", "user_id", "name", "content", "file_type", "has_embedding", "created_at"}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ListByOwner returns the owner's documents, newest first.
func (r *Repo) ListByOwner(ctx context.Context, userID uint64) ([]models.Document, error) {
	var docs []models.Document
	if err := r.db.WithContext(ctx).
		Select(listColumns).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *Repo) CountByOwner(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("user_id = ?", userID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) Create(ctx context.Context, d *models.Document) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// Delete removes the document only when it belongs to userID. It reports
// false when nothing matched.
func (r *Repo) Delete(ctx context.Context, userID, id uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Document{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repo) Get(ctx context.Context, userID, id uint64) (*models.Document, error) {
	var d models.Document
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListWithEmbeddings returns the owner's documents that carry an embedding.
func (r *Repo) ListWithEmbeddings(ctx context.Context, userID uint64) ([]models.Document, error) {
	var docs []models.Document
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND has_embedding = ?", userID, true).
		Order("id ASC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateEmbedding writes the vector and drops any pending full text.
func (r *Repo) UpdateEmbedding(ctx context.Context, userID, id uint64, vector []float32) (bool, error) {
	var d models.Document
	d.SetVector(vector)
	res := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"embedding":       d.Embedding,
			"has_embedding":   d.HasEmbedding,
			"pending_content": "",
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
