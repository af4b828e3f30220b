package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document belongs to exactly one user. Embedding is nil when the embedding
// API was unavailable at upload time; HasEmbedding mirrors that for queries.
// PendingContent holds the full text of a preview-only document until its
// embedding is written.
type Document struct {
	ID             uint64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint64                       `gorm:"index:idx_documents_user_created,priority:1;not null" json:"-"`
	Name           string                       `gorm:"type:varchar(255);not null" json:"name"`
	Content        string                       `gorm:"type:text;not null" json:"content"`
	FileType       string                       `gorm:"type:varchar(100);not null;default:'text/plain'" json:"file_type"`
	Embedding      datatypes.JSONSlice[float32] `json:"-"`
	HasEmbedding   bool                         `gorm:"index;not null;default:false" json:"has_embedding"`
	PendingContent string                       `gorm:"type:text" json:"-"`
	CreatedAt      time.Time                    `gorm:"index:idx_documents_user_created,priority:2" json:"created_at"`
}

func (Document) TableName() string { return "documents" }

// EmbeddingSource is the text the embedding is computed from.
func (d *Document) EmbeddingSource() string {
	if d.PendingContent != "" {
		return d.PendingContent
	}
	return d.Content
}

// Vector returns the stored embedding as a plain slice.
func (d *Document) Vector() []float32 {
	if !d.HasEmbedding || len(d.Embedding) == 0 {
		return nil
	}
	return []float32(d.Embedding)
}

func (d *Document) SetVector(v []float32) {
	if len(v) == 0 {
		d.Embedding = nil
		d.HasEmbedding = false
		return
	}
	d.Embedding = datatypes.NewJSONSlice(v)
	d.HasEmbedding = true
}
