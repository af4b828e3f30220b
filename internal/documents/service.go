package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/kbchat/internal/ai"
	"github.com/suPer8Hu/kbchat/internal/models"
	"github.com/suPer8Hu/kbchat/internal/telemetry"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrLimitReached      = errors.New("document limit reached")
	ErrTooLarge          = errors.New("document too large")
	ErrFileType          = errors.New("file type not allowed")
	ErrEmptyDocument     = errors.New("document name and content are required")
	ErrEmbeddingDeferred = errors.New("embedding unavailable")
)

const (
	DefaultMaxDocuments = 20
	DefaultMaxBytes     = 5 * 1024 * 1024
	DefaultPreviewChars = 200
	DefaultFileType     = "text/plain"
)

type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Queue schedules a later embedding attempt for a stored document.
type Queue interface {
	EnqueueEmbedding(ctx context.Context, userID, documentID uint64) error
}

type Options struct {
	MaxDocuments int
	MaxBytes     int
	// StoreFullContent keeps the whole text; otherwise only a preview of
	// PreviewChars characters is persisted. The embedding always covers the
	// full text.
	StoreFullContent bool
	PreviewChars     int
	// AllowedFileTypes restricts file_type; empty allows any.
	AllowedFileTypes []string
}

type Service struct {
	repo     *Repo
	embedder Embedder
	queue    Queue
	hook     telemetry.Hook
	opts     Options
}

func NewService(repo *Repo, embedder Embedder, queue Queue, hook telemetry.Hook, opts Options) *Service {
	if opts.MaxDocuments <= 0 {
		opts.MaxDocuments = DefaultMaxDocuments
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = DefaultPreviewChars
	}
	if hook == nil {
		hook = telemetry.Nop{}
	}
	return &Service{repo: repo, embedder: embedder, queue: queue, hook: hook, opts: opts}
}

type CreateInput struct {
	Name     string
	Content  string
	FileType string
}

// Create validates the limits, embeds the text and stores the document.
//
// The count check and the insert are separate statements: two concurrent
// uploads by the same user can both pass the check and end one above the cap.
func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (*models.Document, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Content == "" {
		return nil, ErrEmptyDocument
	}
	fileType := strings.TrimSpace(in.FileType)
	if fileType == "" {
		fileType = DefaultFileType
	}
	if !s.fileTypeAllowed(fileType) {
		return nil, fmt.Errorf("%w: %s", ErrFileType, fileType)
	}
	if len(in.Content) > s.opts.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(in.Content), s.opts.MaxBytes)
	}

	n, err := s.repo.CountByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if n >= int64(s.opts.MaxDocuments) {
		return nil, fmt.Errorf("%w: maximum %d documents", ErrLimitReached, s.opts.MaxDocuments)
	}

	doc := &models.Document{
		UserID:   userID,
		Name:     name,
		Content:  in.Content,
		FileType: fileType,
	}
	if !s.opts.StoreFullContent {
		doc.Content = ai.Truncate(in.Content, s.opts.PreviewChars)
	}
	if s.embedder != nil {
		doc.SetVector(s.embedder.Embed(ctx, embeddingText(name, in.Content)))
	}
	if !doc.HasEmbedding && !s.opts.StoreFullContent {
		// backfill must embed the full text, not the preview
		doc.PendingContent = in.Content
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	if !doc.HasEmbedding {
		s.hook.EmbeddingSkipped(ctx, userID, doc.ID, "embedding unavailable at upload")
		if s.queue != nil {
			if err := s.queue.EnqueueEmbedding(ctx, userID, doc.ID); err != nil {
				s.hook.DependencyFailed(ctx, "documents", "enqueue_embedding", err)
			}
		}
	}
	return doc, nil
}

// List returns the owner's documents newest first with content cut to a preview.
func (s *Service) List(ctx context.Context, userID uint64) ([]models.Document, error) {
	docs, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	for i := range docs {
		docs[i].Content = preview(docs[i].Content, s.opts.PreviewChars)
	}
	return docs, nil
}

// Delete removes a document owned by userID. A document owned by someone
// else is reported exactly like a missing one.
func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	ok, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// WithEmbeddings returns the retrieval candidates for userID.
func (s *Service) WithEmbeddings(ctx context.Context, userID uint64) ([]models.Document, error) {
	docs, err := s.repo.ListWithEmbeddings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	return docs, nil
}

// Reembed computes the embedding of a stored document that has none.
// It returns ErrEmbeddingDeferred when the embedding API still fails.
func (s *Service) Reembed(ctx context.Context, userID, id uint64) error {
	doc, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get document: %w", err)
	}
	if doc.HasEmbedding {
		return nil
	}
	if s.embedder == nil {
		return ErrEmbeddingDeferred
	}

	v := s.embedder.Embed(ctx, embeddingText(doc.Name, doc.EmbeddingSource()))
	if len(v) == 0 {
		return ErrEmbeddingDeferred
	}
	ok, err := s.repo.UpdateEmbedding(ctx, userID, id, v)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) fileTypeAllowed(ft string) bool {
	if len(s.opts.AllowedFileTypes) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowedFileTypes {
		if strings.EqualFold(allowed, ft) {
			return true
		}
	}
	return false
}

func embeddingText(name, content string) string {
	return name + "\n\n" + content
}

func preview(content string, n int) string {
	cut := ai.Truncate(content, n)
	if len(cut) < len(content) {
		return cut + "..."
	}
	return cut
}
