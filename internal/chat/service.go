package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/kbchat/internal/ai"
	"github.com/suPer8Hu/kbchat/internal/models"
	"github.com/suPer8Hu/kbchat/internal/rag"
	"github.com/suPer8Hu/kbchat/internal/telemetry"
)

const (
	DefaultHistoryLimit    = 10
	DefaultMaxContextChars = 4000
)

var (
	// ErrEmptyMessage is returned before any outbound call.
	ErrEmptyMessage = errors.New("message is required")
	// ErrCompletion wraps every chat-completion failure.
	ErrCompletion = errors.New("chat completion failed")
)

type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Retriever supplies the user's documents that carry an embedding.
type Retriever interface {
	WithEmbeddings(ctx context.Context, userID uint64) ([]models.Document, error)
}

type Options struct {
	TopK int
	// Threshold is the similarity floor; nil keeps every candidate.
	Threshold       *float64
	HistoryLimit    int
	MaxContextChars int
	Model           string
}

type Reference struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name"`
	Relevance float64 `json:"relevance"`
}

type Reply struct {
	Answer        string
	Sources       []string
	References    []Reference
	DocumentsUsed int
	Model         string
}

// Service answers a message using the user's most similar documents as
// context. It keeps no state between calls.
type Service struct {
	embedder  Embedder
	retriever Retriever
	provider  ai.Provider
	hook      telemetry.Hook
	opts      Options
}

func NewService(embedder Embedder, retriever Retriever, provider ai.Provider, hook telemetry.Hook, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = rag.DefaultTopK
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultMaxContextChars
	}
	if hook == nil {
		hook = telemetry.Nop{}
	}
	return &Service{embedder: embedder, retriever: retriever, provider: provider, hook: hook, opts: opts}
}

func (s *Service) Converse(ctx context.Context, userID uint64, message string, history []ai.Message) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	found, err := s.retrieve(ctx, userID, message)
	if err != nil {
		return nil, err
	}

	docs := make([]contextDoc, 0, len(found))
	reply := &Reply{
		Sources:    make([]string, 0, len(found)),
		References: make([]Reference, 0, len(found)),
		Model:      s.opts.Model,
	}
	for _, f := range found {
		docs = append(docs, contextDoc{Name: f.doc.Name, Content: f.doc.Content})
		reply.Sources = append(reply.Sources, f.doc.Name)
		reply.References = append(reply.References, Reference{ID: f.doc.ID, Name: f.doc.Name, Relevance: f.score})
	}
	reply.DocumentsUsed = len(found)

	msgs := buildMessages(systemPrompt(docs, s.opts.MaxContextChars), history, s.opts.HistoryLimit, message)

	answer, err := s.provider.Chat(ctx, msgs)
	if err != nil {
		s.hook.DependencyFailed(ctx, "chat", "complete", err)
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	reply.Answer = answer
	return reply, nil
}

type scoredDoc struct {
	doc   *models.Document
	score float64
}

// retrieve ranks the user's documents against message. A missing query
// embedding degrades to no documents; a storage failure is returned.
func (s *Service) retrieve(ctx context.Context, userID uint64, message string) ([]scoredDoc, error) {
	docs, err := s.retriever.WithEmbeddings(ctx, userID)
	if err != nil {
		s.hook.DependencyFailed(ctx, "documents", "with_embeddings", err)
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var query []float32
	if s.embedder != nil {
		query = s.embedder.Embed(ctx, message)
	}
	if len(query) == 0 {
		s.hook.RetrievalDegraded(ctx, userID, "no query embedding")
		return nil, nil
	}

	candidates := make([]rag.Candidate, 0, len(docs))
	byID := make(map[uint64]*models.Document, len(docs))
	for i := range docs {
		candidates = append(candidates, rag.Candidate{ID: docs[i].ID, Vector: docs[i].Vector()})
		byID[docs[i].ID] = &docs[i]
	}

	ranked := rag.Rank(query, candidates, rag.Options{K: s.opts.TopK, Threshold: s.opts.Threshold})
	out := make([]scoredDoc, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, scoredDoc{doc: byID[r.ID], score: r.Score})
	}
	return out, nil
}
