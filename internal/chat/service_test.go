package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/kbchat/internal/ai"
	"github.com/suPer8Hu/kbchat/internal/documents"
	"github.com/suPer8Hu/kbchat/internal/models"
	"github.com/suPer8Hu/kbchat/internal/rag"
	"gorm.io/gorm"
)

type recordingProvider struct {
	last  []ai.Message
	reply string
	err   error
	calls int
}

func (p *recordingProvider) Chat(_ context.Context, messages []ai.Message) (string, error) {
	p.calls++
	// copy to avoid mutations
	p.last = append([]ai.Message(nil), messages...)
	return p.reply, p.err
}

// mapEmbedder answers by exact text; unknown text has no embedding.
type mapEmbedder map[string][]float32

func (m mapEmbedder) Embed(_ context.Context, text string) []float32 {
	return m[text]
}

type recordingHook struct {
	degraded []string
	failed   []string
}

func (h *recordingHook) DependencyFailed(_ context.Context, component, op string, _ error) {
	h.failed = append(h.failed, component+"."+op)
}

func (h *recordingHook) RetrievalDegraded(_ context.Context, _ uint64, reason string) {
	h.degraded = append(h.degraded, reason)
}

func (h *recordingHook) EmbeddingSkipped(context.Context, uint64, uint64, string) {}

type failingRetriever struct{}

func (failingRetriever) WithEmbeddings(context.Context, uint64) ([]models.Document, error) {
	return nil, errors.New("db gone")
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Document{}))
	return db
}

func seed(t *testing.T, db *gorm.DB, userID uint64, name, content string, v []float32) *models.Document {
	t.Helper()
	d := &models.Document{UserID: userID, Name: name, Content: content, FileType: "text/plain"}
	d.SetVector(v)
	require.NoError(t, db.Create(d).Error)
	return d
}

func newTestService(t *testing.T, emb Embedder, prov *recordingProvider, hook *recordingHook, opts Options) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	docs := documents.NewService(documents.NewRepo(db), nil, nil, nil, documents.Options{StoreFullContent: true})
	return NewService(emb, docs, prov, hook, opts), db
}

func TestConverse_NoDocumentsAnswersFromGeneralKnowledge(t *testing.T) {
	prov := &recordingProvider{reply: "Paris."}
	svc, _ := newTestService(t, mapEmbedder{}, prov, &recordingHook{}, Options{Threshold: rag.Threshold(0.5), Model: "gpt-4o-mini"})

	reply, err := svc.Converse(context.Background(), 1, "What is the capital of France?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Paris.", reply.Answer)
	assert.Equal(t, 0, reply.DocumentsUsed)
	assert.Empty(t, reply.Sources)
	assert.Equal(t, "gpt-4o-mini", reply.Model)

	require.Len(t, prov.last, 2)
	assert.Equal(t, ai.RoleSystem, prov.last[0].Role)
	assert.Contains(t, prov.last[0].Content, "No documents in the user's knowledge base matched")
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "What is the capital of France?"}, prov.last[1])
}

func TestConverse_UsesMatchingDocuments(t *testing.T) {
	const question = "Where am I staying in Paris?"
	emb := mapEmbedder{question: {1, 0}}
	prov := &recordingProvider{reply: "At Hotel Lumiere."}
	svc, db := newTestService(t, emb, prov, &recordingHook{}, Options{Threshold: rag.Threshold(0.5)})

	trip := seed(t, db, 1, "Trip Notes", "Hotel Lumiere, 3 nights", []float32{0.9, 0.1})
	seed(t, db, 1, "Recipes", "Pasta with garlic", []float32{0, 1})
	seed(t, db, 2, "Someone else", "Hotel Other", []float32{1, 0})

	reply, err := svc.Converse(context.Background(), 1, question, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, reply.DocumentsUsed)
	assert.Equal(t, []string{"Trip Notes"}, reply.Sources)
	require.Len(t, reply.References, 1)
	assert.Equal(t, trip.ID, reply.References[0].ID)
	assert.Greater(t, reply.References[0].Relevance, 0.9)

	system := prov.last[0].Content
	assert.Contains(t, system, "Document: Trip Notes\nHotel Lumiere, 3 nights")
	assert.NotContains(t, system, "Recipes")
	assert.NotContains(t, system, "Hotel Other")
}

func TestConverse_TopKOrdersByScore(t *testing.T) {
	emb := mapEmbedder{"q": {1, 0}}
	prov := &recordingProvider{reply: "ok"}
	svc, db := newTestService(t, emb, prov, &recordingHook{}, Options{TopK: 2})

	seed(t, db, 1, "far", "a", []float32{0, 1})
	seed(t, db, 1, "close", "b", []float32{1, 0.1})
	seed(t, db, 1, "middle", "c", []float32{1, 1})

	reply, err := svc.Converse(context.Background(), 1, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"close", "middle"}, reply.Sources)
}

func TestConverse_KeepsLastTenHistoryTurns(t *testing.T) {
	prov := &recordingProvider{reply: "ok"}
	svc, _ := newTestService(t, mapEmbedder{}, prov, &recordingHook{}, Options{})

	history := make([]ai.Message, 0, 14)
	for i := 0; i < 14; i++ {
		role := ai.RoleUser
		if i%2 == 1 {
			role = ai.RoleAssistant
		}
		history = append(history, ai.Message{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	_, err := svc.Converse(context.Background(), 1, "next", history)
	require.NoError(t, err)

	require.Len(t, prov.last, 12)
	assert.Equal(t, "turn 4", prov.last[1].Content)
	assert.Equal(t, "turn 13", prov.last[10].Content)
	assert.Equal(t, "next", prov.last[11].Content)
}

func TestConverse_EmbeddingFailureDegrades(t *testing.T) {
	hook := &recordingHook{}
	prov := &recordingProvider{reply: "general answer"}
	svc, db := newTestService(t, mapEmbedder{}, prov, hook, Options{})
	seed(t, db, 1, "Trip Notes", "Hotel", []float32{1, 0})

	reply, err := svc.Converse(context.Background(), 1, "unknown text", nil)
	require.NoError(t, err)

	assert.Equal(t, "general answer", reply.Answer)
	assert.Equal(t, 0, reply.DocumentsUsed)
	assert.Len(t, hook.degraded, 1)
	assert.True(t, strings.HasPrefix(prov.last[0].Content, "You are a helpful AI assistant for a personal knowledge base."))
}

func TestConverse_ProviderErrorIsReturned(t *testing.T) {
	hook := &recordingHook{}
	prov := &recordingProvider{err: &ai.APIError{Provider: "openai", Status: 429, Body: "rate limited"}}
	svc, _ := newTestService(t, mapEmbedder{}, prov, hook, Options{})

	_, err := svc.Converse(context.Background(), 1, "hi", nil)
	require.ErrorIs(t, err, ErrCompletion)

	var apiErr *ai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Status)
	assert.Equal(t, 1, prov.calls, "no retry")
	assert.Equal(t, []string{"chat.complete"}, hook.failed)
}

func TestConverse_StorageErrorAborts(t *testing.T) {
	prov := &recordingProvider{reply: "ok"}
	svc := NewService(mapEmbedder{}, failingRetriever{}, prov, &recordingHook{}, Options{})

	_, err := svc.Converse(context.Background(), 1, "hi", nil)
	require.Error(t, err)
	assert.Zero(t, prov.calls)
}

func TestConverse_EmptyMessage(t *testing.T) {
	prov := &recordingProvider{}
	svc := NewService(mapEmbedder{}, failingRetriever{}, prov, nil, Options{})

	for _, msg := range []string{"", "   ", "\n\t "} {
		_, err := svc.Converse(context.Background(), 1, msg, nil)
		assert.ErrorIs(t, err, ErrEmptyMessage, "%q", msg)
	}
	assert.Zero(t, prov.calls)
}

func TestSystemPrompt_TruncatesLongDocuments(t *testing.T) {
	p := systemPrompt([]contextDoc{{Name: "big", Content: strings.Repeat("x", 50)}}, 10)
	assert.Contains(t, p, "Document: big\n"+strings.Repeat("x", 10)+"\n")
	assert.NotContains(t, p, strings.Repeat("x", 11))
}
