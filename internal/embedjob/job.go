// Package embedjob processes deferred embedding work: documents stored while
// the embedding API was unavailable get their vector computed later.
package embedjob

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/suPer8Hu/kbchat/internal/documents"
	"github.com/suPer8Hu/kbchat/internal/telemetry"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 30 * time.Second
	DefaultClaimTTL    = time.Hour
)

type Message struct {
	JobID      string `json:"job_id"`
	UserID     uint64 `json:"user_id"`
	DocumentID uint64 `json:"document_id"`
	Attempt    int    `json:"attempt"`
}

// Deduper tracks which documents already have a pending job.
type Deduper interface {
	ClaimEmbeddingJob(ctx context.Context, documentID uint64, ttl time.Duration) (bool, error)
	ReleaseEmbeddingJob(ctx context.Context, documentID uint64) error
}

type Reembedder interface {
	Reembed(ctx context.Context, userID, id uint64) error
}

type Outcome int

const (
	// Done acknowledges the message.
	Done Outcome = iota
	// Retry schedules the message again with Attempt incremented.
	Retry
	// Drop rejects the message to the dead-letter queue.
	Drop
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Retry:
		return "retry"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

type Processor struct {
	docs        Reembedder
	dedupe      Deduper
	hook        telemetry.Hook
	log         *slog.Logger
	MaxAttempts int
}

func NewProcessor(docs Reembedder, dedupe Deduper, hook telemetry.Hook, log *slog.Logger) *Processor {
	if hook == nil {
		hook = telemetry.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Processor{docs: docs, dedupe: dedupe, hook: hook, log: log, MaxAttempts: DefaultMaxAttempts}
}

// Handle decodes one delivery body and runs the backfill for it.
func (p *Processor) Handle(ctx context.Context, body []byte) (Message, Outcome) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil || m.DocumentID == 0 || m.UserID == 0 {
		p.log.WarnContext(ctx, "bad embedding job", "error", err, "body_len", len(body))
		return m, Drop
	}

	start := time.Now()
	err := p.docs.Reembed(ctx, m.UserID, m.DocumentID)
	switch {
	case err == nil:
		p.log.InfoContext(ctx, "document embedded",
			"job_id", m.JobID, "document_id", m.DocumentID, "attempt", m.Attempt, "cost", time.Since(start))
		p.release(ctx, m)
		return m, Done

	case errors.Is(err, documents.ErrNotFound):
		// deleted before the job ran
		p.release(ctx, m)
		return m, Done
	}

	p.hook.DependencyFailed(ctx, "embedjob", "reembed", err)
	if m.Attempt+1 >= p.MaxAttempts {
		p.log.WarnContext(ctx, "embedding job exhausted",
			"job_id", m.JobID, "document_id", m.DocumentID, "attempts", m.Attempt+1, "error", err)
		p.release(ctx, m)
		return m, Drop
	}
	return m, Retry
}

func (p *Processor) release(ctx context.Context, m Message) {
	if p.dedupe == nil {
		return
	}
	if err := p.dedupe.ReleaseEmbeddingJob(ctx, m.DocumentID); err != nil {
		p.hook.DependencyFailed(ctx, "embedjob", "release", err)
	}
}
