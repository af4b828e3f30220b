// Package telemetry defines the observability hook that business components
// report to. Components call the hook at fixed points (a dependency failed,
// retrieval degraded, an embedding was skipped) instead of logging inline.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Hook interface {
	// DependencyFailed reports a failed call to storage or an external API.
	DependencyFailed(ctx context.Context, component, op string, err error)
	// RetrievalDegraded reports that a chat request continued without
	// document context.
	RetrievalDegraded(ctx context.Context, userID uint64, reason string)
	// EmbeddingSkipped reports that a document was stored without an embedding.
	EmbeddingSkipped(ctx context.Context, userID, documentID uint64, reason string)
}

type requestIDKey struct{}

// WithRequestID attaches the request id so hook records can be correlated.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// SlogHook writes hook events as structured log records.
type SlogHook struct {
	log *slog.Logger
}

func NewSlogHook(l *slog.Logger) *SlogHook {
	if l == nil {
		l = slog.Default()
	}
	return &SlogHook{log: l}
}

func (h *SlogHook) DependencyFailed(ctx context.Context, component, op string, err error) {
	h.log.WarnContext(ctx, "dependency failed",
		"component", component, "op", op, "error", err, "request_id", RequestID(ctx))
}

func (h *SlogHook) RetrievalDegraded(ctx context.Context, userID uint64, reason string) {
	h.log.InfoContext(ctx, "retrieval degraded",
		"user_id", userID, "reason", reason, "request_id", RequestID(ctx))
}

func (h *SlogHook) EmbeddingSkipped(ctx context.Context, userID, documentID uint64, reason string) {
	h.log.InfoContext(ctx, "embedding skipped",
		"user_id", userID, "document_id", documentID, "reason", reason, "request_id", RequestID(ctx))
}

// Nop discards every event.
type Nop struct{}

func (Nop) DependencyFailed(context.Context, string, string, error)   {}
func (Nop) RetrievalDegraded(context.Context, uint64, string)         {}
func (Nop) EmbeddingSkipped(context.Context, uint64, uint64, string) {}

// NewLogger builds the process logger from LOG_LEVEL / LOG_FORMAT values.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
