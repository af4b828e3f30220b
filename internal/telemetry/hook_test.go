package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogHook_DependencyFailed(t *testing.T) {
	var buf bytes.Buffer
	hook := NewSlogHook(NewLogger(&buf, "info", "json"))

	ctx := WithRequestID(context.Background(), "req-1")
	hook.DependencyFailed(ctx, "embedder", "embed", errors.New("status 503"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "dependency failed", rec["msg"])
	assert.Equal(t, "embedder", rec["component"])
	assert.Equal(t, "status 503", rec["error"])
	assert.Equal(t, "req-1", rec["request_id"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	hook := NewSlogHook(NewLogger(&buf, "warn", "text"))

	hook.RetrievalDegraded(context.Background(), 7, "no embedding")
	assert.Zero(t, buf.Len(), "info records are below warn")

	hook.DependencyFailed(context.Background(), "chat", "complete", errors.New("timeout"))
	assert.Contains(t, buf.String(), "component=chat")
}
