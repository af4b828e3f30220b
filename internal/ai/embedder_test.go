package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	failures []string
}

func (h *recordingHook) DependencyFailed(_ context.Context, component, op string, err error) {
	h.failures = append(h.failures, component+"/"+op+": "+err.Error())
}
func (h *recordingHook) RetrievalDegraded(context.Context, uint64, string)         {}
func (h *recordingHook) EmbeddingSkipped(context.Context, uint64, uint64, string) {}

func TestEmbedder_Embed(t *testing.T) {
	var got embeddingReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	e := NewEmbedder(EmbedderConfig{BaseURL: srv.URL + "/v1", APIKey: "k"})
	v := e.Embed(context.Background(), "hello")

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, "text-embedding-3-small", got.Model)
	assert.Equal(t, "hello", got.Input)
}

func TestEmbedder_TruncatesInput(t *testing.T) {
	var got embeddingReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	}))
	defer srv.Close()

	e := NewEmbedder(EmbedderConfig{BaseURL: srv.URL, APIKey: "k"})
	e.Embed(context.Background(), strings.Repeat("ж", 9000))

	assert.Equal(t, 8000, utf8.RuneCountInString(got.Input))
}

func TestEmbedder_MissingKeyMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	hook := &recordingHook{}
	e := NewEmbedder(EmbedderConfig{BaseURL: srv.URL, Hook: hook})

	assert.Nil(t, e.Embed(context.Background(), "hello"))
	assert.Zero(t, atomic.LoadInt32(&calls))
	require.Len(t, hook.failures, 1)
	assert.Contains(t, hook.failures[0], "api key not configured")
}

func TestEmbedder_FailuresYieldNil(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"empty data": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
		"timeout": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			hook := &recordingHook{}
			e := NewEmbedder(EmbedderConfig{
				BaseURL: srv.URL,
				APIKey:  "k",
				Client:  &http.Client{Timeout: 50 * time.Millisecond},
				Hook:    hook,
			})

			assert.Nil(t, e.Embed(context.Background(), "hello"))
			assert.Len(t, hook.failures, 1)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "пр", Truncate("привет", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
