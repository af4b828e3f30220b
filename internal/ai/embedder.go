package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/kbchat/internal/telemetry"
)

const DefaultEmbeddingMaxChars = 8000

// Embedder turns text into a vector through an OpenAI-compatible
// /embeddings endpoint. It never fails loudly: any problem yields a nil
// vector and a hook event.
type Embedder struct {
	BaseURL  string
	APIKey   string
	Model    string
	MaxChars int
	Client   *http.Client
	Hook     telemetry.Hook
}

type EmbedderConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	MaxChars int
	Client   *http.Client
	Hook     telemetry.Hook
}

func NewEmbedder(cfg EmbedderConfig) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultEmbeddingMaxChars
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Hook == nil {
		cfg.Hook = telemetry.Nop{}
	}
	return &Embedder{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		MaxChars: cfg.MaxChars,
		Client:   cfg.Client,
		Hook:     cfg.Hook,
	}
}

type embeddingReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding of text, or nil when none could be produced.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	v, err := e.embed(ctx, text)
	if err != nil {
		e.Hook.DependencyFailed(ctx, "embedder", "embed", err)
		return nil
	}
	return v
}

func (e *Embedder) embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(e.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	b, err := json.Marshal(embeddingReq{Model: e.Model, Input: Truncate(text, e.MaxChars)})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/embeddings", strings.TrimRight(e.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("embeddings", resp)
	}

	var decoded embeddingResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return decoded.Data[0].Embedding, nil
}

// Truncate cuts s to at most max characters (runes, not bytes).
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
