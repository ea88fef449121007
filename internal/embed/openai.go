package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openAIDefaultURL   = "https://api.openai.com/v1"
	openAIDefaultModel = "text-embedding-3-small"
	openAIDefaultDims  = 1536
)

// OpenAI embeds text through the OpenAI embeddings endpoint, or any
// compatible server when BaseURL is overridden.
type OpenAI struct {
	model   string
	dims    int
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAI validates the config and returns an OpenAI provider.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedding provider requires an api key")
	}
	p := &OpenAI{
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	if p.model == "" {
		p.model = openAIDefaultModel
	}
	if p.dims <= 0 {
		p.dims = openAIDefaultDims
	}
	if p.baseURL == "" {
		p.baseURL = openAIDefaultURL
	}
	return p, nil
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Dimensions() int { return p.dims }

// Embed sends one batched request for all texts.
func (p *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]any{
		"model":      p.model,
		"input":      texts,
		"dimensions": p.dims,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embeddings endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embeddings endpoint returned %d: %s", resp.StatusCode, msg)
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != p.dims {
			return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(d.Embedding), p.dims)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
