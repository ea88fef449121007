package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	ollamaDefaultURL   = "http://localhost:11434"
	ollamaDefaultModel = "nomic-embed-text"
	ollamaDefaultDims  = 768
)

// Ollama embeds text through a local Ollama server, one request per text.
type Ollama struct {
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// NewOllama returns an Ollama provider with defaults filled in.
func NewOllama(cfg Config) (*Ollama, error) {
	p := &Ollama{
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	if p.model == "" {
		p.model = ollamaDefaultModel
	}
	if p.dims <= 0 {
		p.dims = ollamaDefaultDims
	}
	if p.baseURL == "" {
		p.baseURL = ollamaDefaultURL
	}
	return p, nil
}

func (p *Ollama) Name() string { return "ollama" }

func (p *Ollama) Dimensions() int { return p.dims }

// Embed requests each text separately; the Ollama embeddings endpoint
// takes a single prompt per call.
func (p *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (p *Ollama) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"model":  p.model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, msg)
	}

	var parsed struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Embedding) != p.dims {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(parsed.Embedding), p.dims)
	}
	return parsed.Embedding, nil
}
