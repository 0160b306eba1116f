// Package gemini implements the generator and embedder collaborators on the
// Gemini REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Config selects models and credentials.
type Config struct {
	APIKey         string
	ExtractModel   string
	EmbeddingModel string
	// BaseURL overrides the API endpoint (tests).
	BaseURL string
}

// Client talks to the Gemini REST API. It satisfies both catalog.Generator
// and catalog.Embedder.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type embedRequest struct {
	Content              content `json:"content"`
	TaskType             string  `json:"taskType,omitempty"`
	OutputDimensionality int     `json:"outputDimensionality,omitempty"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// GenerateText runs a plain text completion and returns the first candidate.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}
	var resp generateResponse
	if err := c.post(ctx, c.cfg.ExtractModel, "generateContent", req, &resp); err != nil {
		return "", err
	}
	return firstCandidateText(resp)
}

// GenerateStructured runs a schema-constrained completion and decodes the
// returned JSON into out.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema map[string]any, out any) error {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	}
	var resp generateResponse
	if err := c.post(ctx, c.cfg.ExtractModel, "generateContent", req, &resp); err != nil {
		return err
	}
	text, err := firstCandidateText(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	return nil
}

// Embed produces an L2-normalized embedding of the requested dimensionality.
func (c *Client) Embed(ctx context.Context, text string, task catalog.EmbeddingTask, dimensionality int) ([]float32, error) {
	req := embedRequest{
		Content:              content{Parts: []part{{Text: text}}},
		TaskType:             string(task),
		OutputDimensionality: dimensionality,
	}
	var resp embedResponse
	if err := c.post(ctx, c.cfg.EmbeddingModel, "embedContent", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return Normalize(resp.Embedding.Values), nil
}

// Normalize scales the vector to unit L2 norm. A zero vector is returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func (c *Client) post(ctx context.Context, model, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	url := fmt.Sprintf("%s/models/%s:%s", c.cfg.BaseURL, model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func firstCandidateText(resp generateResponse) (string, error) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in generation response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
