// Package llm wraps the Gemini completion and embedding APIs behind the
// narrow contract the pipeline needs: JSON-mode generation (response MIME
// type application/json) with transport errors distinguished from schema
// errors, and batch
// sentence embedding, built around a functional-options client
// constructor.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrLLMTransport covers network/auth/rate-limit failures talking to the
// completion or embedding endpoint.
var ErrLLMTransport = errors.New("llm: transport error")

// ErrLLMSchema covers a completion or embedding response that comes back
// without content. Whether a completion is valid JSON of the expected
// shape is checked by the calling stage, not here.
var ErrLLMSchema = errors.New("llm: schema error")

// Client wraps a genai.Client configured with the pipeline's default
// completion and embedding model names.
type Client struct {
	genai       *genai.Client
	modelName   string
	embedModel  string
}

// Option configures a Client via the functional-options pattern.
type Option func(*options)

type options struct {
	apiKey     string
	model      string
	embedModel string
	clientOpts []option.ClientOption
}

// WithAPIKey sets the Gemini API key. Required.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithModel overrides the completion model name (default "gemini-1.5-pro").
func WithModel(name string) Option {
	return func(o *options) { o.model = name }
}

// WithEmbedModel overrides the embedding model name (default "text-embedding-004").
func WithEmbedModel(name string) Option {
	return func(o *options) { o.embedModel = name }
}

// New constructs a Client from the given options.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &options{model: "gemini-1.5-pro", embedModel: "text-embedding-004"}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.apiKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMTransport, err)
	}

	return &Client{genai: gc, modelName: cfg.model, embedModel: cfg.embedModel}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.genai.Close() }

// GenerateJSON sends prompt to the completion model with the response
// constrained to application/json, returning the raw JSON text. Transport
// failures are wrapped in ErrLLMTransport; a response that comes back
// without any text candidate is wrapped in ErrLLMSchema.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	model := c.genai.GenerativeModel(c.modelName)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMTransport, err)
	}

	text, ok := extractText(resp)
	if !ok {
		return "", fmt.Errorf("%w: empty completion response", ErrLLMSchema)
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			return string(t), true
		}
	}
	return "", false
}

// Embed returns one L2-normalized embedding vector per input string, in
// input order. The embedding model is deterministic for a fixed model
// version.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := c.genai.EmbeddingModel(c.embedModel)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		resp, err := em.EmbedContent(ctx, genai.Text(t))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLLMTransport, err)
		}
		if resp == nil || resp.Embedding == nil {
			return nil, fmt.Errorf("%w: empty embedding response", ErrLLMSchema)
		}
		out[i] = normalize(resp.Embedding.Values)
	}
	return out, nil
}

// normalize L2-normalizes v; embeddings.py's pattern assumes normalized
// vectors so the attribution package can use a plain dot product as
// cosine similarity.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * norm
	}
	return out
}
