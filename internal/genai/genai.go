// Package genai provides structured-generation operations using the OpenAI API.
//
// The client sends a prompt with a JSON schema response format and returns the
// raw model output for the caller to decode. Malformed model output or a
// transport failure yields an error; no partial result is returned.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// DefaultModel is the chat model used when no override is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// completionService defines the minimal chat-completion interface, allowing
// tests to substitute the OpenAI client.
type completionService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Option defines a functional option for configuring the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithBaseURL overrides the API base URL (for proxies or compatible servers).
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// ObjectRequest describes one structured-generation invocation: a system and
// user prompt plus the JSON schema the model output must conform to.
type ObjectRequest struct {
	System            string
	Prompt            string
	SchemaName        string
	SchemaDescription string
	Schema            map[string]any
}

// ClientInterface defines the structured-generation operations used by the
// rest of the application.
type ClientInterface interface {
	GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error)
}

// Client wraps the OpenAI chat-completion service for structured generation.
type Client struct {
	completions completionService
	model       string
}

// NewClient initializes a GenAI client. The API key comes from options or the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("GenAI client API key not set")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("GenAI client created", "model", cfg.Model, "base_url_set", cfg.BaseURL != "")
	return &Client{completions: &cli.Chat.Completions, model: cfg.Model}, nil
}

// GenerateObject invokes the model with a JSON schema response format and
// returns the raw JSON output after validating it parses.
func (c *Client) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	slog.Debug("GenAI GenerateObject invoked", "schema", req.SchemaName, "prompt_length", len(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.SchemaName,
					Description: openai.String(req.SchemaDescription),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	resp, err := c.completions.New(ctx, params)
	if err != nil {
		slog.Error("GenAI GenerateObject request failed", "error", err, "schema", req.SchemaName)
		return nil, fmt.Errorf("structured generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI GenerateObject returned no choices", "schema", req.SchemaName)
		return nil, fmt.Errorf("no choices returned")
	}

	content := resp.Choices[0].Message.Content
	if !json.Valid([]byte(content)) {
		slog.Error("GenAI GenerateObject returned malformed JSON", "schema", req.SchemaName, "content_length", len(content))
		return nil, fmt.Errorf("model output is not valid JSON")
	}

	slog.Debug("GenAI GenerateObject succeeded", "schema", req.SchemaName, "content_length", len(content))
	return json.RawMessage(content), nil
}
