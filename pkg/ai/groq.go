package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/pkg/config"
	"github.com/johnquangdev/meeting-intelligence/pkg/jobcontext"
	"github.com/johnquangdev/meeting-intelligence/pkg/validator"
)

// ChatClient calls an OpenAI-compatible chat completion endpoint (Groq by default)
// and decodes the JSON response into a caller-supplied struct.
type ChatClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxElapsed time.Duration
	interval   time.Duration
	client     *http.Client
	validator  *validator.CustomValidator
	logger     *zap.Logger
}

var _ Completer = (*ChatClient)(nil)

// ChatOption customizes a ChatClient
type ChatOption func(*ChatClient)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) ChatOption {
	return func(cc *ChatClient) { cc.client = c }
}

// WithRetryInterval sets the initial backoff interval
func WithRetryInterval(d time.Duration) ChatOption {
	return func(cc *ChatClient) { cc.interval = d }
}

// WithLogger attaches a logger
func WithLogger(l *zap.Logger) ChatOption {
	return func(cc *ChatClient) { cc.logger = l }
}

// NewChatClient creates a chat client from the completion config.
// Pass a nil config to fall back to environment variables.
func NewChatClient(cfg *config.CompletionConfig, opts ...ChatOption) *ChatClient {
	c := &ChatClient{
		baseURL:    "https://api.groq.com/openai/v1",
		model:      "llama-3.3-70b-versatile",
		maxElapsed: 45 * time.Second,
		interval:   time.Second,
		validator:  validator.New(),
	}
	timeout := 60 * time.Second

	if cfg != nil {
		c.apiKey = cfg.APIKey
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			c.model = cfg.Model
		}
		if cfg.MaxElapsed > 0 {
			c.maxElapsed = cfg.MaxElapsed
		}
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv("GROQ_API_KEY")
	}
	c.client = &http.Client{Timeout: timeout}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name
func (c *ChatClient) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt and decodes the structured response into out
func (c *ChatClient) Complete(ctx context.Context, prompt Prompt, schema Schema, out any) error {
	body, err := json.Marshal(c.buildRequest(prompt, schema))
	if err != nil {
		return fmt.Errorf("failed to encode completion request: %w", err)
	}

	var content string
	attempt := 0
	op := func() error {
		attempt++
		var callErr error
		content, callErr = c.post(ctx, body)
		if callErr == nil {
			return nil
		}
		if !jobcontext.IsRetryableError(callErr) {
			return backoff.Permanent(callErr)
		}
		if c.logger != nil {
			c.logger.Warn("⚠️ Completion call failed, retrying",
				zap.String("schema", schema.Name),
				zap.Int("attempt", attempt),
				zap.Error(callErr),
			)
		}
		return callErr
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.interval
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = c.maxElapsed

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if c.logger != nil {
			c.logger.Error("❌ Completion failed",
				zap.String("schema", schema.Name),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
		}
		return err
	}

	return c.decode(content, schema, out)
}

func (c *ChatClient) buildRequest(prompt Prompt, schema Schema) ChatRequest {
	messages := make([]chatMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: prompt.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt.User})

	return ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: prompt.Temperature,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   schema.Name,
				Schema: schema.Definition,
				Strict: true,
			},
		},
	}
}

func (c *ChatClient) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion endpoint returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("failed to decode completion envelope: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty response from completion endpoint")
	}
	return cr.Choices[0].Message.Content, nil
}

// decode failures are returned as SchemaViolation and never retried
func (c *ChatClient) decode(content string, schema Schema, out any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(extractJSON(content))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &SchemaViolation{Schema: schema.Name, Reason: "decode failed", Err: err}
	}

	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct {
		if err := c.validator.Validate(out); err != nil {
			return &SchemaViolation{Schema: schema.Name, Reason: "validation failed", Err: err}
		}
	}
	return nil
}
