package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ridelens/ridelens/internal/schema"
	"github.com/ridelens/ridelens/internal/sqlguard"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai"
	DefaultModel   = "llama3-8b-8192"
	DefaultTimeout = 15 * time.Second

	maxResponseBytes = 1 << 20
)

// ErrMissingAPIKey is returned by NewClient when no credential is configured.
var ErrMissingAPIKey = errors.New("completion api key is required")

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// Dialect is named in the prompt; empty means DefaultDialect.
	Dialect string
	// Schema defaults to schema.TripDataset.
	Schema *schema.Descriptor
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// CompletionRequest is the body posted to the chat-completions endpoint.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat-completions API.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	system   string
	client   *http.Client
}

var _ Generator = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	descriptor := schema.TripDataset
	if cfg.Schema != nil {
		descriptor = *cfg.Schema
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: baseURL + "/v1/chat/completions",
		apiKey:   apiKey,
		model:    model,
		system:   SystemPrompt(cfg.Dialect, descriptor),
		client:   httpClient,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Generate makes exactly one completion call for question.
func (c *Client) Generate(ctx context.Context, question string) Completion {
	body, err := json.Marshal(c.buildRequest(question))
	if err != nil {
		return ServiceError(fmt.Sprintf("marshal completion request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ServiceError(fmt.Sprintf("build completion request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return timeoutError(fmt.Sprintf("completion request timed out: %v", err))
		}
		return ServiceError(fmt.Sprintf("request completion: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return timeoutError(fmt.Sprintf("completion response timed out: %v", err))
		}
		return ServiceError(fmt.Sprintf("read completion response: %v", err))
	}

	return mapResponse(resp.StatusCode, rawRespBody)
}

func (c *Client) buildRequest(question string) CompletionRequest {
	return CompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: c.system},
			{Role: "user", Content: strings.TrimSpace(question)},
		},
		Temperature: 0,
	}
}

func mapResponse(status int, raw []byte) Completion {
	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if status >= 400 {
			return ServiceError(fmt.Sprintf("AI Service Error - status %d", status))
		}
		return ServiceError(fmt.Sprintf("decode completion response: %v", err))
	}
	if parsed.Error != nil {
		return ServiceError("AI Service Error - " + parsed.Error.Message)
	}
	if status >= 400 {
		return ServiceError(fmt.Sprintf("AI Service Error - status %d", status))
	}
	if len(parsed.Choices) == 0 {
		return ServiceError("completion response has no choices")
	}
	content := parsed.Choices[0].Message.Content
	if content == nil {
		return ServiceError("completion response has no message content")
	}

	text := cleanSQL(*content)
	if text == "" {
		return ServiceError("model returned empty SQL")
	}
	if strings.HasPrefix(text, rejectionPrefix) {
		return Rejected(text)
	}
	return SQL(text)
}

// cleanSQL removes code fences and comments, then folds the statement onto
// one line. Comments go first so a folded "--" cannot swallow the rest of
// the statement.
func cleanSQL(value string) string {
	text := sqlguard.StripFences(value)
	text = strings.ReplaceAll(text, "```", "")
	text = sqlguard.StripComments(text)
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	return strings.TrimSpace(text)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
