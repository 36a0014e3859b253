package aiproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jo-hoe/content-localizer/internal/common"
	"github.com/jo-hoe/content-localizer/internal/config"
	"github.com/jo-hoe/content-localizer/internal/localize"
)

var _ localize.Transformer = (*Client)(nil)

const (
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"

	authSchemeBearer = "Bearer"

	endpointChatCompletions = "v1/chat/completions"

	defaultTimeout    = 60 * time.Second
	errorSnippetLimit = 400

	defaultSystemPrompt = `You are an expert localization specialist. Culturally adapt the provided content for the target market. Return ONLY valid JSON matching this schema:
{
  "localizedText": "the adapted content",
  "culturalNote": "one short note on the cultural adaptation choices",
  "hashtags": ["locally", "relevant", "tags"],
  "callToAction": "a culturally fitting call to action"
}
Adapt idioms, references, and register for the target audience; do not translate word for word. Output only the JSON object, no commentary.`
)

// Role represents the sender role for a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Client implements localize.Transformer by calling an OpenAI-compatible AI Proxy.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	system      string
	temperature *float32
	maxTokens   *int
}

// New creates a new AI Proxy transform client.
func New(cfg config.AIProxySettings) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		system:      cfg.SystemPrompt,
		temperature: optionalFloat32(cfg.Temperature),
		maxTokens:   optionalInt(cfg.MaxTokens),
	}
}

// Localize sends a chat completion request and parses the structured JSON result.
func (c *Client) Localize(ctx context.Context, lreq localize.Request) (localize.Result, error) {
	if strings.TrimSpace(lreq.Content) == "" {
		return localize.Result{}, fmt.Errorf("content is empty")
	}

	bodyBytes, err := json.Marshal(c.buildRequestBody(lreq))
	if err != nil {
		return localize.Result{}, fmt.Errorf("marshal request: %w", err)
	}

	u, err := url.JoinPath(c.baseURL, endpointChatCompletions)
	if err != nil {
		return localize.Result{}, fmt.Errorf("join url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(bodyBytes))
	if err != nil {
		return localize.Result{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set(headerContentType, common.ContentTypeJSON)
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set(headerAuthorization, authSchemeBearer+" "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return localize.Result{}, ctx.Err()
		}
		return localize.Result{}, fmt.Errorf("http do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return localize.Result{}, fmt.Errorf("aiproxy status %d: %s", resp.StatusCode, truncate(string(respBytes), errorSnippetLimit))
	}

	var comp chatCompletionResponse
	if err := json.Unmarshal(respBytes, &comp); err != nil {
		return localize.Result{}, fmt.Errorf("parse response: %w", err)
	}
	if len(comp.Choices) == 0 || comp.Choices[0].Message.Content == "" {
		return localize.Result{}, fmt.Errorf("empty completion")
	}

	return parseResult(comp.Choices[0].Message.Content)
}

// parseResult extracts the structured result from the model output, tolerating
// fenced code blocks around the JSON object.
func parseResult(content string) (localize.Result, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	var res localize.Result
	if err := json.Unmarshal([]byte(trimmed), &res); err != nil {
		return localize.Result{}, fmt.Errorf("malformed result json: %w", err)
	}
	if strings.TrimSpace(res.LocalizedText) == "" {
		return localize.Result{}, fmt.Errorf("result missing localizedText")
	}
	if res.Hashtags == nil {
		res.Hashtags = []string{}
	}
	return res, nil
}

func (c *Client) buildRequestBody(lreq localize.Request) chatCompletionRequest {
	sys := strings.TrimSpace(c.system)
	if sys == "" {
		sys = defaultSystemPrompt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n", lreq.TargetLanguage)
	if lreq.ContentType != "" {
		fmt.Fprintf(&b, "Content type: %s\n", lreq.ContentType)
	}
	if lreq.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", lreq.Tone)
	}
	if lreq.SpecialNotes != "" {
		fmt.Fprintf(&b, "Special notes: %s\n", lreq.SpecialNotes)
	}
	fmt.Fprintf(&b, "\nContent:\n%s", lreq.Content)

	req := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: RoleSystem, Content: sys},
			{Role: RoleUser, Content: b.String()},
		},
	}
	if c.temperature != nil {
		req.Temperature = c.temperature
	}
	if c.maxTokens != nil {
		req.MaxTokens = c.maxTokens
	}
	return req
}

func optionalFloat32(v float32) *float32 {
	if v == 0 {
		return nil
	}
	return &v
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// OpenAI-compatible Chat Completions request/response types

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Choices []chatCompletionChoice `json:"choices"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      responseMsg `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type responseMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
