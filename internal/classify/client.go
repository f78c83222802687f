// Package classify assigns a document type to uploaded freight paperwork by
// asking an OpenAI-compatible chat completion API.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	DefaultRequestTimeout = 30 * time.Second

	toolName = "classify_document"
)

// Result is a single classification.
type Result struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Classifier is anything that can classify the document behind a URL.
type Classifier interface {
	Classify(ctx context.Context, documentURL string) (Result, error)
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithBaseURL(u string) Option {
	return func(cl *Client) {
		if u != "" {
			cl.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithModel(m string) Option {
	return func(cl *Client) {
		if m != "" {
			cl.model = m
		}
	}
}

// WithTimeout bounds a single classification request.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

const systemPrompt = `You classify freight shipping documents.
Categories:
- bol: bill of lading (shipper, consignee, carrier, freight description, signatures at pickup)
- pod: proof of delivery (delivery receipt, consignee signature, delivery date)
- invoice: freight invoice or bill (amounts due, invoice number, payment terms)
- other: anything else
Call classify_document with the category, a confidence between 0 and 1, and a short reason.`

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools"`
	ToolChoice  toolChoice    `json:"tool_choice"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []struct {
		Message responseMessage `json:"message"`
	} `json:"choices"`
}

type responseMessage struct {
	Content   string `json:"content"`
	ToolCalls []struct {
		Type     string       `json:"type"`
		Function functionCall `json:"function"`
	} `json:"tool_calls"`
	FunctionCall *functionCall `json:"function_call"`
}

var classifyTool = chatTool{
	Type: "function",
	Function: toolFunction{
		Name:        toolName,
		Description: "Record the document category.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type": map[string]any{
					"type": "string",
					"enum": []string{"bol", "pod", "invoice", "other"},
				},
				"confidence": map[string]any{
					"type":    "number",
					"minimum": 0,
					"maximum": 1,
				},
				"reason": map[string]any{"type": "string"},
			},
			"required": []string{"type", "confidence"},
		},
	},
}

func (c *Client) buildRequest(documentURL string) chatRequest {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: "Classify this document."},
				{Type: "image_url", ImageURL: &imageURL{URL: documentURL}},
			}},
		},
		Tools: []chatTool{classifyTool},
	}
	req.ToolChoice.Type = "function"
	req.ToolChoice.Function.Name = toolName
	return req
}

// Classify makes one completion request. Transport failures, non-2xx statuses
// and undecodable envelopes are returned as errors; the model's answer itself
// is always turned into a Result.
func (c *Client) Classify(ctx context.Context, documentURL string) (Result, error) {
	if !c.Configured() {
		return Result{}, fmt.Errorf("classification client not configured: missing API key")
	}

	body, err := json.Marshal(c.buildRequest(documentURL))
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("classification API error: status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("decode response: no choices")
	}

	return resolve(parsed.Choices[0].Message).result(), nil
}
