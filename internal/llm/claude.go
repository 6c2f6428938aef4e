package llm

import (
	"cmp"
	"context"
	"strings"
)

const (
	claudeAPIVersion       = "2023-06-01"
	claudeDefaultMaxTokens = 1024
)

// ClaudeProvider answers through Anthropic's Messages API
type ClaudeProvider struct {
	endpoint
	apiKey string
}

type ClaudeConfig struct {
	APIKey  string
	BaseURL string // default: https://api.anthropic.com
	Model   string // default: claude-sonnet-4-20250514
}

func NewClaudeProvider(cfg ClaudeConfig) *ClaudeProvider {
	return &ClaudeProvider{
		endpoint: newEndpoint("claude",
			cmp.Or(cfg.BaseURL, "https://api.anthropic.com"),
			cmp.Or(cfg.Model, "claude-sonnet-4-20250514")),
		apiKey: cfg.APIKey,
	}
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeResponse struct {
	Content    []claudeBlock `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// text joins the text blocks; tool and image blocks never reach a tutor
func (r *claudeResponse) text() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func (p *ClaudeProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": claudeAPIVersion,
	}

	var out claudeResponse
	if err := p.post(ctx, "/v1/messages", headers, p.toWire(req), &out); err != nil {
		return nil, err
	}
	return &Response{
		Content:      out.text(),
		FinishReason: out.StopReason,
		Usage:        Usage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens},
	}, nil
}

// toWire moves system turns into the top-level system field. An explicit
// req.System wins over a system turn.
func (p *ClaudeProvider) toWire(req *Request) *claudeRequest {
	wire := &claudeRequest{
		Model:       p.modelFor(req),
		MaxTokens:   cmp.Or(req.MaxTokens, claudeDefaultMaxTokens),
		System:      req.System,
		Temperature: req.Temperature,
		Messages:    make([]claudeMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			wire.System = cmp.Or(wire.System, m.Content)
			continue
		}
		wire.Messages = append(wire.Messages, claudeMessage{Role: string(m.Role), Content: m.Content})
	}
	return wire
}
