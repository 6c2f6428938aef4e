package llm

import (
	"cmp"
	"context"
)

// OpenAIProvider answers through any OpenAI-compatible chat completions API
type OpenAIProvider struct {
	endpoint
	apiKey string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: https://api.openai.com
	Model   string // default: gpt-4o-mini
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		endpoint: newEndpoint("openai",
			cmp.Or(cfg.BaseURL, "https://api.openai.com"),
			cmp.Or(cfg.Model, "gpt-4o-mini")),
		apiKey: cfg.APIKey,
	}
}

type openaiRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// chatMessage is the turn format of both OpenAI and Ollama
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	wire := &openaiRequest{
		Model:       p.modelFor(req),
		Messages:    chatMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var out openaiResponse
	err := p.post(ctx, "/v1/chat/completions", map[string]string{"Authorization": "Bearer " + p.apiKey}, wire, &out)
	if err != nil {
		return nil, err
	}

	resp := &Response{Usage: Usage{InputTokens: out.Usage.PromptTokens, OutputTokens: out.Usage.CompletionTokens}}
	if len(out.Choices) > 0 {
		resp.Content = out.Choices[0].Message.Content
		resp.FinishReason = out.Choices[0].FinishReason
	}
	return resp, nil
}

// chatMessages puts req.System first as an ordinary system turn
func chatMessages(req *Request) []chatMessage {
	out := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, chatMessage{Role: string(RoleSystem), Content: req.System})
	}
	for _, m := range req.Messages {
		out = append(out, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
