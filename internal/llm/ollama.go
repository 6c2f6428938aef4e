package llm

import (
	"cmp"
	"context"
)

// OllamaProvider answers through a local Ollama server
type OllamaProvider struct {
	endpoint
}

type OllamaConfig struct {
	BaseURL string // default: http://localhost:11434
	Model   string // default: llama3
}

func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	return &OllamaProvider{
		endpoint: newEndpoint("ollama",
			cmp.Or(cfg.BaseURL, "http://localhost:11434"),
			cmp.Or(cfg.Model, "llama3")),
	}
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message         chatMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	EvalCount       int         `json:"eval_count"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

func (p *OllamaProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	wire := &ollamaRequest{Model: p.modelFor(req), Messages: chatMessages(req)}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		wire.Options = &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}

	var out ollamaResponse
	if err := p.post(ctx, "/api/chat", nil, wire, &out); err != nil {
		return nil, err
	}
	// older servers omit done_reason
	return &Response{
		Content:      out.Message.Content,
		FinishReason: cmp.Or(out.DoneReason, "stop"),
		Usage:        Usage{InputTokens: out.PromptEvalCount, OutputTokens: out.EvalCount},
	}, nil
}
