package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type mockProvider struct {
	name     string
	response *Response
	err      error
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func TestRegistry_SetDefault(t *testing.T) {
	r := NewRegistry()
	r.Register("claude", &mockProvider{name: "claude"})

	if err := r.SetDefault("claude"); err != nil {
		t.Errorf("SetDefault(claude) error = %v", err)
	}
	if err := r.SetDefault("auto"); err != nil {
		t.Errorf("SetDefault(auto) error = %v", err)
	}
	if err := r.SetDefault("missing"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("SetDefault(missing) error = %v; want ErrProviderNotFound", err)
	}
}

func TestRegistry_Default(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Default(); !errors.Is(err, ErrNoDefaultProvider) {
		t.Fatalf("Default() on empty registry error = %v", err)
	}

	r.Register("openai", &mockProvider{name: "openai"})
	r.Register("claude", &mockProvider{name: "claude"})

	p, err := r.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if p.Name() != "claude" {
		t.Errorf("auto Default() = %s; want claude (first by name)", p.Name())
	}

	_ = r.SetDefault("openai")
	p, _ = r.Default()
	if p.Name() != "openai" {
		t.Errorf("Default() = %s; want openai", p.Name())
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	r.Register("ollama", &mockProvider{name: "ollama"})
	r.Register("claude", &mockProvider{name: "claude"})

	got := r.List()
	if len(got) != 2 || got[0] != "claude" || got[1] != "ollama" {
		t.Errorf("List() = %v; want [claude ollama]", got)
	}
}

func TestRegistry_Concurrency(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("claude", &mockProvider{name: "claude"})
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Get("claude")
			_ = r.List()
		}()
	}
	wg.Wait()
}

func TestClaudeProvider_Generate(t *testing.T) {
	var got claudeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Hola! "},{"type":"text","text":"LESSON_COMPLETE"}],"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":4}}`))
	}))
	defer server.Close()

	p := NewClaudeProvider(ClaudeConfig{APIKey: "key", BaseURL: server.URL + "/"})
	resp, err := p.Generate(context.Background(), &Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be a tutor"},
			{Role: RoleUser, Content: "hola"},
		},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if resp.Content != "Hola! LESSON_COMPLETE" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if got.System != "be a tutor" || len(got.Messages) != 1 {
		t.Errorf("system turn not lifted: %+v", got)
	}
	if got.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d; want default 1024", got.MaxTokens)
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	var got openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Bonjour"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "key", BaseURL: server.URL})
	resp, err := p.Generate(context.Background(), &Request{
		System:   "tutor",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Bonjour" || resp.FinishReason != "stop" {
		t.Errorf("resp = %+v", resp)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v; want system prompt first", got.Messages)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("Model = %s", got.Model)
	}
}

func TestOllamaProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Error("stream should be false")
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Ciao"},"prompt_eval_count":5,"eval_count":2}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: server.URL})
	resp, err := p.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Ciao" || resp.FinishReason != "stop" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGenerate_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	providers := []Provider{
		NewClaudeProvider(ClaudeConfig{BaseURL: server.URL}),
		NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL}),
		NewOllamaProvider(OllamaConfig{BaseURL: server.URL}),
	}
	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			_, err := p.Generate(context.Background(), &Request{})
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v; want *StatusError", err)
			}
			if se.StatusCode != http.StatusServiceUnavailable || se.Provider != p.Name() {
				t.Errorf("StatusError = %+v", se)
			}
		})
	}
}
