package tutor

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

// RemoteClient talks to the tutor backend over HTTP/JSON. It implements
// Chat, Voice and Translator.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteClient creates a client for the backend at baseURL. Per-call
// deadlines come from the caller's context.
func NewRemoteClient(baseURL string) *RemoteClient {
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

var (
	_ Chat       = (*RemoteClient)(nil)
	_ Voice      = (*RemoteClient)(nil)
	_ Translator = (*RemoteClient)(nil)
)

type initTopicRequest struct {
	Topic     string `json:"topic"`
	UserID    string `json:"user_id"`
	UserLevel string `json:"user_level"`
}

func (c *RemoteClient) InitTopic(ctx context.Context, topicID, userID, levelTag string) error {
	return c.post(ctx, "/api/chat/init-topic", initTopicRequest{
		Topic:     topicID,
		UserID:    userID,
		UserLevel: levelTag,
	}, nil)
}

type chatRequest struct {
	Message   string      `json:"message"`
	Topic     string      `json:"topic"`
	UserID    string      `json:"user_id"`
	UserLevel string      `json:"user_level"`
	History   []Turn      `json:"history"`
	Meta      SessionMeta `json:"meta"`
}

type chatResponse struct {
	Response    string `json:"ai_response"`
	Translation string `json:"farsi_translation"`
	Completed   bool   `json:"completed"`
}

func (c *RemoteClient) SendMessage(ctx context.Context, text string, history []Turn, meta SessionMeta) (*Reply, error) {
	var out chatResponse
	err := c.post(ctx, "/api/chat", chatRequest{
		Message:   text,
		Topic:     meta.TopicID,
		UserID:    meta.UserID,
		UserLevel: meta.LevelTag,
		History:   history,
		Meta:      meta,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: out.Response, Translation: out.Translation, Completed: out.Completed}, nil
}

func (c *RemoteClient) EndSession(ctx context.Context, userID, sessionID string) error {
	return c.post(ctx, "/api/chat/session/end", map[string]string{
		"user_id":    userID,
		"session_id": sessionID,
	}, nil)
}

type recordingResponse struct {
	Success    bool    `json:"success"`
	Recording  bool    `json:"recording"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

func (c *RemoteClient) StartRecording(ctx context.Context, language string) (bool, error) {
	var out recordingResponse
	if err := c.post(ctx, "/api/stt/start", map[string]string{"language": language}, &out); err != nil {
		return false, err
	}
	return out.Success && out.Recording, nil
}

func (c *RemoteClient) StopRecording(ctx context.Context) (*Transcript, error) {
	var out recordingResponse
	if err := c.post(ctx, "/api/stt/stop", struct{}{}, &out); err != nil {
		return nil, err
	}
	if !out.Success && out.Error != "" {
		return nil, fmt.Errorf("stop recording: %s", out.Error)
	}
	return &Transcript{Text: out.Transcript, Confidence: out.Confidence}, nil
}

func (c *RemoteClient) StopPlayback(ctx context.Context) error {
	return c.post(ctx, "/api/tts/stop", struct{}{}, nil)
}

func (c *RemoteClient) Translate(ctx context.Context, text, target string) (string, error) {
	var out struct {
		Translation string `json:"translation"`
	}
	err := c.post(ctx, "/api/translate", map[string]string{
		"text":   text,
		"source": "en",
		"target": target,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Translation, nil
}

// post sends in as JSON and decodes the reply into out when out is non-nil.
func (c *RemoteClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tutor %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
