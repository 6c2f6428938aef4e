// Package tutor defines the remote collaborators a conversation talks to
// (chat, voice and translation) and their HTTP, LLM and resilient
// implementations.
package tutor

import "context"

// CompletionSentinel is the in-band marker a tutor reply carries when the
// lesson is finished.
const CompletionSentinel = "LESSON_COMPLETE"

// Turn is one role-tagged entry of the history sent with a message
type Turn struct {
	Role string `json:"role"`
	Text string `json:"content"`
}

// SessionMeta describes the conversation a message belongs to
type SessionMeta struct {
	SessionID      string `json:"session_id"`
	UserID         string `json:"user_id"`
	TopicID        string `json:"topic_id"`
	LevelTag       string `json:"level"`
	MessageCount   int    `json:"message_count"`
	ElapsedMinutes int    `json:"elapsed_minutes"`
	Completed      bool   `json:"completed"`
}

// Reply is the tutor's answer to a message. Completed is the structured
// completion flag; replies may also carry CompletionSentinel in Text.
type Reply struct {
	Text        string
	Translation string
	Completed   bool
}

// Transcript is the result of a finished recording
type Transcript struct {
	Text       string
	Confidence float64
}

// Chat is the remote tutor conversation
type Chat interface {
	InitTopic(ctx context.Context, topicID, userID, levelTag string) error
	SendMessage(ctx context.Context, text string, history []Turn, meta SessionMeta) (*Reply, error)
	EndSession(ctx context.Context, userID, sessionID string) error
}

// Voice captures speech and controls spoken playback
type Voice interface {
	// StartRecording reports whether capture actually started.
	StartRecording(ctx context.Context, language string) (bool, error)
	StopRecording(ctx context.Context) (*Transcript, error)
	StopPlayback(ctx context.Context) error
}

// Translator translates text into a target language
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}
