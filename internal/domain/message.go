package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender tags who produced a conversation message
type Sender string

const (
	SenderUser   Sender = "user"
	SenderTutor  Sender = "tutor"
	SenderSystem Sender = "system"
)

// Message is one entry of a conversation log
type Message struct {
	ID          uuid.UUID `json:"id"`
	Sender      Sender    `json:"sender"`
	Text        string    `json:"text"`
	Translation string    `json:"translation,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Failed      bool      `json:"failed,omitempty"`
}

// NewMessage validates and builds a message
func NewMessage(sender Sender, text string, at time.Time) (Message, error) {
	switch sender {
	case SenderUser, SenderTutor, SenderSystem:
	default:
		return Message{}, Invalidf("unknown sender %q", sender)
	}
	if strings.TrimSpace(text) == "" {
		return Message{}, Invalidf("message text is empty")
	}
	return Message{
		ID:        uuid.New(),
		Sender:    sender,
		Text:      text,
		Timestamp: at,
	}, nil
}

// Role maps the sender to the role name used in chat history
func (m Message) Role() string {
	if m.Sender == SenderTutor {
		return "assistant"
	}
	return string(m.Sender)
}
