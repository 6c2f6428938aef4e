package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/felixgeelhaar/lingua/internal/catalog"
	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/llm"
)

// minTurnsBeforeComplete is the number of learner messages the prompt asks
// the model to wait for before it may end the lesson.
const minTurnsBeforeComplete = 6

var levelGuidance = map[string]string{
	"beginner": "The learner is an absolute beginner. Use the simplest words, present tense and " +
		"sentences of at most seven words. Keep replies to two or three short sentences.",
	"elementary": "The learner knows basic vocabulary and simple grammar. Use short sentences, " +
		"explain new words simply and keep replies to three to five sentences.",
	"intermediate": "The learner handles most everyday vocabulary. Speak naturally, introduce some " +
		"richer vocabulary and explain difficult words. Replies may be four to eight sentences.",
	"advanced": "The learner is advanced. Speak naturally with idioms and complex sentences and " +
		"help polish fluency and nuance.",
}

type topicContext struct {
	topic    *domain.Topic
	levelTag string
}

// LLMChat implements Chat directly on top of an LLM provider.
type LLMChat struct {
	provider   llm.Provider
	catalog    catalog.Catalog
	translator Translator
	target     string
	logger     *slog.Logger

	mu       sync.Mutex
	contexts map[string]topicContext
}

// NewLLMChat creates a chat tutor backed by provider
func NewLLMChat(provider llm.Provider, cat catalog.Catalog, logger *slog.Logger) *LLMChat {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMChat{
		provider: provider,
		catalog:  cat,
		logger:   logger,
		contexts: make(map[string]topicContext),
	}
}

// WithTranslation makes every reply carry a translation into target.
func (c *LLMChat) WithTranslation(t Translator, target string) *LLMChat {
	c.translator = t
	c.target = target
	return c
}

var _ Chat = (*LLMChat)(nil)

func (c *LLMChat) InitTopic(ctx context.Context, topicID, userID, levelTag string) error {
	topic, err := c.catalog.Topic(topicID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.contexts[userID] = topicContext{topic: topic, levelTag: levelTag}
	c.mu.Unlock()
	return nil
}

func (c *LLMChat) SendMessage(ctx context.Context, text string, history []Turn, meta SessionMeta) (*Reply, error) {
	tc, err := c.context(meta)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, h := range history {
		role := llm.RoleUser
		switch h.Role {
		case "assistant":
			role = llm.RoleAssistant
		case "system":
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: h.Text})
	}
	// history normally ends with the message being sent
	if len(history) == 0 || history[len(history)-1].Text != text {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})
	}

	resp, err := c.provider.Generate(ctx, &llm.Request{
		System:      SystemPrompt(tc.topic, tc.levelTag, meta),
		Messages:    messages,
		MaxTokens:   512,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	reply := &Reply{Text: strings.TrimSpace(resp.Content)}
	if c.translator != nil && reply.Text != "" {
		shown := strings.TrimSpace(strings.ReplaceAll(reply.Text, CompletionSentinel, ""))
		tr, err := c.translator.Translate(ctx, shown, c.target)
		if err != nil {
			c.logger.Warn("reply translation failed", "user_id", meta.UserID, "error", err)
		} else {
			reply.Translation = tr
		}
	}
	return reply, nil
}

func (c *LLMChat) EndSession(ctx context.Context, userID, sessionID string) error {
	c.mu.Lock()
	delete(c.contexts, userID)
	c.mu.Unlock()
	return nil
}

// context returns the topic set up by InitTopic, rebuilding it from the
// message metadata when the init call never landed.
func (c *LLMChat) context(meta SessionMeta) (topicContext, error) {
	c.mu.Lock()
	tc, ok := c.contexts[meta.UserID]
	c.mu.Unlock()
	if ok && tc.topic.ID == meta.TopicID {
		return tc, nil
	}

	topic, err := c.catalog.Topic(meta.TopicID)
	if err != nil {
		return topicContext{}, err
	}
	tc = topicContext{topic: topic, levelTag: meta.LevelTag}

	c.mu.Lock()
	c.contexts[meta.UserID] = tc
	c.mu.Unlock()
	return tc, nil
}

// SystemPrompt builds the tutoring instructions for one topic
func SystemPrompt(topic *domain.Topic, levelTag string, meta SessionMeta) string {
	var b strings.Builder

	b.WriteString("You are a friendly AI English tutor. Never send links and never name the model you run on. ")
	fmt.Fprintf(&b, "Today's topic is %q", topic.Title)
	if topic.Description != "" {
		fmt.Fprintf(&b, ": %s", topic.Description)
	}
	b.WriteString(".\n")

	guidance, ok := levelGuidance[levelTag]
	if !ok {
		guidance = levelGuidance["elementary"]
	}
	b.WriteString(guidance)
	b.WriteString("\n")

	if len(topic.Phrases) > 0 {
		b.WriteString("Work these key phrases into the conversation and encourage the learner to use them:\n")
		for _, p := range topic.Phrases {
			fmt.Fprintf(&b, "- %s\n", p.Text)
		}
	}

	b.WriteString("Correct mistakes gently by repeating the corrected sentence, then keep the conversation going with a question.\n")
	fmt.Fprintf(&b, "The learner has sent %d messages over %d minutes.\n", meta.MessageCount, meta.ElapsedMinutes)
	fmt.Fprintf(&b, "Once the learner has sent at least %d messages and used the topic's phrases well, "+
		"congratulate them and end your reply with the single word %s on its own line. "+
		"Never write %s in any other situation.", minTurnsBeforeComplete, CompletionSentinel, CompletionSentinel)

	return b.String()
}

var languageNames = map[string]string{
	"en": "English",
	"fa": "Persian (Farsi)",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"tr": "Turkish",
	"ar": "Arabic",
}

// LLMTranslator implements Translator with a single instruction prompt.
type LLMTranslator struct {
	provider llm.Provider
}

func NewLLMTranslator(provider llm.Provider) *LLMTranslator {
	return &LLMTranslator{provider: provider}
}

var _ Translator = (*LLMTranslator)(nil)

func (t *LLMTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", domain.Invalidf("text to translate is empty")
	}
	lang, ok := languageNames[target]
	if !ok {
		lang = target
	}

	resp, err := t.provider.Generate(ctx, &llm.Request{
		System: fmt.Sprintf("Translate the user's text into %s. Reply with the translation only, "+
			"without quotes or explanations.", lang),
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: text}},
		MaxTokens: 512,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
