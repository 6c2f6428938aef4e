// Package notify pushes learning events to a Telegram chat: due reviews,
// streak milestones and level changes.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

const defaultBuffer = 32

// Sender delivers a message to Telegram; *tgbotapi.BotAPI satisfies it
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram forwards formatted events to one chat. Publishing never blocks:
// messages wait in a buffer and are dropped when it is full.
type Telegram struct {
	sender Sender
	chatID int64
	logger *slog.Logger

	out  chan string
	wg   sync.WaitGroup
	stop context.CancelFunc
}

// NewTelegramBot connects to the Bot API with token
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	return bot, nil
}

func NewTelegram(sender Sender, chatID int64, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		sender: sender,
		chatID: chatID,
		logger: logger,
		out:    make(chan string, defaultBuffer),
	}
}

// Subscribe queues a message for every event Format knows how to phrase
func (t *Telegram) Subscribe(d *domain.EventDispatcher) {
	d.SubscribeAll(func(ev domain.Event) {
		text, ok := Format(ev)
		if !ok {
			return
		}
		select {
		case t.out <- text:
		default:
			t.logger.Warn("telegram buffer full, dropping notification", "event", ev.Type, "user_id", ev.UserID)
		}
	})
}

// Start sends queued messages until Stop is called or ctx ends
func (t *Telegram) Start(ctx context.Context) {
	ctx, t.stop = context.WithCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case text := <-t.out:
				if err := t.Send(text); err != nil {
					t.logger.Warn("telegram send failed", "error", err)
				}
			}
		}
	}()
}

// Stop waits for the sender goroutine to exit
func (t *Telegram) Stop() {
	if t.stop == nil {
		return
	}
	t.stop()
	t.wg.Wait()
}

// Send delivers text to the configured chat right away
func (t *Telegram) Send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", t.chatID, err)
	}
	return nil
}

// Format phrases ev for the learner. Events without a message report false.
func Format(ev domain.Event) (string, bool) {
	switch ev.Type {
	case domain.EventReviewsDue:
		if ev.Value == 1 {
			return "📚 1 phrase is waiting for review.", true
		}
		return fmt.Sprintf("📚 %d phrases are waiting for review.", ev.Value), true
	case domain.EventStreakMilestone:
		return fmt.Sprintf("🔥 %d-day streak! Keep it going.", ev.Value), true
	case domain.EventLevelCompleted:
		return fmt.Sprintf("🎓 Level %d complete.", ev.Level), true
	case domain.EventLevelUp:
		return fmt.Sprintf("⭐ You reached XP level %d.", ev.Value), true
	case domain.EventTopicCompleted:
		return fmt.Sprintf("✅ Topic %q complete.", ev.TopicID), true
	}
	return "", false
}
