package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// Sender publishes a JSON payload under a routing key
type Sender interface {
	PublishJSON(ctx context.Context, routingKey string, data any) error
}

// Ensure Connection implements Sender
var _ Sender = (*Connection)(nil)

// PublisherConfig tunes delivery retries
type PublisherConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Timeout bounds one Publish call including retries
	Timeout time.Duration
}

// DefaultPublisherConfig returns the daemon's publishing defaults
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Timeout:      5 * time.Second,
	}
}

// Publisher sends learning events to the exchange, retrying transient failures
type Publisher struct {
	sender  Sender
	retrier retry.Retry[any]
	timeout time.Duration
	logger  *slog.Logger
}

// Ensure Publisher implements domain.EventPublisher
var _ domain.EventPublisher = (*Publisher)(nil)

func NewPublisher(sender Sender, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	def := DefaultPublisherConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		sender: sender,
		retrier: retry.New[any](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable: func(err error) bool {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			},
		}),
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Send publishes one event, retrying until it is accepted or attempts run out
func (p *Publisher) Send(ctx context.Context, ev domain.Event) error {
	_, err := p.retrier.Do(ctx, func(ctx context.Context) (any, error) {
		return nil, p.sender.PublishJSON(ctx, ev.RoutingKey(), ev)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Publish sends the event in the background of the caller's work.
// Failures are logged; events are notifications and never block progress.
func (p *Publisher) Publish(ev domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.Send(ctx, ev); err != nil {
		p.logger.Error("event not delivered",
			"event_id", ev.ID,
			"type", ev.Type,
			"user_id", ev.UserID,
			"error", err,
		)
		return
	}
	p.logger.Debug("event published", "event_id", ev.ID, "routing_key", ev.RoutingKey())
}

// Forward relays everything published on d to the exchange
func (p *Publisher) Forward(d *domain.EventDispatcher) {
	d.SubscribeAll(p.Publish)
}
