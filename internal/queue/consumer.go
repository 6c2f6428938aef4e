package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// EventHandler processes one delivered event. A returned error nacks the
// message; it is requeued once and dropped on the second failure.
type EventHandler func(ctx context.Context, ev domain.Event) error

// Consumer reads events from a queue bound to the events exchange
type Consumer struct {
	conn       *Connection
	handler    EventHandler
	cfg        ConsumerConfig
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Queue       string
	BindingKeys []string
	Workers     int
	Prefetch    int
	// HandlerTimeout bounds a single handler call
	HandlerTimeout time.Duration
}

// DefaultConsumerConfig subscribes to every learning event
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Queue:          "lingua.achievements",
		BindingKeys:    []string{"lingua.#"},
		Workers:        2,
		Prefetch:       1,
		HandlerTimeout: 10 * time.Second,
	}
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	def := DefaultConsumerConfig()
	if c.Queue == "" {
		c.Queue = def.Queue
	}
	if len(c.BindingKeys) == 0 {
		c.BindingKeys = def.BindingKeys
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.Prefetch <= 0 {
		c.Prefetch = def.Prefetch
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = def.HandlerTimeout
	}
	return c
}

func NewConsumer(conn *Connection, handler EventHandler, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:    conn,
		handler: handler,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Dispatch returns a handler that replays delivered events on d
func Dispatch(d *domain.EventDispatcher) EventHandler {
	return func(_ context.Context, ev domain.Event) error {
		d.Publish(ev)
		return nil
	}
}

// Start declares and binds the queue, then starts the workers
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()
	if ch == nil {
		return fmt.Errorf("consume %s: no channel", c.cfg.Queue)
	}

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.cfg.Queue, err)
	}
	for _, key := range c.cfg.BindingKeys {
		if err := ch.QueueBind(c.cfg.Queue, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", c.cfg.Queue, key, err)
		}
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.cfg.Queue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}

	c.logger.Info("event consumer started", "queue", c.cfg.Queue, "workers", c.cfg.Workers)

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info("delivery channel closed", "worker_id", id)
				return
			}
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg amqp.Delivery) {
	var ev domain.Event
	if err := json.Unmarshal(msg.Body, &ev); err != nil || ev.Type == "" {
		c.logger.Error("dropping malformed event", "routing_key", msg.RoutingKey, "error", err)
		_ = msg.Reject(false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	defer cancel()

	if err := c.handler(hctx, ev); err != nil {
		requeue := !msg.Redelivered
		c.logger.Warn("event handler failed",
			"event_id", ev.ID,
			"type", ev.Type,
			"requeue", requeue,
			"error", err,
		)
		_ = msg.Nack(false, requeue)
		return
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Error("ack failed", "event_id", ev.ID, "error", err)
	}
}

// Stop cancels the workers and waits for them
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
}
