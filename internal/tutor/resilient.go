package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// DefaultCallTimeout bounds every remote call
const DefaultCallTimeout = 30 * time.Second

// ResilienceConfig configures the guard placed around a collaborator.
// Failed calls are never retried; retry is left to the learner.
type ResilienceConfig struct {
	Timeout          time.Duration
	FailureThreshold int
	OpenTimeout      time.Duration
	MaxConcurrent    int
	RatePerSecond    int
	Logger           *slog.Logger
}

func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Timeout:          DefaultCallTimeout,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		MaxConcurrent:    8,
		RatePerSecond:    5,
	}
}

// Guard applies rate limiting, a bulkhead, a circuit breaker and a timeout
// to calls against one collaborator.
type Guard struct {
	name    string
	timeout time.Duration
	cb      circuitbreaker.CircuitBreaker[any]
	bh      bulkhead.Bulkhead[any]
	rl      ratelimit.RateLimiter
	logger  *slog.Logger
}

// NewGuard builds a guard. Zero config fields fall back to the defaults.
func NewGuard(name string, cfg ResilienceConfig) *Guard {
	def := DefaultResilienceConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Guard{name: name, timeout: cfg.Timeout, logger: logger}

	g.cb = circuitbreaker.New[any](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= cfg.FailureThreshold
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("tutor circuit breaker state change",
				"collaborator", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	g.bh = bulkhead.New[any](bulkhead.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxQueue:      cfg.MaxConcurrent * 2,
		QueueTimeout:  cfg.Timeout,
	})

	g.rl = ratelimit.New(&ratelimit.Config{
		Rate:     cfg.RatePerSecond,
		Burst:    cfg.RatePerSecond * 2,
		Interval: time.Second,
	})

	return g
}

// Close releases the rate limiter
func (g *Guard) Close() error {
	return g.rl.Close()
}

// call runs fn under the guard. Failures are wrapped with
// domain.ErrRemoteUnavailable and keep their cause for Classify.
func call[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if !g.rl.Allow(ctx, g.name) {
		return zero, fmt.Errorf("%w: %s %s: %w", domain.ErrRemoteUnavailable, g.name, op, ErrThrottled)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.bh.Execute(ctx, func(ctx context.Context) (any, error) {
		return g.cb.Execute(ctx, func(ctx context.Context) (any, error) {
			return fn(ctx)
		})
	})
	if err != nil {
		g.logger.Debug("tutor call failed", "collaborator", g.name, "op", op, "kind", Classify(err).String(), "error", err)
		return zero, fmt.Errorf("%w: %s %s: %w", domain.ErrRemoteUnavailable, g.name, op, err)
	}

	out, _ := res.(T)
	return out, nil
}

// ResilientChat guards a Chat
type ResilientChat struct {
	next  Chat
	guard *Guard
}

func NewResilientChat(next Chat, cfg ResilienceConfig) *ResilientChat {
	return &ResilientChat{next: next, guard: NewGuard("chat", cfg)}
}

func (r *ResilientChat) InitTopic(ctx context.Context, topicID, userID, levelTag string) error {
	_, err := call(ctx, r.guard, "init", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.InitTopic(ctx, topicID, userID, levelTag)
	})
	return err
}

func (r *ResilientChat) SendMessage(ctx context.Context, text string, history []Turn, meta SessionMeta) (*Reply, error) {
	return call(ctx, r.guard, "message", func(ctx context.Context) (*Reply, error) {
		return r.next.SendMessage(ctx, text, history, meta)
	})
}

func (r *ResilientChat) EndSession(ctx context.Context, userID, sessionID string) error {
	_, err := call(ctx, r.guard, "end", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.EndSession(ctx, userID, sessionID)
	})
	return err
}

func (r *ResilientChat) Close() error { return r.guard.Close() }

// ResilientVoice guards a Voice
type ResilientVoice struct {
	next  Voice
	guard *Guard
}

func NewResilientVoice(next Voice, cfg ResilienceConfig) *ResilientVoice {
	return &ResilientVoice{next: next, guard: NewGuard("voice", cfg)}
}

func (r *ResilientVoice) StartRecording(ctx context.Context, language string) (bool, error) {
	return call(ctx, r.guard, "start", func(ctx context.Context) (bool, error) {
		return r.next.StartRecording(ctx, language)
	})
}

func (r *ResilientVoice) StopRecording(ctx context.Context) (*Transcript, error) {
	return call(ctx, r.guard, "stop", func(ctx context.Context) (*Transcript, error) {
		return r.next.StopRecording(ctx)
	})
}

func (r *ResilientVoice) StopPlayback(ctx context.Context) error {
	_, err := call(ctx, r.guard, "playback", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.StopPlayback(ctx)
	})
	return err
}

func (r *ResilientVoice) Close() error { return r.guard.Close() }

// ResilientTranslator guards a Translator
type ResilientTranslator struct {
	next  Translator
	guard *Guard
}

func NewResilientTranslator(next Translator, cfg ResilienceConfig) *ResilientTranslator {
	return &ResilientTranslator{next: next, guard: NewGuard("translate", cfg)}
}

func (r *ResilientTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	return call(ctx, r.guard, "translate", func(ctx context.Context) (string, error) {
		return r.next.Translate(ctx, text, target)
	})
}

func (r *ResilientTranslator) Close() error { return r.guard.Close() }

var (
	_ Chat       = (*ResilientChat)(nil)
	_ Voice      = (*ResilientVoice)(nil)
	_ Translator = (*ResilientTranslator)(nil)
)
