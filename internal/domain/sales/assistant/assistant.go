// Package assistant wraps the hosted language model behind a timeout, a
// single bounded retry and a rate limit. It is only ever asked to interpret
// or phrase; numbers come from the query engine.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/interpret"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
	"github.com/FACorreiaa/sales-insight/pkg/observability"
)

var (
	// ErrUnavailable covers timeouts, transport failures and exhausted retries.
	ErrUnavailable = errors.New("assistant unavailable")
	// ErrUnauthorized means the API key was missing or rejected.
	ErrUnauthorized = errors.New("assistant unauthorized")

	errEmptyResponse = errors.New("empty response")
)

// Format selects the response format requested from the model.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Completer maps a prompt to a completion.
type Completer interface {
	Complete(ctx context.Context, prompt string, format Format) (string, error)
}

// Config bounds each call.
type Config struct {
	Timeout    time.Duration
	MaxRetries int // 0 or 1
	RetryDelay time.Duration
	Rate       float64 // calls per second; 0 disables limiting
	Burst      int
}

// DefaultConfig returns the defaults used by the server.
func DefaultConfig() Config {
	return Config{
		Timeout:    15 * time.Second,
		MaxRetries: 1,
		RetryDelay: 500 * time.Millisecond,
		Rate:       2,
		Burst:      4,
	}
}

// Assistant turns questions into intents and answers into prose.
type Assistant struct {
	completer Completer
	cfg       Config
	limiter   *rate.Limiter
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New wraps completer with cfg's timeout, retry and rate limit.
func New(completer Completer, cfg Config, logger *slog.Logger) *Assistant {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries > 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	return &Assistant{
		completer: completer,
		cfg:       cfg,
		limiter:   limiter,
		logger:    logger,
		tracer:    otel.Tracer("sales/assistant"),
	}
}

// InterpretIntent asks the model for an intent. Unusable output is reported
// as interpret.ErrIntentUnparseable, distinct from ErrUnavailable.
func (a *Assistant) InterpretIntent(ctx context.Context, question string, summary interpret.Summary) (query.Intent, error) {
	text, err := a.complete(ctx, "interpret", interpret.BuildIntentPrompt(question, summary), FormatJSON)
	if err != nil {
		return query.Intent{}, err
	}

	in, err := interpret.ParseIntent(text)
	if err != nil {
		a.logger.WarnContext(ctx, "assistant returned an unusable intent",
			slog.String("response", truncate(text, 200)),
			slog.Any("error", err))
		return query.Intent{}, err
	}
	return in, nil
}

// Narrate asks the model to phrase an already computed answer.
func (a *Assistant) Narrate(ctx context.Context, question, answer string, rows []query.Row) (string, error) {
	text, err := a.complete(ctx, "narrate", interpret.BuildNarrationPrompt(question, answer, rows), FormatText)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (a *Assistant) complete(ctx context.Context, op, prompt string, format Format) (string, error) {
	ctx, span := a.tracer.Start(ctx, "assistant."+op)
	defer span.End()

	l := a.logger.With(slog.String("method", op))
	start := time.Now()
	defer func() {
		observability.AssistantDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if err := a.limiter.Wait(ctx); err != nil {
		return "", a.fail(ctx, span, op, fmt.Errorf("%w: rate limit: %w", ErrUnavailable, err))
	}

	attempts := 0
	var text string
	backoff := retry.WithMaxRetries(uint64(a.cfg.MaxRetries), retry.NewConstant(a.cfg.RetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()

		out, err := a.completer.Complete(callCtx, prompt, format)
		if err != nil {
			if isUnauthorized(err) {
				return err
			}
			l.DebugContext(ctx, "assistant call failed", slog.Int("attempt", attempts), slog.Any("error", err))
			return retry.RetryableError(err)
		}
		if strings.TrimSpace(out) == "" {
			return retry.RetryableError(errEmptyResponse)
		}
		text = out
		return nil
	})
	span.SetAttributes(attribute.Int("assistant.attempts", attempts))

	if err != nil {
		if isUnauthorized(err) {
			return "", a.fail(ctx, span, op, fmt.Errorf("%w: %w", ErrUnauthorized, err))
		}
		return "", a.fail(ctx, span, op, fmt.Errorf("%w: %w", ErrUnavailable, err))
	}

	observability.AssistantCallsTotal.WithLabelValues(op, "ok").Inc()
	l.DebugContext(ctx, "assistant call completed",
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", time.Since(start)))
	return text, nil
}

func (a *Assistant) fail(ctx context.Context, span trace.Span, op string, err error) error {
	outcome := "unavailable"
	if errors.Is(err, ErrUnauthorized) {
		outcome = "unauthorized"
	}
	observability.AssistantCallsTotal.WithLabelValues(op, outcome).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	a.logger.ErrorContext(ctx, "assistant call failed", slog.String("method", op), slog.Any("error", err))
	return err
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
