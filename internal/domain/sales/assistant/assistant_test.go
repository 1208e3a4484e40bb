package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/interpret"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	formats []Format
}

type reply struct {
	text  string
	err   error
	delay time.Duration
}

func (s *scriptedCompleter) Complete(ctx context.Context, _ string, format Format) (string, error) {
	s.mu.Lock()
	r := s.replies[min(s.calls, len(s.replies)-1)]
	s.calls++
	s.formats = append(s.formats, format)
	s.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.text, r.err
}

func testConfig() Config {
	return Config{Timeout: 50 * time.Millisecond, MaxRetries: 1, RetryDelay: time.Millisecond}
}

func newTestAssistant(c Completer, cfg Config) *Assistant {
	return New(c, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInterpretIntent_Success(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: "```json\n{\"metric\":\"profit\",\"group_by\":\"seller\"}\n```"}}}
	a := newTestAssistant(c, testConfig())

	in, err := a.InterpretIntent(context.Background(), "ganancia por vendedor", interpret.Summary{})
	require.NoError(t, err)
	assert.Equal(t, query.MetricProfit, in.Metric)
	assert.Equal(t, query.GroupSeller, in.GroupBy)
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, []Format{FormatJSON}, c.formats)
}

func TestInterpretIntent_RetriesOnceThenSucceeds(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{
		{err: errors.New("connection reset")},
		{text: `{"metric":"units"}`},
	}}
	a := newTestAssistant(c, testConfig())

	in, err := a.InterpretIntent(context.Background(), "units", interpret.Summary{})
	require.NoError(t, err)
	assert.Equal(t, query.MetricUnits, in.Metric)
	assert.Equal(t, 2, c.calls)
}

func TestInterpretIntent_Timeout(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: `{"metric":"sales"}`, delay: time.Second}}}
	a := newTestAssistant(c, testConfig())

	_, err := a.InterpretIntent(context.Background(), "sales", interpret.Summary{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, c.calls, "one retry after the first timeout")
}

func TestInterpretIntent_NoRetryConfigured(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: "   "}}}
	cfg := testConfig()
	cfg.MaxRetries = 0
	a := newTestAssistant(c, cfg)

	_, err := a.InterpretIntent(context.Background(), "sales", interpret.Summary{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, c.calls)
}

func TestInterpretIntent_UnauthorizedIsNotRetried(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{err: &googleapi.Error{Code: http.StatusForbidden, Message: "API key not valid"}}}}
	a := newTestAssistant(c, testConfig())

	_, err := a.InterpretIntent(context.Background(), "sales", interpret.Summary{})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, c.calls)
}

func TestInterpretIntent_UnparseableIsDistinct(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: "Sorry, I can't help with that."}}}
	a := newTestAssistant(c, testConfig())

	_, err := a.InterpretIntent(context.Background(), "sales", interpret.Summary{})
	assert.ErrorIs(t, err, interpret.ErrIntentUnparseable)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestNarrate(t *testing.T) {
	c := &scriptedCompleter{replies: []reply{{text: "  B sold the most.\n"}}}
	a := newTestAssistant(c, testConfig())

	text, err := a.Narrate(context.Background(), "who sold most?", "Top seller: B", []query.Row{{Group: "B", Sales: 2000}})
	require.NoError(t, err)
	assert.Equal(t, "B sold the most.", text)
	assert.Equal(t, []Format{FormatText}, c.formats)
}

func TestNew_ClampsRetries(t *testing.T) {
	a := New(&scriptedCompleter{}, Config{MaxRetries: 5}, nil)
	assert.Equal(t, 1, a.cfg.MaxRetries)
	assert.Equal(t, DefaultConfig().Timeout, a.cfg.Timeout)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "corto", truncate("corto", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	// "ó" spans bytes 3 and 4; cutting at byte 4 would split it
	got := truncate("razón social", 4)
	assert.Equal(t, "raz...", got)
	assert.True(t, utf8.ValidString(got))
}
