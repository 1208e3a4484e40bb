// Package service orchestrates dataset loading, profile lookup and question answering.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/sales-insight/internal/domain/common"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/assistant"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/cache"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/dataset"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/interpret"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/loader"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/normalizer"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/repository"
	"github.com/FACorreiaa/sales-insight/pkg/observability"
)

// Source tells where an answer's intent came from.
type Source string

const (
	SourceStructured Source = "structured"
	SourceLocal      Source = "local"
	SourceAssistant  Source = "assistant"
)

const summaryRanking = 5

// IntentAssistant is the language model side of Ask.
type IntentAssistant interface {
	InterpretIntent(ctx context.Context, question string, summary interpret.Summary) (query.Intent, error)
	Narrate(ctx context.Context, question, answer string, rows []query.Row) (string, error)
}

// Options configures the service.
type Options struct {
	Load     loader.Options
	MaxBytes int64
	Narrate  bool
}

// LoadResult describes a loaded dataset.
type LoadResult struct {
	DatasetID   string
	Name        string
	Fingerprint string
	Headers     []string
	Rows        int
	HasDates    bool
	Warnings    []string
	ProfileUsed bool
	Cached      bool
	Suggested   loader.ColumnMapping
}

// ProfileRequest is a column profile to remember for a header fingerprint.
type ProfileRequest struct {
	Fingerprint     string
	Name            string
	Columns         loader.ColumnMapping
	Delimiter       string
	Encoding        string
	ThousandsPolicy string
}

// Answer is the outcome of a query or question.
type Answer struct {
	Intent    query.Intent `json:"intent"`
	Result    query.Result `json:"result"`
	Text      string       `json:"text"`
	Narrative string       `json:"narrative,omitempty"`
	Source    Source       `json:"source"`
}

// SalesService answers questions over cached datasets.
type SalesService struct {
	repo      repository.ProfileRepository
	cache     *cache.DatasetCache
	assistant IntentAssistant
	matcher   *interpret.KeywordMatcher
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewSalesService creates the service. asst may be nil, in which case only
// locally matched questions can be answered.
func NewSalesService(
	repo repository.ProfileRepository,
	datasets *cache.DatasetCache,
	asst IntentAssistant,
	matcher *interpret.KeywordMatcher,
	opts Options,
	logger *slog.Logger,
) *SalesService {
	if matcher == nil {
		matcher = interpret.NewKeywordMatcher(nil)
	}
	return &SalesService{
		repo:      repo,
		cache:     datasets,
		assistant: asst,
		matcher:   matcher,
		opts:      opts,
		logger:    logger,
		tracer:    otel.Tracer("sales/service"),
	}
}

// LoadDataset reads an export using the stored profile for its header layout
// (if any) and caches the result by content hash.
func (s *SalesService) LoadDataset(ctx context.Context, name string, data []byte, override *loader.ColumnMapping) (*LoadResult, error) {
	ctx, span := s.tracer.Start(ctx, "SalesService.LoadDataset")
	defer span.End()

	l := s.logger.With(slog.String("method", "LoadDataset"), slog.String("file", name))
	l.DebugContext(ctx, "Loading dataset", slog.Int("bytes", len(data)))

	if s.opts.MaxBytes > 0 && int64(len(data)) > s.opts.MaxBytes {
		return nil, common.ErrFileTooLarge
	}

	headers, err := loader.Headers(data, s.opts.Load)
	if err != nil {
		observability.DatasetLoadsTotal.WithLabelValues("error").Inc()
		l.WarnContext(ctx, "Failed to read headers", slog.Any("error", err))
		return nil, fmt.Errorf("error reading headers: %w", err)
	}
	fingerprint := loader.Fingerprint(headers)

	opts := s.opts.Load
	profileUsed := false
	profile, err := s.repo.GetByFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		opts = profile.Apply(opts)
		profileUsed = true
	case errors.Is(err, common.ErrProfileNotFound):
	default:
		l.WarnContext(ctx, "Profile lookup failed, using defaults", slog.Any("error", err))
	}
	if override != nil {
		opts.Columns = override.Merge(opts.Columns)
	}

	id := loader.ContentHash(data, opts)
	cached := true
	ds, ok := s.cache.Get(id)
	if !ok {
		cached = false
		ds, err = loader.Load(ctx, name, data, opts)
		if err != nil {
			observability.DatasetLoadsTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			l.ErrorContext(ctx, "Failed to load dataset", slog.Any("error", err))
			return nil, fmt.Errorf("error loading dataset: %w", err)
		}
		s.cache.Put(ds)
		observability.DatasetRows.Observe(float64(ds.Len()))
		observability.DatasetLoadsTotal.WithLabelValues("loaded").Inc()
	} else {
		observability.DatasetLoadsTotal.WithLabelValues("cached").Inc()
	}

	span.SetAttributes(
		attribute.String("dataset.id", ds.ID),
		attribute.Int("dataset.rows", ds.Len()),
		attribute.Bool("dataset.cached", cached),
	)
	l.InfoContext(ctx, "Dataset ready",
		slog.String("datasetID", ds.ID),
		slog.Int("rows", ds.Len()),
		slog.Bool("cached", cached),
		slog.Bool("profileUsed", profileUsed),
		slog.Int("warnings", len(ds.Warnings)))

	return &LoadResult{
		DatasetID:   ds.ID,
		Name:        ds.Name,
		Fingerprint: fingerprint,
		Headers:     ds.Headers,
		Rows:        ds.Len(),
		HasDates:    ds.HasDates,
		Warnings:    ds.Warnings,
		ProfileUsed: profileUsed,
		Cached:      cached,
		Suggested:   loader.SuggestColumns(headers),
	}, nil
}

// SaveProfile remembers how to read files with the given header fingerprint.
func (s *SalesService) SaveProfile(ctx context.Context, req ProfileRequest) (*repository.ColumnProfile, error) {
	l := s.logger.With(slog.String("method", "SaveProfile"), slog.String("fingerprint", req.Fingerprint))
	l.DebugContext(ctx, "Saving column profile")

	if strings.TrimSpace(req.Fingerprint) == "" {
		return nil, fmt.Errorf("%w: fingerprint is required", common.ErrBadRequest)
	}
	if strings.TrimSpace(req.Columns.Sale) == "" {
		return nil, fmt.Errorf("%w: sale column is required", common.ErrBadRequest)
	}

	opts := s.opts.Load
	opts.Columns = req.Columns
	if req.Delimiter != "" {
		r := []rune(req.Delimiter)
		if len(r) != 1 {
			return nil, fmt.Errorf("%w: delimiter must be a single character", common.ErrBadRequest)
		}
		opts.Delimiter = r[0]
	}
	if req.Encoding != "" {
		opts.Encoding = req.Encoding
	}
	if req.ThousandsPolicy != "" {
		policy, err := normalizer.ParsePolicy(req.ThousandsPolicy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrBadRequest, err)
		}
		opts.Policy = policy
	}

	profile := repository.NewProfile(req.Fingerprint, req.Name, opts)
	if err := s.repo.Save(ctx, profile); err != nil {
		l.ErrorContext(ctx, "Failed to save column profile", slog.Any("error", err))
		return nil, fmt.Errorf("error saving column profile: %w", err)
	}

	l.InfoContext(ctx, "Column profile saved", slog.String("profileID", profile.ID.String()))
	return profile, nil
}

// ListProfiles returns every stored profile.
func (s *SalesService) ListProfiles(ctx context.Context) ([]*repository.ColumnProfile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list column profiles", slog.String("method", "ListProfiles"), slog.Any("error", err))
		return nil, fmt.Errorf("error listing column profiles: %w", err)
	}
	return profiles, nil
}

// DeleteProfile forgets the profile for a fingerprint.
func (s *SalesService) DeleteProfile(ctx context.Context, fingerprint string) error {
	if err := s.repo.Delete(ctx, fingerprint); err != nil {
		return fmt.Errorf("error deleting column profile: %w", err)
	}
	return nil
}

// Query runs a structured intent.
func (s *SalesService) Query(ctx context.Context, datasetID string, intent query.Intent) (*Answer, error) {
	ctx, span := s.tracer.Start(ctx, "SalesService.Query")
	defer span.End()

	ds, err := s.dataset(datasetID)
	if err != nil {
		return nil, err
	}
	answer := s.execute(ctx, ds, intent, SourceStructured)
	observability.QueriesTotal.WithLabelValues(string(SourceStructured), outcome(answer)).Inc()
	return answer, nil
}

// Ask answers a free-text question. Known phrasings are resolved locally;
// anything else goes through the assistant.
func (s *SalesService) Ask(ctx context.Context, datasetID, question string) (*Answer, error) {
	ctx, span := s.tracer.Start(ctx, "SalesService.Ask")
	defer span.End()

	l := s.logger.With(slog.String("method", "Ask"), slog.String("datasetID", datasetID))

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", common.ErrBadRequest)
	}
	ds, err := s.dataset(datasetID)
	if err != nil {
		return nil, err
	}

	if intent, ok := s.matcher.Match(question, ds); ok {
		l.DebugContext(ctx, "Question matched locally", slog.String("metric", string(intent.Metric)))
		answer := s.execute(ctx, ds, intent, SourceLocal)
		observability.QueriesTotal.WithLabelValues(string(SourceLocal), outcome(answer)).Inc()
		return answer, nil
	}

	if s.assistant == nil {
		observability.QueriesTotal.WithLabelValues(string(SourceAssistant), "unavailable").Inc()
		return nil, fmt.Errorf("%w: no assistant configured", assistant.ErrUnavailable)
	}

	intent, err := s.assistant.InterpretIntent(ctx, question, interpret.Summarize(ds, summaryRanking))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.QueriesTotal.WithLabelValues(string(SourceAssistant), failureOutcome(err)).Inc()
		l.WarnContext(ctx, "Could not interpret question", slog.Any("error", err))
		return nil, err
	}

	answer := s.execute(ctx, ds, intent, SourceAssistant)
	if s.opts.Narrate && !answer.Result.IsEmpty() {
		narrative, err := s.assistant.Narrate(ctx, question, answer.Text, answer.Result.Rows)
		if err != nil {
			l.WarnContext(ctx, "Narration failed, keeping computed answer", slog.Any("error", err))
		} else {
			answer.Narrative = narrative
		}
	}
	observability.QueriesTotal.WithLabelValues(string(SourceAssistant), outcome(answer)).Inc()
	return answer, nil
}

// Invalidate drops a dataset from the cache.
func (s *SalesService) Invalidate(datasetID string) bool {
	return s.cache.Invalidate(datasetID)
}

func (s *SalesService) dataset(id string) (*dataset.Dataset, error) {
	ds, ok := s.cache.Get(id)
	if !ok {
		return nil, common.ErrDatasetNotFound
	}
	return ds, nil
}

func (s *SalesService) execute(ctx context.Context, ds *dataset.Dataset, intent query.Intent, source Source) *Answer {
	intent = intent.Normalize()
	result := query.Execute(ds, intent)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("query.metric", string(intent.Metric)),
		attribute.String("query.group_by", string(intent.GroupBy)),
		attribute.Int("query.rows", len(result.Rows)),
	)
	return &Answer{
		Intent: intent,
		Result: result,
		Text:   query.FormatAnswer(intent, result),
		Source: source,
	}
}

func outcome(a *Answer) string {
	if a.Result.IsEmpty() {
		return "no_data"
	}
	return "ok"
}

func failureOutcome(err error) string {
	switch {
	case errors.Is(err, interpret.ErrIntentUnparseable):
		return "unparseable"
	case errors.Is(err, assistant.ErrUnauthorized):
		return "unauthorized"
	default:
		return "unavailable"
	}
}
