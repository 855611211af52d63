package upstreamcache

import (
	"context"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	errors "github.com/goliatone/go-errors"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-memocache/cache"
)

// DefaultAnalysisPrompt is sent with every snippet when no prompt is configured.
const DefaultAnalysisPrompt = "Rate the sentiment of this text towards the brand from -1 (negative) to 1 (positive)."

const (
	positiveThreshold = 0.2
	negativeThreshold = -0.2
)

// Aggregator builds brand reports from search hits and their analyses and
// caches the finished report in the results cache.
type Aggregator struct {
	searcher    Searcher
	analyzer    Analyzer
	handle      *cache.Handle
	prompt      string
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithPrompt replaces DefaultAnalysisPrompt.
func WithPrompt(prompt string) AggregatorOption {
	return func(a *Aggregator) {
		if prompt != "" {
			a.prompt = prompt
		}
	}
}

// WithConcurrency bounds the analyses run in parallel for one report.
func WithConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithClock sets the time source stamped on reports.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator returns an Aggregator. searcher and analyzer are usually the
// cached decorators so a report rebuilt after expiry reuses fresher layers.
func NewAggregator(searcher Searcher, analyzer Analyzer, handle *cache.Handle, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		searcher:    searcher,
		analyzer:    analyzer,
		handle:      handle,
		prompt:      DefaultAnalysisPrompt,
		concurrency: 4,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate checks that req names a brand.
func (r ReportRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Brand, validation.Required),
		validation.Field(&r.MaxResults, validation.Min(0)),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid report request")
	}
	return nil
}

// Report returns the cached report for req or builds a new one.
func (a *Aggregator) Report(ctx context.Context, req ReportRequest) (cache.Result[Report], error) {
	if err := req.Validate(); err != nil {
		return cache.Result[Report]{}, err
	}

	return compute(ctx, a.handle, ReportPayload(req, a.prompt), func(ctx context.Context) (Report, error) {
		return a.build(ctx, req)
	})
}

func (a *Aggregator) build(ctx context.Context, req ReportRequest) (Report, error) {
	results, err := a.searcher.Search(ctx, SearchQuery{
		Query:      req.Brand,
		Language:   req.Language,
		Country:    req.Country,
		MaxResults: req.MaxResults,
	})
	if err != nil {
		return Report{}, err
	}

	analyses := make([]Analysis, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, r := range results {
		g.Go(func() error {
			an, err := a.analyzer.Analyze(gctx, AnalysisRequest{
				Model:  req.Model,
				Prompt: a.prompt,
				Text:   r.Title + "\n" + r.Snippet,
			})
			if err != nil {
				return err
			}
			analyses[i] = an
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{
		Brand:       req.Brand,
		Results:     results,
		Analyses:    analyses,
		GeneratedAt: a.now().UTC(),
	}

	var total float64
	for _, an := range analyses {
		total += an.Score
		switch {
		case an.Score > positiveThreshold:
			report.Positive++
		case an.Score < negativeThreshold:
			report.Negative++
		default:
			report.Neutral++
		}
	}
	if len(analyses) > 0 {
		report.Score = total / float64(len(analyses))
	}

	a.logger.DebugContext(ctx, "report built",
		"brand", req.Brand,
		"results", len(results),
		"score", report.Score,
	)
	return report, nil
}

// ReportPayload builds the key payload for req analyzed with prompt. The
// default prompt is left out so reports keep their keys when it is implied.
func ReportPayload(req ReportRequest, prompt string) map[string]any {
	payload := map[string]any{"brand": req.Brand}
	if prompt != "" && prompt != DefaultAnalysisPrompt {
		payload["prompt"] = prompt
	}
	if req.Language != "" {
		payload["language"] = req.Language
	}
	if req.Country != "" {
		payload["country"] = req.Country
	}
	if req.MaxResults > 0 {
		payload["maxResults"] = req.MaxResults
	}
	if req.Model != "" {
		payload["model"] = req.Model
	}
	return payload
}
