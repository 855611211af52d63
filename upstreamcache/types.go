package upstreamcache

import (
	"context"
	"time"
)

// SearchQuery is one web search request.
type SearchQuery struct {
	Query      string `json:"query"`
	Language   string `json:"language,omitempty"`
	Country    string `json:"country,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
}

// SearchResult is one hit returned by a search provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// AnalysisRequest asks a language model to score a piece of text.
type AnalysisRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Text   string `json:"text"`
}

// Analysis is the model verdict for one text. Score ranges from -1 to 1.
type Analysis struct {
	Score     float64 `json:"score"`
	Sentiment string  `json:"sentiment"`
	Summary   string  `json:"summary,omitempty"`
}

// ReportRequest identifies an aggregate reputation report.
type ReportRequest struct {
	Brand      string `json:"brand"`
	Language   string `json:"language,omitempty"`
	Country    string `json:"country,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
	Model      string `json:"model,omitempty"`
}

// Report aggregates search hits and their analyses for a brand.
type Report struct {
	Brand       string         `json:"brand"`
	Score       float64        `json:"score"`
	Positive    int            `json:"positive"`
	Neutral     int            `json:"neutral"`
	Negative    int            `json:"negative"`
	Results     []SearchResult `json:"results"`
	Analyses    []Analysis     `json:"analyses"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// Searcher runs web searches against an upstream provider.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]SearchResult, error)
}

// Analyzer scores text with an upstream language model.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, q SearchQuery) ([]SearchResult, error)

func (f SearcherFunc) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	return f(ctx, q)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req AnalysisRequest) (Analysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error) {
	return f(ctx, req)
}
