// Package summarize answers qualitative questions by sampling review text
// and asking a text-generation provider about it.
package summarize

import (
	"context"
	"fmt"
	"time"

	"github.com/suPer8Hu/review-insights/internal/ai"
	"github.com/suPer8Hu/review-insights/internal/logger"
	"github.com/suPer8Hu/review-insights/internal/memory"
	"github.com/suPer8Hu/review-insights/internal/metrics"
	"github.com/suPer8Hu/review-insights/internal/models"
	"github.com/suPer8Hu/review-insights/internal/review"
)

const (
	CandidateLimit = 10

	DegradedMessage = "AI summarization is temporarily unavailable due to a network or service error. Please try again later."
	NoMatchMessage  = "I couldn't find any detailed written reviews matching this criteria."
)

type Finder interface {
	FindLongest(ctx context.Context, f review.Filter, limit int) ([]review.Review, error)
}

type Input struct {
	Query    string
	Intent   models.Intent
	Domain   string
	Category string
	// Filter carries scope and time window; the engine adds sentiment.
	Filter review.Filter
	Memory *memory.Memory
}

type Result struct {
	SummaryText    string
	ModelLatencyMs int64
	AggregationMs  int64
	PromptText     string
	SelectedIDs    []int64
	Quotes         []string
	Success        bool
	Attempts       int
	CandidateCount int
	Filter         review.Filter
}

type Engine struct {
	store    Finder
	provider ai.Provider
	policy   ai.RetryPolicy
	log      logger.Logger
}

func NewEngine(store Finder, provider ai.Provider, policy ai.RetryPolicy, log logger.Logger) *Engine {
	return &Engine{store: store, provider: provider, policy: policy, log: log}
}

// Summarize only returns an error when the review store fails. Provider
// failures end in a degraded Result with Success=false.
func (e *Engine) Summarize(ctx context.Context, in Input) (*Result, error) {
	f := in.Filter.WithSentiment(in.Query)

	start := time.Now()
	candidates, err := e.store.FindLongest(ctx, f, CandidateLimit)
	aggMs := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}

	res := &Result{
		AggregationMs:  aggMs,
		CandidateCount: len(candidates),
		Filter:         f,
		SelectedIDs:    []int64{},
		Quotes:         []string{},
	}
	if len(candidates) == 0 {
		res.SummaryText = NoMatchMessage
		res.Success = true
		return res, nil
	}

	selected := SelectRepresentative(candidates)
	lines := make([]string, 0, len(selected))
	for _, r := range selected {
		res.SelectedIDs = append(res.SelectedIDs, r.ReviewID)
		res.Quotes = append(res.Quotes, Truncate(r.Text, quoteLimit))
		lines = append(lines, quoteLine(r))
	}

	res.PromptText = buildPrompt(promptInput{
		Query:    in.Query,
		Domain:   in.Domain,
		Category: in.Category,
		Advisory: in.Intent == models.IntentAdvisory,
		Memory:   in.Memory,
		Quotes:   lines,
	})

	var latency time.Duration
	text, attempts, err := ai.Retry(ctx, e.policy,
		func(actx context.Context) (string, error) {
			t := time.Now()
			out, err := e.provider.Chat(actx, []ai.Message{{Role: ai.RoleUser, Content: res.PromptText}})
			if err == nil {
				latency = time.Since(t)
			}
			return out, err
		},
		func(attempt int, err error) {
			metrics.ModelAttempts.WithLabelValues("failure").Inc()
			e.log.Warn("summarization attempt failed", map[string]any{
				"attempt":      attempt,
				"max_attempts": e.policy.MaxAttempts,
				"error":        err,
			})
		},
	)
	res.Attempts = attempts
	if err != nil {
		res.SummaryText = DegradedMessage
		return res, nil
	}

	metrics.ModelAttempts.WithLabelValues("success").Inc()
	res.SummaryText = text
	res.Success = true
	res.ModelLatencyMs = max(latency.Milliseconds(), 1)
	return res, nil
}
