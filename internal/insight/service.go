// Package insight runs one analytics question end to end: scope, cache,
// memory, intent, the chosen engine, and the history record.
package insight

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/suPer8Hu/review-insights/internal/access"
	"github.com/suPer8Hu/review-insights/internal/common"
	"github.com/suPer8Hu/review-insights/internal/history"
	"github.com/suPer8Hu/review-insights/internal/intent"
	"github.com/suPer8Hu/review-insights/internal/logger"
	"github.com/suPer8Hu/review-insights/internal/memory"
	"github.com/suPer8Hu/review-insights/internal/metrics"
	"github.com/suPer8Hu/review-insights/internal/models"
	"github.com/suPer8Hu/review-insights/internal/review"
	"github.com/suPer8Hu/review-insights/internal/summarize"
)

const (
	UnknownIntentMessage = "Query not recognized. Try asking for NPS trends or summaries."
	InternalErrorMessage = "Internal Server Error during query processing."
)

type RecordStore interface {
	Insert(ctx context.Context, rec *history.Record) error
	ListRecent(ctx context.Context, userID uint64, domain, category string, since time.Time, limit int) ([]history.Record, error)
}

type Cache interface {
	Lookup(ctx context.Context, fp *string) (*history.Record, error)
	Remember(ctx context.Context, rec *history.Record)
}

type ChartEngine interface {
	NPSTrend(ctx context.Context, f review.Filter) (*review.Trend, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, in summarize.Input) (*summarize.Result, error)
}

type Options struct {
	MemoryWindow     time.Duration
	MemoryMaxRecords int
	Now              func() time.Time
	NewID            func() (string, error)
}

type Service struct {
	records    RecordStore
	cache      Cache
	charts     ChartEngine
	summarizer Summarizer
	log        logger.Logger
	opts       Options
}

func NewService(records RecordStore, cache Cache, charts ChartEngine, summarizer Summarizer, log logger.Logger, opts Options) *Service {
	if opts.MemoryWindow <= 0 {
		opts.MemoryWindow = 30 * time.Minute
	}
	if opts.MemoryMaxRecords <= 0 || opts.MemoryMaxRecords > memory.MaxRecords {
		opts.MemoryMaxRecords = memory.MaxRecords
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = common.NewULID
	}
	return &Service{
		records:    records,
		cache:      cache,
		charts:     charts,
		summarizer: summarizer,
		log:        log,
		opts:       opts,
	}
}

// Result is the answer plus the history record written for it. Status
// follows HTTP semantics: 200 answered, 400 unrecognized, 500 internal.
type Result struct {
	Status   int
	Response models.Response
	Record   *history.Record
}

// Ask answers req for u. The only error returned is ErrValidation;
// every other outcome is a Result and has been recorded.
func (s *Service) Ask(ctx context.Context, u *models.User, req Request) (*Result, error) {
	req, err := Normalize(req)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: missing identity", ErrValidation)
	}
	received := req.ReceivedAt
	if received.IsZero() {
		received = s.opts.Now()
	}

	scope := access.Resolve(u, req.Domain, req.Category)
	fp := history.Fingerprint(req.Query, req.Domain, req.Category, u)

	base := history.Record{
		UserID:         u.ID,
		Role:           u.Role,
		Query:          req.Query,
		DomainAtTime:   req.Domain,
		CategoryAtTime: req.Category,
	}
	log := s.log.With(map[string]any{"user_id": u.ID, "domain": req.Domain, "category": req.Category})

	hit, err := s.cache.Lookup(ctx, &fp)
	if err != nil {
		return s.internalFailure(ctx, log, base, received, "cache lookup", err), nil
	}
	if hit != nil {
		return s.replay(ctx, log, base, received, hit)
	}

	mem := s.recall(ctx, log, u, req)
	in, inherited := intent.Resolve(req.Query, mem)
	base.Intent = in
	base.IntentInherited = inherited

	rec := base
	key := &fp
	status := http.StatusOK
	windowed := scope.WithTimeWindow(req.Query, received)

	switch in {
	case models.IntentChart:
		trend, err := s.charts.NPSTrend(ctx, windowed)
		if err != nil {
			return s.internalFailure(ctx, log, base, received, "nps trend", err), nil
		}
		rec.Audit = history.ChartTrail(history.ChartAudit{
			Filter:      windowed,
			Description: trend.FilterDescription,
			Periods:     len(trend.Data),
		})
		rec.ResponseType = models.ResponseChart
		rec.FinalResponse = models.Response{Type: models.ResponseChart, Title: "NPS Trend for " + scopeLabel(req), Data: trend.Data}
		rec.Metrics.AggregationMs = trend.ExecutionTimeMs

	case models.IntentSummary, models.IntentAdvisory:
		sum, err := s.summarizer.Summarize(ctx, summarize.Input{
			Query:    req.Query,
			Intent:   in,
			Domain:   req.Domain,
			Category: req.Category,
			Filter:   windowed,
			Memory:   mem,
		})
		if err != nil {
			return s.internalFailure(ctx, log, base, received, "summarize", err), nil
		}
		rec.Audit = history.SummaryTrail(history.SummaryAudit{
			Filter:         sum.Filter,
			Description:    sum.Filter.String(),
			Advisory:       in == models.IntentAdvisory,
			CandidateCount: sum.CandidateCount,
			Attempts:       sum.Attempts,
			Success:        sum.Success,
		})
		rec.SelectedReviewIDs = sum.SelectedIDs
		rec.QuotesExtracted = sum.Quotes
		rec.LLMPrompt = sum.PromptText
		rec.LLMResponse = sum.SummaryText
		rec.ResponseType = models.ResponseSummary
		rec.FinalResponse = models.Response{Type: models.ResponseSummary, Title: summaryTitle(in, req), Data: sum.SummaryText}
		rec.Metrics.AggregationMs = sum.AggregationMs
		rec.Metrics.LLMLatencyMs = sum.ModelLatencyMs
		// degraded and empty answers must not be replayed
		if !sum.Success || sum.ModelLatencyMs == 0 {
			key = nil
		}

	default:
		rec.Audit = history.ErrorTrail("unknown_intent", "")
		rec.ResponseType = models.ResponseError
		rec.FinalResponse = models.Response{Type: models.ResponseError, Title: "Query not recognized", Data: UnknownIntentMessage}
		key = nil
		status = http.StatusBadRequest
	}

	rec.FinalResponse.IntentInherited = inherited
	rec.CacheKey = key
	if err := s.write(ctx, &rec, received); err != nil {
		return s.internalFailure(ctx, log, base, received, "write history", err), nil
	}
	s.cache.Remember(ctx, &rec)

	observe(in, outcome(status, key), received, s.opts.Now())
	return &Result{Status: status, Response: rec.FinalResponse, Record: &rec}, nil
}

// replay serves a fresh cached answer and still records the request.
func (s *Service) replay(ctx context.Context, log logger.Logger, base history.Record, received time.Time, hit *history.Record) (*Result, error) {
	rec := base
	rec.Intent = hit.Intent
	rec.IntentInherited = hit.IntentInherited
	rec.Audit = hit.Audit
	rec.SelectedReviewIDs = hit.SelectedReviewIDs
	rec.QuotesExtracted = hit.QuotesExtracted
	rec.LLMPrompt = hit.LLMPrompt
	rec.LLMResponse = hit.LLMResponse
	rec.ResponseType = hit.ResponseType
	rec.FinalResponse = hit.FinalResponse
	rec.ServedFromID = &hit.ID
	rec.Metrics.CacheHit = true

	if err := s.write(ctx, &rec, received); err != nil {
		return s.internalFailure(ctx, log, base, received, "write history", err), nil
	}
	metrics.CacheHits.Inc()
	observe(rec.Intent, "cache_hit", received, s.opts.Now())
	return &Result{Status: http.StatusOK, Response: rec.FinalResponse, Record: &rec}, nil
}

func (s *Service) recall(ctx context.Context, log logger.Logger, u *models.User, req Request) *memory.Memory {
	since := s.opts.Now().Add(-s.opts.MemoryWindow)
	recent, err := s.records.ListRecent(ctx, u.ID, req.Domain, req.Category, since, s.opts.MemoryMaxRecords)
	if err != nil {
		log.Warn("load conversation memory failed", map[string]any{"error": err})
		return nil
	}
	return memory.Build(recent)
}

func (s *Service) write(ctx context.Context, rec *history.Record, received time.Time) error {
	id, err := s.opts.NewID()
	if err != nil {
		return err
	}
	now := s.opts.Now()
	rec.ID = id
	rec.CreatedAt = now
	rec.Metrics.TotalMs = now.Sub(received).Milliseconds()
	return s.records.Insert(ctx, rec)
}

// internalFailure logs err, records the failure when the store allows it
// and returns the generic 500 answer.
func (s *Service) internalFailure(ctx context.Context, log logger.Logger, base history.Record, received time.Time, stage string, err error) *Result {
	log.Error("query processing failed", map[string]any{"stage": stage, "error": err})

	resp := models.Response{Type: models.ResponseError, Title: "Internal Server Error", Data: InternalErrorMessage}
	rec := base
	if rec.Intent == "" {
		rec.Intent = models.IntentUnknown
	}
	rec.Audit = history.ErrorTrail("internal_error", stage+": "+err.Error())
	rec.ResponseType = models.ResponseError
	rec.FinalResponse = resp
	res := &Result{Status: http.StatusInternalServerError, Response: resp}
	if werr := s.write(ctx, &rec, received); werr != nil {
		log.Warn("error record not written", map[string]any{"error": werr})
	} else {
		res.Record = &rec
	}
	observe(rec.Intent, "internal_error", received, s.opts.Now())
	return res
}

func scopeLabel(req Request) string {
	if req.Category == access.All {
		return "all categories"
	}
	return req.Category
}

func summaryTitle(in models.Intent, req Request) string {
	if in == models.IntentAdvisory {
		return "Recommendations for " + scopeLabel(req)
	}
	return "Summary for " + scopeLabel(req)
}

func outcome(status int, key *string) string {
	switch {
	case status == http.StatusBadRequest:
		return "rejected"
	case key == nil:
		return "uncached"
	default:
		return "answered"
	}
}

func observe(in models.Intent, outcome string, received, now time.Time) {
	metrics.QueriesTotal.WithLabelValues(string(in), outcome).Inc()
	metrics.QueryDuration.WithLabelValues(string(in)).Observe(now.Sub(received).Seconds())
}
