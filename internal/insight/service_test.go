package insight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/review-insights/internal/history"
	"github.com/suPer8Hu/review-insights/internal/logger"
	"github.com/suPer8Hu/review-insights/internal/models"
	"github.com/suPer8Hu/review-insights/internal/review"
	"github.com/suPer8Hu/review-insights/internal/summarize"
	"gorm.io/gorm"
)

type fakeCharts struct {
	calls int
	last  review.Filter
	err   error
}

func (f *fakeCharts) NPSTrend(ctx context.Context, flt review.Filter) (*review.Trend, error) {
	f.calls++
	f.last = flt
	if f.err != nil {
		return nil, f.err
	}
	return &review.Trend{
		Data:              []review.Point{{Period: "2025-1", TotalRecords: 8, Score: 0}, {Period: "2025-2", TotalRecords: 4, Score: 50}},
		FilterDescription: flt.String(),
		ExecutionTimeMs:   3,
	}, nil
}

type fakeSummarizer struct {
	calls int
	last  summarize.Input
	res   summarize.Result
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, in summarize.Input) (*summarize.Result, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	r := f.res
	r.Filter = in.Filter.WithSentiment(in.Query)
	return &r, nil
}

type failingStore struct {
	history.Store
}

func (failingStore) Insert(ctx context.Context, rec *history.Record) error {
	return errors.New("store unreachable")
}

type fixture struct {
	db      *gorm.DB
	repo    *history.Repo
	charts  *fakeCharts
	summary *fakeSummarizer
	svc     *Service
	now     time.Time
	seq     int
}

var (
	analyst = &models.User{ID: 7, Role: models.RoleAnalyst,
		AssignedDomains: []string{"retail"}, AssignedCategories: []string{"shoes", "bags"}, IsActive: true}
	admin = &models.User{ID: 1, Role: models.RoleAdmin, IsActive: true}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&history.Record{}))

	f := &fixture{
		db:     db,
		repo:   history.NewRepo(db),
		charts: &fakeCharts{},
		summary: &fakeSummarizer{res: summarize.Result{
			SummaryText: "- sizing runs small", ModelLatencyMs: 120, Success: true, Attempts: 1,
			SelectedIDs: []int64{1, 2}, Quotes: []string{"a", "b"}, PromptText: "prompt", CandidateCount: 2,
		}},
		now: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = f.build(f.repo)
	return f
}

func (f *fixture) build(store history.Store) *Service {
	clock := func() time.Time { return f.now }
	cache := history.NewCache(store, logger.NewNop(), history.WithClock(clock))
	return NewService(store, cache, f.charts, f.summary, logger.NewNop(), Options{
		Now: clock,
		NewID: func() (string, error) {
			f.seq++
			return fmt.Sprintf("01REC%04d", f.seq), nil
		},
	})
}

func (f *fixture) records(t *testing.T) []history.Record {
	t.Helper()
	var out []history.Record
	require.NoError(t, f.db.Order("created_at ASC, id ASC").Find(&out).Error)
	return out
}

func ask(t *testing.T, f *fixture, u *models.User, q, domain, category string) *Result {
	t.Helper()
	res, err := f.svc.Ask(context.Background(), u, Request{Query: q, Domain: domain, Category: category})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestAsk_ChartThenCacheHit(t *testing.T) {
	f := newFixture(t)

	first := ask(t, f, analyst, "  Show NPS Trend ", "Retail", "SHOES")
	assert.Equal(t, http.StatusOK, first.Status)
	assert.Equal(t, models.ResponseChart, first.Response.Type)
	assert.Equal(t, "NPS Trend for shoes", first.Response.Title)
	require.NotNil(t, first.Record.CacheKey)
	assert.Equal(t, history.Fingerprint("show nps trend", "retail", "shoes", analyst), *first.Record.CacheKey)
	assert.Equal(t, review.OneOf("retail"), f.charts.last.Domain)
	assert.Equal(t, review.OneOf("shoes"), f.charts.last.Category)

	f.now = f.now.Add(time.Hour)
	second := ask(t, f, analyst, "show nps trend", "retail", "shoes")
	assert.Equal(t, http.StatusOK, second.Status)
	assert.Equal(t, 1, f.charts.calls)
	assert.True(t, second.Record.Metrics.CacheHit)
	assert.Nil(t, second.Record.CacheKey)
	require.NotNil(t, second.Record.ServedFromID)
	assert.Equal(t, first.Record.ID, *second.Record.ServedFromID)
	assert.Equal(t, models.IntentChart, second.Record.Intent)

	recs := f.records(t)
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Metrics.CacheHit)
	assert.True(t, recs[1].Metrics.CacheHit)
	assert.Equal(t, history.AuditChart, recs[1].Audit.Kind)
}

func TestAsk_StaleCacheRecomputes(t *testing.T) {
	f := newFixture(t)
	ask(t, f, analyst, "show nps trend", "retail", "shoes")

	f.now = f.now.Add(25 * time.Hour)
	res := ask(t, f, analyst, "show nps trend", "retail", "shoes")
	assert.False(t, res.Record.Metrics.CacheHit)
	assert.Equal(t, 2, f.charts.calls)
}

func TestAsk_DifferentScopeDoesNotShareCache(t *testing.T) {
	f := newFixture(t)
	ask(t, f, analyst, "show nps trend", "retail", "shoes")
	ask(t, f, analyst, "show nps trend", "retail", "bags")
	ask(t, f, admin, "show nps trend", "retail", "shoes")
	assert.Equal(t, 3, f.charts.calls)
}

func TestAsk_UnknownIntentIsRecordedButNeverCached(t *testing.T) {
	f := newFixture(t)

	res := ask(t, f, analyst, "hello there", "retail", "shoes")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, models.ResponseError, res.Response.Type)
	assert.Equal(t, UnknownIntentMessage, res.Response.Data)
	assert.Nil(t, res.Record.CacheKey)
	assert.Equal(t, models.IntentUnknown, res.Record.Intent)

	res = ask(t, f, analyst, "hello there", "retail", "shoes")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.False(t, res.Record.Metrics.CacheHit)

	recs := f.records(t)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, models.ResponseError, r.ResponseType)
		assert.Nil(t, r.CacheKey)
	}
	assert.Equal(t, 0, f.charts.calls+f.summary.calls)
}

func TestAsk_SummaryCachedOnSuccess(t *testing.T) {
	f := newFixture(t)

	res := ask(t, f, analyst, "why are customers unhappy", "retail", "all")
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Summary for all categories", res.Response.Title)
	assert.Equal(t, "- sizing runs small", res.Response.Data)
	require.NotNil(t, res.Record.CacheKey)
	assert.Equal(t, int64(120), res.Record.Metrics.LLMLatencyMs)
	assert.Equal(t, []int64{1, 2}, res.Record.SelectedReviewIDs)
	assert.Equal(t, "prompt", res.Record.LLMPrompt)

	assert.Equal(t, review.OneOf("shoes", "bags"), f.summary.last.Filter.Category)
	require.NotNil(t, res.Record.Audit.Summary)
	require.NotNil(t, res.Record.Audit.Summary.Filter.MaxRating)
	assert.Equal(t, 6, *res.Record.Audit.Summary.Filter.MaxRating)

	again := ask(t, f, analyst, "why are customers unhappy", "retail", "all")
	assert.True(t, again.Record.Metrics.CacheHit)
	assert.Equal(t, 1, f.summary.calls)
}

func TestAsk_DegradedSummaryNotCached(t *testing.T) {
	f := newFixture(t)
	f.summary.res = summarize.Result{SummaryText: summarize.DegradedMessage, Success: false, Attempts: 2}

	res := ask(t, f, analyst, "give me a summary", "retail", "shoes")
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, summarize.DegradedMessage, res.Response.Data)
	assert.Nil(t, res.Record.CacheKey)
	assert.False(t, res.Record.Audit.Summary.Success)

	ask(t, f, analyst, "give me a summary", "retail", "shoes")
	assert.Equal(t, 2, f.summary.calls)
}

func TestAsk_NoMatchSummaryNotCached(t *testing.T) {
	f := newFixture(t)
	f.summary.res = summarize.Result{SummaryText: summarize.NoMatchMessage, Success: true}

	res := ask(t, f, analyst, "why", "retail", "shoes")
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Nil(t, res.Record.CacheKey)
}

func TestAsk_AdvisoryRoutesToSummarizer(t *testing.T) {
	f := newFixture(t)

	res := ask(t, f, analyst, "how can we improve based on feedback", "retail", "shoes")
	assert.Equal(t, models.ResponseSummary, res.Response.Type)
	assert.Equal(t, "Recommendations for shoes", res.Response.Title)
	assert.Equal(t, models.IntentAdvisory, f.summary.last.Intent)
	assert.Equal(t, models.IntentAdvisory, res.Record.Intent)
	assert.True(t, res.Record.Audit.Summary.Advisory)
}

func TestAsk_VagueFollowUpInheritsIntent(t *testing.T) {
	f := newFixture(t)
	ask(t, f, analyst, "show nps trend", "retail", "shoes")

	f.now = f.now.Add(5 * time.Minute)
	res := ask(t, f, analyst, "and mobile?", "retail", "shoes")
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, models.ResponseChart, res.Response.Type)
	assert.True(t, res.Response.IntentInherited)
	assert.True(t, res.Record.IntentInherited)
	assert.Equal(t, 2, f.charts.calls)
}

func TestAsk_MemoryPassedToSummarizer(t *testing.T) {
	f := newFixture(t)
	ask(t, f, analyst, "show nps trend", "retail", "shoes")

	f.now = f.now.Add(time.Minute)
	ask(t, f, analyst, "why did it drop", "retail", "shoes")
	require.NotNil(t, f.summary.last.Memory)
	assert.Equal(t, models.IntentChart, f.summary.last.Memory.LastIntent)
	require.NotNil(t, f.summary.last.Memory.LastChart)
	assert.Equal(t, 2, f.summary.last.Memory.LastChart.PointCount)
}

func TestAsk_MemoryWindowExpires(t *testing.T) {
	f := newFixture(t)
	ask(t, f, analyst, "show nps trend", "retail", "shoes")

	f.now = f.now.Add(31 * time.Minute)
	res := ask(t, f, analyst, "and mobile?", "retail", "shoes")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.False(t, res.Response.IntentInherited)
}

func TestAsk_MemoryIsScopedToDomainAndCategory(t *testing.T) {
	f := newFixture(t)
	ask(t, f, analyst, "show nps trend", "retail", "shoes")

	res := ask(t, f, analyst, "and mobile?", "retail", "bags")
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

func TestAsk_ValidationRejectsBeforeStore(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ask(context.Background(), analyst, Request{Query: "  ", Domain: "retail", Category: "shoes"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Ask(context.Background(), analyst, Request{Query: "show", Domain: "", Category: ""})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Ask(context.Background(), nil, Request{Query: "show", Domain: "all", Category: "all"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, f.records(t))
}

func TestAsk_EngineFailureIsGeneric500(t *testing.T) {
	f := newFixture(t)
	f.charts.err = errors.New("connection refused")

	res := ask(t, f, analyst, "show nps trend", "retail", "shoes")
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, InternalErrorMessage, res.Response.Data)
	require.NotNil(t, res.Record)
	assert.Nil(t, res.Record.CacheKey)
	assert.Equal(t, history.AuditError, res.Record.Audit.Kind)
	assert.NotContains(t, fmt.Sprint(res.Response.Data), "connection refused")
}

func TestAsk_StoreFailureStillAnswers500(t *testing.T) {
	f := newFixture(t)
	f.svc = f.build(failingStore{Store: f.repo})

	res := ask(t, f, analyst, "show nps trend", "retail", "shoes")
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Nil(t, res.Record)
}

func TestAsk_TotalTimeSpansFromReceipt(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Ask(context.Background(), analyst, Request{
		Query: "show nps trend", Domain: "retail", Category: "shoes",
		ReceivedAt: f.now.Add(-250 * time.Millisecond),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), res.Record.Metrics.TotalMs)
}

func TestAsk_TimeWindowReachesEngine(t *testing.T) {
	f := newFixture(t)
	ask(t, f, analyst, "show nps trend for the last 3 months", "retail", "shoes")
	require.NotNil(t, f.charts.last.Since)
	assert.Equal(t, review.Period{Year: 2025, Month: 1}, *f.charts.last.Since)
}

func TestAsk_CacheInvariantHoldsAcrossOutcomes(t *testing.T) {
	f := newFixture(t)
	ask(t, f, analyst, "show nps trend", "retail", "shoes")
	ask(t, f, analyst, "tell me something about the store today please", "retail", "shoes")
	ask(t, f, analyst, "why are customers unhappy", "retail", "shoes")
	f.summary.res = summarize.Result{SummaryText: summarize.DegradedMessage, Attempts: 2}
	ask(t, f, analyst, "summary of complaints", "retail", "shoes")
	f.summary.res = summarize.Result{SummaryText: summarize.NoMatchMessage, Success: true}
	ask(t, f, analyst, "feedback on laces", "retail", "shoes")

	recs := f.records(t)
	require.Len(t, recs, 5)
	for _, r := range recs {
		if r.ResponseType == models.ResponseError {
			assert.Nil(t, r.CacheKey, r.Query)
		}
		if r.ResponseType == models.ResponseSummary && r.Metrics.LLMLatencyMs == 0 {
			assert.Nil(t, r.CacheKey, r.Query)
		}
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(Request{Query: "  Why SO Bad ", Domain: " Retail", Category: "ALL "})
	require.NoError(t, err)
	assert.Equal(t, Request{Query: "why so bad", Domain: "retail", Category: "all"}, got)

	_, err = Normalize(Request{Domain: "retail"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "query, category")
}
