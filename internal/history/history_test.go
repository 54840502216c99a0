package history

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/review-insights/internal/logger"
	"github.com/suPer8Hu/review-insights/internal/models"
	"github.com/suPer8Hu/review-insights/internal/review"
	"github.com/suPer8Hu/review-insights/internal/store/redisstore"
	"gorm.io/gorm"
)

var t0 = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Record{}))
	return db
}

func strPtr(s string) *string { return &s }

func newRecord(id string, key *string, at time.Time) *Record {
	return &Record{
		ID:             id,
		UserID:         7,
		Role:           models.RoleAnalyst,
		Query:          "show nps trend",
		Intent:         models.IntentChart,
		DomainAtTime:   "retail",
		CategoryAtTime: "shoes",
		Audit:          ChartTrail(ChartAudit{Filter: review.Filter{Domain: review.OneOf("retail")}, Periods: 2}),
		ResponseType:   models.ResponseChart,
		FinalResponse:  models.Response{Type: models.ResponseChart, Title: "NPS Trend for shoes", Data: []any{}},
		CacheKey:       key,
		CreatedAt:      at,
	}
}

func TestFingerprint_PureAndOrderIndependent(t *testing.T) {
	a := &models.User{ID: 7, Role: models.RoleAnalyst,
		AssignedDomains: []string{"retail", "finance"}, AssignedCategories: []string{"shoes", "bags", "hats"}}
	b := &models.User{ID: 7, Role: models.RoleAnalyst,
		AssignedDomains: []string{"finance", "retail"}, AssignedCategories: []string{"hats", "shoes", "bags"}}

	fa := Fingerprint("show nps trend", "retail", "shoes", a)
	assert.Equal(t, fa, Fingerprint("show nps trend", "retail", "shoes", a))
	assert.Equal(t, fa, Fingerprint("show nps trend", "retail", "shoes", b))
	assert.Len(t, fa, 64)
	// caller's slices are left untouched
	assert.Equal(t, []string{"retail", "finance"}, a.AssignedDomains)

	assert.NotEqual(t, fa, Fingerprint("show nps trends", "retail", "shoes", a))
	assert.NotEqual(t, fa, Fingerprint("show nps trend", "retail", "bags", a))
	c := *a
	c.ID = 8
	assert.NotEqual(t, fa, Fingerprint("show nps trend", "retail", "shoes", &c))
	c = *a
	c.AssignedCategories = []string{"shoes"}
	assert.NotEqual(t, fa, Fingerprint("show nps trend", "retail", "shoes", &c))
}

func TestFingerprint_NilAndEmptySetsAgree(t *testing.T) {
	a := &models.User{ID: 1, Role: models.RoleAdmin}
	b := &models.User{ID: 1, Role: models.RoleAdmin, AssignedDomains: []string{}, AssignedCategories: []string{}}
	assert.Equal(t, Fingerprint("q", "all", "all", a), Fingerprint("q", "all", "all", b))
}

func TestRepo_FindFresh(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newRecord("01A", strPtr("fp1"), t0.Add(-30*time.Hour))))
	require.NoError(t, repo.Insert(ctx, newRecord("01B", strPtr("fp1"), t0.Add(-2*time.Hour))))
	require.NoError(t, repo.Insert(ctx, newRecord("01C", strPtr("fp1"), t0.Add(-1*time.Hour))))
	require.NoError(t, repo.Insert(ctx, newRecord("01D", nil, t0)))

	got, err := repo.FindFresh(ctx, "fp1", t0.Add(-24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "01C", got.ID)
	assert.Equal(t, AuditChart, got.Audit.Kind)
	require.NotNil(t, got.Audit.Chart)
	assert.Equal(t, 2, got.Audit.Chart.Periods)

	got, err = repo.FindFresh(ctx, "fp1", t0.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.FindFresh(ctx, "missing", t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepo_ListRecent(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, repo.Insert(ctx, newRecord(fmt.Sprintf("01R%02d", i), nil, t0.Add(-time.Duration(i)*time.Minute))))
	}
	other := newRecord("01OTHER", nil, t0)
	other.CategoryAtTime = "bags"
	require.NoError(t, repo.Insert(ctx, other))
	old := newRecord("01OLD", nil, t0.Add(-time.Hour))
	require.NoError(t, repo.Insert(ctx, old))

	got, err := repo.ListRecent(ctx, 7, "retail", "shoes", t0.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "01R00", got[0].ID)
	assert.Equal(t, "01R09", got[9].ID)
}

func TestRepo_ListReports(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r := newRecord(fmt.Sprintf("01P%02d", i), nil, t0.Add(time.Duration(i)*time.Minute))
		r.LLMPrompt = "prompt"
		if i%2 == 0 {
			r.UserID = 9
			r.ResponseType = models.ResponseSummary
		}
		require.NoError(t, repo.Insert(ctx, r))
	}

	page, err := repo.ListReports(ctx, ReportQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.Pages)
	require.Len(t, page.Reports, 2)
	assert.Equal(t, "01P04", page.Reports[0].ID)
	assert.Empty(t, page.Reports[0].LLMPrompt)

	uid := uint64(9)
	page, err = repo.ListReports(ctx, ReportQuery{UserID: &uid, ResponseType: "summary", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	for _, r := range page.Reports {
		assert.Equal(t, uint64(9), r.UserID)
	}
}

type cacheFixture struct {
	repo  *Repo
	index *redisstore.Store
	mr    *miniredis.Miniredis
	cache *Cache
	now   time.Time
}

func newCacheFixture(t *testing.T) *cacheFixture {
	t.Helper()
	f := &cacheFixture{repo: NewRepo(openTestDB(t)), now: t0}
	f.mr = miniredis.RunT(t)
	f.index = redisstore.NewFromClient(redis.NewClient(&redis.Options{Addr: f.mr.Addr(), MaxRetries: -1}))
	f.cache = NewCache(f.repo, logger.NewTest(t),
		WithIndex(f.index),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func TestCache_LookupNilOrEmpty(t *testing.T) {
	f := newCacheFixture(t)
	got, err := f.cache.Lookup(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.cache.Lookup(context.Background(), strPtr(""))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_RememberThenLookupViaIndex(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	rec := newRecord("01X", strPtr("fpx"), t0.Add(-time.Hour))
	require.NoError(t, f.repo.Insert(ctx, rec))
	f.cache.Remember(ctx, rec)

	assert.Equal(t, 23*time.Hour, f.mr.TTL("insights:fp:fpx"))

	got, err := f.cache.Lookup(ctx, strPtr("fpx"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "01X", got.ID)
}

func TestCache_StaleRecordMisses(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	rec := newRecord("01S", strPtr("fps"), t0.Add(-25*time.Hour))
	require.NoError(t, f.repo.Insert(ctx, rec))
	// index entry that outlived its record's freshness
	require.NoError(t, f.index.SetFingerprint(ctx, "fps", "01S", time.Hour))

	got, err := f.cache.Lookup(ctx, strPtr("fps"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_NilKeyRecordNeverServed(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	rec := newRecord("01N", nil, t0)
	require.NoError(t, f.repo.Insert(ctx, rec))
	f.cache.Remember(ctx, rec)
	require.NoError(t, f.index.SetFingerprint(ctx, "fpn", "01N", time.Hour))

	got, err := f.cache.Lookup(ctx, strPtr("fpn"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_IndexDownFallsBackToStore(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Insert(ctx, newRecord("01F", strPtr("fpf"), t0.Add(-time.Minute))))
	f.mr.Close()

	got, err := f.cache.Lookup(ctx, strPtr("fpf"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "01F", got.ID)

	// write failures are logged, not returned
	f.cache.Remember(ctx, got)
}

func TestCache_WithoutIndex(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	cache := NewCache(repo, logger.NewNop(), WithClock(func() time.Time { return t0 }))

	require.NoError(t, repo.Insert(ctx, newRecord("01W", strPtr("fpw"), t0.Add(-time.Hour))))
	cache.Remember(ctx, &Record{ID: "01W", CacheKey: strPtr("fpw"), CreatedAt: t0})

	got, err := cache.Lookup(ctx, strPtr("fpw"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "01W", got.ID)
}
