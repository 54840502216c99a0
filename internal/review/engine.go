package review

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

const DefaultMaxPeriods = 12

type Store interface {
	AggregateMonthly(ctx context.Context, f Filter) ([]MonthlyRow, error)
	FindLongest(ctx context.Context, f Filter, limit int) ([]Review, error)
}

type Point struct {
	Period       string `json:"period"`
	TotalRecords int64  `json:"totalRecords"`
	Score        int    `json:"score"`
}

type Trend struct {
	Data              []Point `json:"data"`
	FilterDescription string  `json:"filterDescription"`
	ExecutionTimeMs   int64   `json:"executionTimeMs"`
}

// Engine computes chart metrics over a Store.
type Engine struct {
	store      Store
	maxPeriods int
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, maxPeriods: DefaultMaxPeriods}
}

// NPSTrend returns the monthly NPS series for f, limited to the most
// recent periods.
func (e *Engine) NPSTrend(ctx context.Context, f Filter) (*Trend, error) {
	start := time.Now()
	rows, err := e.store.AggregateMonthly(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("aggregate nps: %w", err)
	}
	return &Trend{
		Data:              ComputeTrend(rows, e.maxPeriods),
		FilterDescription: f.String(),
		ExecutionTimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

// ComputeTrend scores each bucket and keeps the last maxPeriods in
// ascending period order.
func ComputeTrend(rows []MonthlyRow, maxPeriods int) []Point {
	sorted := append([]MonthlyRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Year != sorted[j].Year {
			return sorted[i].Year < sorted[j].Year
		}
		return sorted[i].Month < sorted[j].Month
	})
	if maxPeriods > 0 && len(sorted) > maxPeriods {
		sorted = sorted[len(sorted)-maxPeriods:]
	}

	out := make([]Point, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, Point{
			Period:       Period{Year: r.Year, Month: r.Month}.String(),
			TotalRecords: r.Total,
			Score:        Score(r.Promoters, r.Detractors, r.Total),
		})
	}
	return out
}

func Score(promoters, detractors, total int64) int {
	if total == 0 {
		return 0
	}
	t := float64(total)
	return int(math.Round(100 * (float64(promoters)/t - float64(detractors)/t)))
}
