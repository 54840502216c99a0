// Package memory condenses recent history into the context object used to
// resolve follow-up questions.
package memory

import (
	"strings"
	"unicode/utf8"

	"github.com/suPer8Hu/review-insights/internal/history"
	"github.com/suPer8Hu/review-insights/internal/models"
)

const (
	MaxRecords       = 10
	excerptLimit     = 500
	maxPreviousChart = 3
)

type ChartRef struct {
	Title      string `json:"title"`
	PointCount int    `json:"pointCount"`
}

type SummaryRef struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

type PreviousChart struct {
	Title string `json:"title"`
	Query string `json:"query"`
}

type Memory struct {
	LastIntent     models.Intent   `json:"lastIntent,omitempty"`
	LastChart      *ChartRef       `json:"lastChart"`
	LastSummary    *SummaryRef     `json:"lastSummary"`
	PreviousCharts []PreviousChart `json:"previousCharts"`
}

// Build expects records newest first. It returns nil when there is
// nothing to remember.
func Build(records []history.Record) *Memory {
	if len(records) == 0 {
		return nil
	}
	if len(records) > MaxRecords {
		records = records[:MaxRecords]
	}

	m := &Memory{PreviousCharts: []PreviousChart{}}
	for i := range records {
		r := &records[i]

		if m.LastIntent == "" && r.Intent != "" && r.Intent != models.IntentUnknown {
			m.LastIntent = r.Intent
		}

		switch r.FinalResponse.Type {
		case models.ResponseChart:
			if m.LastChart == nil {
				m.LastChart = &ChartRef{Title: r.FinalResponse.Title, PointCount: pointCount(r)}
			}
			if len(m.PreviousCharts) < maxPreviousChart {
				m.PreviousCharts = append(m.PreviousCharts, PreviousChart{Title: r.FinalResponse.Title, Query: r.Query})
			}
		case models.ResponseSummary:
			if m.LastSummary == nil && summarySucceeded(r) {
				text, _ := r.FinalResponse.Data.(string)
				m.LastSummary = &SummaryRef{Title: r.FinalResponse.Title, Excerpt: Excerpt(text, excerptLimit)}
			}
		}
	}
	return m
}

func pointCount(r *history.Record) int {
	if r.Audit.Chart != nil {
		return r.Audit.Chart.Periods
	}
	switch d := r.FinalResponse.Data.(type) {
	case []any:
		return len(d)
	case []map[string]any:
		return len(d)
	}
	return 0
}

// degraded answers carry no content worth referring back to
func summarySucceeded(r *history.Record) bool {
	if r.Audit.Summary != nil {
		return r.Audit.Summary.Success
	}
	return true
}

// Excerpt collapses whitespace and cuts s to at most limit runes.
func Excerpt(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
