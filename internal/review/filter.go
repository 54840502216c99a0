package review

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	PromoterMin  = 9
	DetractorMax = 6
)

// Match constrains one scope column. The zero value matches every row;
// a restricted Match with no values matches none.
type Match struct {
	Restricted bool     `json:"restricted"`
	Values     []string `json:"values,omitempty"`
}

func AnyValue() Match { return Match{} }

func OneOf(values ...string) Match {
	return Match{Restricted: true, Values: append([]string(nil), values...)}
}

// Period is a calendar month, the grain of the review dataset.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (p Period) index() int { return p.Year*12 + p.Month - 1 }

func (p Period) String() string { return fmt.Sprintf("%d-%d", p.Year, p.Month) }

func periodOf(t time.Time) Period { return Period{Year: t.Year(), Month: int(t.Month())} }

func periodFromIndex(i int) Period { return Period{Year: i / 12, Month: i%12 + 1} }

// Filter is a conjunction over scope, rating and a trailing time window.
type Filter struct {
	Domain    Match   `json:"domain"`
	Category  Match   `json:"category"`
	MinRating *int    `json:"minRating,omitempty"`
	MaxRating *int    `json:"maxRating,omitempty"`
	Since     *Period `json:"since,omitempty"`
}

func (f Filter) Apply(tx *gorm.DB) *gorm.DB {
	tx = applyMatch(tx, "domain", f.Domain)
	tx = applyMatch(tx, "category", f.Category)
	if f.MinRating != nil {
		tx = tx.Where("rating >= ?", *f.MinRating)
	}
	if f.MaxRating != nil {
		tx = tx.Where("rating <= ?", *f.MaxRating)
	}
	if f.Since != nil {
		tx = tx.Where("(year * 12 + month - 1) >= ?", f.Since.index())
	}
	return tx
}

func applyMatch(tx *gorm.DB, column string, m Match) *gorm.DB {
	if !m.Restricted {
		return tx
	}
	switch len(m.Values) {
	case 0:
		return tx.Where("1 = 0")
	case 1:
		return tx.Where(column+" = ?", m.Values[0])
	default:
		return tx.Where(column+" IN ?", m.Values)
	}
}

// String renders the filter for audit records.
func (f Filter) String() string {
	parts := []string{describeMatch("domain", f.Domain), describeMatch("category", f.Category)}
	if f.MinRating != nil {
		parts = append(parts, "rating>="+strconv.Itoa(*f.MinRating))
	}
	if f.MaxRating != nil {
		parts = append(parts, "rating<="+strconv.Itoa(*f.MaxRating))
	}
	if f.Since != nil {
		parts = append(parts, "since "+f.Since.String())
	}
	return strings.Join(parts, " AND ")
}

func describeMatch(column string, m Match) string {
	if !m.Restricted {
		return column + "=*"
	}
	if len(m.Values) == 1 {
		return column + "=" + m.Values[0]
	}
	return column + " IN (" + strings.Join(m.Values, ",") + ")"
}

var (
	negativeWords = regexp.MustCompile(`\b(unhappy|worst|bad)\b`)
	positiveWords = regexp.MustCompile(`\b(happy|best|good)\b`)

	lastN    = regexp.MustCompile(`\b(?:last|past)\s+(\d{1,3})\s+(months?|years?)\b`)
	lastOne  = regexp.MustCompile(`\b(?:last|past)\s+(month|quarter|year)\b`)
	thisYear = regexp.MustCompile(`\bthis\s+year\b`)
	monthsIn = map[string]int{"month": 1, "months": 1, "quarter": 3, "year": 12, "years": 12}
)

// WithSentiment narrows the rating range from sentiment words in a
// normalized query. Negative words win when both kinds appear.
func (f Filter) WithSentiment(query string) Filter {
	switch {
	case negativeWords.MatchString(query):
		v := DetractorMax
		f.MaxRating = &v
	case positiveWords.MatchString(query):
		v := PromoterMin
		f.MinRating = &v
	}
	return f
}

// WithTimeWindow applies a trailing window such as "last 6 months" or
// "this year", counted in whole months ending with the month of now.
func (f Filter) WithTimeWindow(query string, now time.Time) Filter {
	current := periodOf(now).index()
	months := 0
	switch {
	case lastN.MatchString(query):
		m := lastN.FindStringSubmatch(query)
		n, _ := strconv.Atoi(m[1])
		months = n * monthsIn[m[2]]
	case lastOne.MatchString(query):
		months = monthsIn[lastOne.FindStringSubmatch(query)[1]]
	case thisYear.MatchString(query):
		months = int(now.Month())
	}
	if months <= 0 {
		return f
	}
	since := periodFromIndex(current - months + 1)
	f.Since = &since
	return f
}
