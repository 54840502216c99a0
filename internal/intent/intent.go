// Package intent maps normalized queries to what the user is asking for.
// It is keyword based on purpose; the rules are ordered and the first
// matching group wins.
package intent

import (
	"strings"
	"unicode"

	"github.com/suPer8Hu/review-insights/internal/memory"
	"github.com/suPer8Hu/review-insights/internal/models"
)

// VagueTokenLimit is the longest query (in whitespace-separated tokens)
// that may inherit the previous turn's intent.
const VagueTokenLimit = 5

type rule struct {
	intent   models.Intent
	keywords []string
}

// advisory phrasing often contains summary words, so it is checked first
var rules = []rule{
	{models.IntentAdvisory, []string{"how", "increase", "improve", "recommend", "suggest", "advice", "strategy"}},
	{models.IntentSummary, []string{"summary", "why", "reason", "feedback", "insight", "analysis", "complaint"}},
	{models.IntentChart, []string{"trend", "trends", "show", "plot", "graph", "chart"}},
}

func words(q string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func Classify(q string) models.Intent {
	w := words(q)
	for _, r := range rules {
		for _, k := range r.keywords {
			if _, ok := w[k]; ok {
				return r.intent
			}
		}
	}
	_, nps := w["nps"]
	_, show := w["show"]
	if nps && show {
		return models.IntentChart
	}
	return models.IntentUnknown
}

func IsVague(q string) bool {
	return len(strings.Fields(q)) <= VagueTokenLimit
}

// Resolve classifies q and lets short unmatched follow-ups inherit the
// last intent from mem. inherited reports whether that happened.
func Resolve(q string, mem *memory.Memory) (models.Intent, bool) {
	in := Classify(q)
	if in != models.IntentUnknown {
		return in, false
	}
	if mem == nil || mem.LastIntent == "" || mem.LastIntent == models.IntentUnknown || !IsVague(q) {
		return in, false
	}
	return mem.LastIntent, true
}
