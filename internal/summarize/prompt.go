package summarize

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/suPer8Hu/review-insights/internal/memory"
	"github.com/suPer8Hu/review-insights/internal/review"
)

const (
	quoteLimit = 400
	ellipsis   = "..."
)

// SelectRepresentative picks the longest, median and shortest of
// candidates, which must already be sorted longest first.
func SelectRepresentative(candidates []review.Review) []review.Review {
	n := len(candidates)
	if n == 0 {
		return nil
	}
	idx := []int{0}
	if n > 2 {
		idx = append(idx, n/2)
	}
	if n > 1 {
		idx = append(idx, n-1)
	}

	out := make([]review.Review, 0, len(idx))
	seen := make(map[int]struct{}, len(idx))
	for _, i := range idx {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, candidates[i])
	}
	return out
}

// Truncate cuts s to limit characters and marks the cut with "...".
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + ellipsis
}

func quoteLine(r review.Review) string {
	return fmt.Sprintf("[Rating: %d/10] Title: %s | Review: %s", r.Rating, r.Title, Truncate(r.Text, quoteLimit))
}

type promptInput struct {
	Query    string
	Domain   string
	Category string
	Advisory bool
	Memory   *memory.Memory
	Quotes   []string
}

func buildPrompt(in promptInput) string {
	mem := "null"
	if in.Memory != nil {
		if b, err := json.Marshal(in.Memory); err == nil {
			mem = string(b)
		}
	}

	var b strings.Builder
	b.WriteString("You are an expert enterprise data analyst. Answer the user's query strictly based on the provided customer review excerpts.\n\n")
	fmt.Fprintf(&b, "User Query: %q\n", in.Query)
	fmt.Fprintf(&b, "Scope: domain=%s, category=%s\n", in.Domain, in.Category)
	fmt.Fprintf(&b, "Conversation Memory: %s\n\n", mem)

	b.WriteString("Instructions:\n")
	if in.Advisory {
		b.WriteString("- Recommend concrete, prioritized actions that address the issues raised in these quotes.\n")
		b.WriteString("- Tie every recommendation to at least one quote.\n")
	} else {
		b.WriteString("- Identify the specific reasons for the ratings based ONLY on these quotes.\n")
	}
	b.WriteString("- Do not hallucinate or add external knowledge.\n")
	b.WriteString("- Format in clean Markdown (bullet points).\n")
	b.WriteString("- Keep it concise and professional.\n")
	if in.Memory != nil {
		b.WriteString("- The query may refer to earlier answers (\"it\", \"that\", \"this trend\"). Resolve such references against lastChart and lastSummary in the conversation memory.\n")
	} else {
		b.WriteString("- Conversation memory is null: treat this as a standalone question and do not assume earlier context.\n")
	}

	b.WriteString("\nExtracted Review Quotes:\n")
	b.WriteString(strings.Join(in.Quotes, "\n\n"))
	return b.String()
}
