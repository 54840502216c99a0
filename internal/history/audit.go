package history

import "github.com/suPer8Hu/review-insights/internal/review"

type AuditKind string

const (
	AuditChart   AuditKind = "chart"
	AuditSummary AuditKind = "summary"
	AuditError   AuditKind = "error"
)

// Audit describes how an answer was produced. Exactly one variant is set,
// matching Kind.
type Audit struct {
	Kind    AuditKind     `json:"kind"`
	Chart   *ChartAudit   `json:"chart,omitempty"`
	Summary *SummaryAudit `json:"summary,omitempty"`
	Error   *ErrorAudit   `json:"error,omitempty"`
}

type ChartAudit struct {
	Filter      review.Filter `json:"filter"`
	Description string        `json:"description"`
	Periods     int           `json:"periods"`
}

type SummaryAudit struct {
	Filter         review.Filter `json:"filter"`
	Description    string        `json:"description"`
	Advisory       bool          `json:"advisory,omitempty"`
	CandidateCount int           `json:"candidateCount"`
	Attempts       int           `json:"attempts"`
	Success        bool          `json:"success"`
}

type ErrorAudit struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func ChartTrail(a ChartAudit) Audit { return Audit{Kind: AuditChart, Chart: &a} }

func SummaryTrail(a SummaryAudit) Audit { return Audit{Kind: AuditSummary, Summary: &a} }

func ErrorTrail(reason, detail string) Audit {
	return Audit{Kind: AuditError, Error: &ErrorAudit{Reason: reason, Detail: detail}}
}
