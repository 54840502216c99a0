package models

type Intent string

const (
	IntentChart    Intent = "chart"
	IntentSummary  Intent = "summary"
	IntentAdvisory Intent = "advisory"
	IntentUnknown  Intent = "unknown"
)

type ResponseType string

const (
	ResponseChart   ResponseType = "chart"
	ResponseSummary ResponseType = "summary"
	ResponseError   ResponseType = "error"
)

// Response is the payload handed to the rendering layer. Data is a chart
// series for charts and a string otherwise.
type Response struct {
	Type            ResponseType `json:"type"`
	Title           string       `json:"title"`
	Data            any          `json:"data"`
	IntentInherited bool         `json:"intentInherited,omitempty"`
}
