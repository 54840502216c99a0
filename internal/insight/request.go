package insight

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrValidation = errors.New("validation failed")

type Request struct {
	Query    string `json:"query"`
	Domain   string `json:"domain"`
	Category string `json:"category"`
	// ReceivedAt anchors the total latency metric. Zero means "now".
	ReceivedAt time.Time `json:"-"`
}

// Normalize trims and lowercases every field. It is applied once, before
// fingerprinting, so equivalent requests share a cache entry.
func Normalize(r Request) (Request, error) {
	r.Query = strings.ToLower(strings.TrimSpace(r.Query))
	r.Domain = strings.ToLower(strings.TrimSpace(r.Domain))
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))

	var missing []string
	if r.Query == "" {
		missing = append(missing, "query")
	}
	if r.Domain == "" {
		missing = append(missing, "domain")
	}
	if r.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return r, fmt.Errorf("%w: missing required fields (%s)", ErrValidation, strings.Join(missing, ", "))
	}
	return r, nil
}
