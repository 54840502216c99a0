package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/suPer8Hu/review-insights/internal/models"
)

type fingerprintInput struct {
	Query              string      `json:"query"`
	Domain             string      `json:"domain"`
	Category           string      `json:"category"`
	UserID             uint64      `json:"userId"`
	Role               models.Role `json:"role"`
	AssignedCategories []string    `json:"assignedCategories"`
	AssignedDomains    []string    `json:"assignedDomains"`
}

// Fingerprint identifies a normalized request for one identity and its
// access scope. Assignment order does not affect the result.
func Fingerprint(query, domain, category string, u *models.User) string {
	in := fingerprintInput{
		Query:              query,
		Domain:             domain,
		Category:           category,
		AssignedCategories: sortedCopy(nil),
		AssignedDomains:    sortedCopy(nil),
	}
	if u != nil {
		in.UserID = u.ID
		in.Role = u.Role
		in.AssignedCategories = sortedCopy(u.AssignedCategories)
		in.AssignedDomains = sortedCopy(u.AssignedDomains)
	}

	// a struct of strings and slices always marshals
	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
