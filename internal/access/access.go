// Package access derives the data scope a user may query.
package access

import (
	"errors"
	"slices"

	"github.com/suPer8Hu/review-insights/internal/models"
	"github.com/suPer8Hu/review-insights/internal/review"
)

// All is the request value meaning "every domain (or category) I can see".
const All = "all"

var ErrAccessDenied = errors.New("access denied")

// Resolve turns the requested domain and category into a scope filter.
// Inputs must already be normalized. Explicit values from non-admins are
// trusted here; Check is the gate that rejects them.
func Resolve(u *models.User, domain, category string) review.Filter {
	return review.Filter{
		Domain:   scope(u, domain, u.AssignedDomains),
		Category: scope(u, category, u.AssignedCategories),
	}
}

func scope(u *models.User, requested string, assigned []string) review.Match {
	switch {
	case requested != All:
		return review.OneOf(requested)
	case u.IsAdmin():
		return review.AnyValue()
	default:
		return review.OneOf(assigned...)
	}
}

// Check rejects a non-admin naming a domain or category outside their
// assignments.
func Check(u *models.User, domain, category string) error {
	if u == nil {
		return ErrAccessDenied
	}
	if u.IsAdmin() {
		return nil
	}
	if domain != All && !slices.Contains(u.AssignedDomains, domain) {
		return ErrAccessDenied
	}
	if category != All && !slices.Contains(u.AssignedCategories, category) {
		return ErrAccessDenied
	}
	return nil
}
