package review

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MonthlyRow is one (year, month) bucket of the NPS aggregation.
type MonthlyRow struct {
	Year       int
	Month      int
	Total      int64
	Promoters  int64
	Detractors int64
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Insert(ctx context.Context, reviews []Review) error {
	if len(reviews) == 0 {
		return nil
	}
	// re-importing the same export overwrites rows by review id
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(reviews, 200).Error
}

// AggregateMonthly groups matching reviews by (year, month), ascending.
func (r *Repo) AggregateMonthly(ctx context.Context, f Filter) ([]MonthlyRow, error) {
	var rows []MonthlyRow
	err := r.db.WithContext(ctx).
		Model(&Review{}).
		Scopes(f.Apply).
		Select(
			"year, month, COUNT(*) AS total, "+
				"SUM(CASE WHEN rating >= ? THEN 1 ELSE 0 END) AS promoters, "+
				"SUM(CASE WHEN rating <= ? THEN 1 ELSE 0 END) AS detractors",
			PromoterMin, DetractorMax,
		).
		Group("year, month").
		Order("year ASC, month ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindLongest returns matching reviews with non-empty text, longest first.
// Ties break on review id so the selection is stable.
func (r *Repo) FindLongest(ctx context.Context, f Filter, limit int) ([]Review, error) {
	var out []Review
	err := r.db.WithContext(ctx).
		Where("review_text <> ''").
		Scopes(f.Apply).
		Order("text_length DESC").
		Order("review_id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
