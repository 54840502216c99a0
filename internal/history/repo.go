package history

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Insert(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindFresh returns the newest record carrying key created at or after
// since, or nil when there is none.
func (r *Repo) FindFresh(ctx context.Context, key string, since time.Time) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).
		Where("cache_key = ? AND created_at >= ?", key, since).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecent returns records in DESC created_at order (newest -> oldest).
func (r *Repo) ListRecent(ctx context.Context, userID uint64, domain, category string, since time.Time, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var out []Record
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND domain_at_time = ? AND category_at_time = ? AND created_at >= ?",
			userID, domain, category, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type ReportQuery struct {
	// UserID limits results to one user's records when set.
	UserID       *uint64
	Domain       string
	Category     string
	ResponseType string
	Page         int
	Limit        int
}

type ReportPage struct {
	Reports []Record `json:"reports"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	Pages   int      `json:"pages"`
}

// ListReports pages through history without prompt and model output blobs.
func (r *Repo) ListReports(ctx context.Context, q ReportQuery) (*ReportPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}

	filter := func(tx *gorm.DB) *gorm.DB {
		if q.UserID != nil {
			tx = tx.Where("user_id = ?", *q.UserID)
		}
		if q.Domain != "" {
			tx = tx.Where("domain_at_time = ?", q.Domain)
		}
		if q.Category != "" {
			tx = tx.Where("category_at_time = ?", q.Category)
		}
		if q.ResponseType != "" {
			tx = tx.Where("response_type = ?", q.ResponseType)
		}
		return tx
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&Record{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, err
	}

	var out []Record
	if err := r.db.WithContext(ctx).
		Scopes(filter).
		Omit("llm_prompt", "llm_response").
		Order("created_at DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&out).Error; err != nil {
		return nil, err
	}

	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return &ReportPage{Reports: out, Total: total, Page: q.Page, Pages: pages}, nil
}
