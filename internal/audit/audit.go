// Package audit persists boundary security events such as rejected
// scope requests.
package audit

import (
	"context"
	"time"

	"github.com/suPer8Hu/review-insights/internal/common"
	"github.com/suPer8Hu/review-insights/internal/models"
	"gorm.io/gorm"
)

// Sink accepts audit events. Implementations fill ID and CreatedAt when
// they are empty.
type Sink interface {
	Record(ctx context.Context, e *models.AuditLog) error
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Record inserts e. Replayed events keep their ID, so a duplicate
// delivery fails on the primary key instead of writing twice.
func (r *Repo) Record(ctx context.Context, e *models.AuditLog) error {
	if err := Stamp(e); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repo) Latest(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []models.AuditLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Stamp assigns a ULID and creation time where missing.
func Stamp(e *models.AuditLog) error {
	if e.ID == "" {
		id, err := common.NewULID()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
