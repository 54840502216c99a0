package review

import (
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

type Review struct {
	ReviewID   int64      `gorm:"primaryKey;autoIncrement:false" json:"reviewId"`
	ReviewDate *time.Time `json:"reviewDate,omitempty"`
	Rating     int        `gorm:"not null;index" json:"rating"`
	Title      string     `gorm:"column:review_title;type:varchar(512)" json:"title"`
	Text       string     `gorm:"column:review_text;type:text" json:"text"`
	TextLength int        `gorm:"not null;default:0;index" json:"-"`
	Year       int        `gorm:"index:idx_review_scope_period,priority:3" json:"year"`
	Month      int        `gorm:"index:idx_review_scope_period,priority:4" json:"month"`
	Domain     string     `gorm:"type:varchar(64);not null;index:idx_review_scope_period,priority:1" json:"domain"`
	EntityName string     `gorm:"type:varchar(128);not null" json:"entityName"`
	Category   string     `gorm:"type:varchar(64);not null;index:idx_review_scope_period,priority:2" json:"category"`
}

func (Review) TableName() string { return "reviews" }

// BeforeSave normalizes scope columns and derives the fields queries sort
// and group on.
func (r *Review) BeforeSave(tx *gorm.DB) error {
	r.Domain = strings.ToLower(strings.TrimSpace(r.Domain))
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	r.TextLength = utf8.RuneCountInString(r.Text)
	if r.ReviewDate != nil && (r.Year == 0 || r.Month == 0) {
		r.Year = r.ReviewDate.Year()
		r.Month = int(r.ReviewDate.Month())
	}
	return nil
}
