package history

import (
	"time"

	"github.com/suPer8Hu/review-insights/internal/models"
)

type Metrics struct {
	TotalMs       int64 `json:"totalMs"`
	AggregationMs int64 `json:"aggregationMs"`
	LLMLatencyMs  int64 `json:"llmLatencyMs"`
	CacheHit      bool  `json:"cacheHit"`
}

// Record is the immutable trace of one answered query. A nil CacheKey
// means the record can never be served as a cached answer.
type Record struct {
	ID                string              `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserID            uint64              `gorm:"not null;index:idx_history_scope,priority:1" json:"userId"`
	Role              models.Role         `gorm:"type:varchar(16)" json:"role"`
	Query             string              `gorm:"type:text;not null" json:"query"`
	Intent            models.Intent       `gorm:"type:varchar(16)" json:"intent"`
	IntentInherited   bool                `json:"intentInherited"`
	DomainAtTime      string              `gorm:"type:varchar(64);index:idx_history_scope,priority:2" json:"domainAtTime"`
	CategoryAtTime    string              `gorm:"type:varchar(64);index:idx_history_scope,priority:3" json:"categoryAtTime"`
	Audit             Audit               `gorm:"serializer:json;type:text" json:"audit"`
	SelectedReviewIDs []int64             `gorm:"serializer:json;type:text" json:"selectedReviewIds"`
	QuotesExtracted   []string            `gorm:"serializer:json;type:text" json:"quotesExtracted"`
	LLMPrompt         string              `gorm:"type:text" json:"llmPrompt,omitempty"`
	LLMResponse       string              `gorm:"type:text" json:"llmResponse,omitempty"`
	ResponseType      models.ResponseType `gorm:"type:varchar(16);index" json:"responseType"`
	FinalResponse     models.Response     `gorm:"serializer:json;type:text" json:"finalResponse"`
	CacheKey          *string             `gorm:"type:varchar(64);index" json:"cacheKey"`
	ServedFromID      *string             `gorm:"type:varchar(26)" json:"servedFromId,omitempty"`
	Metrics           Metrics             `gorm:"embedded;embeddedPrefix:metric_" json:"metrics"`
	CreatedAt         time.Time           `gorm:"index:idx_history_scope,priority:4" json:"createdAt"`
}

func (Record) TableName() string { return "chat_history" }
