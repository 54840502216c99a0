package models

import "time"

const (
	AuditUnauthorizedAccess = "Unauthorized Access Attempt"
	AuditAdminAction        = "Admin Action"
)

// AuditLog records boundary security events and admin changes. It is
// separate from the per-query history trail. Action, Target* and Changes
// are set for admin actions only.
type AuditLog struct {
	ID                string         `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserID            uint64         `gorm:"index;not null" json:"userId"`
	Username          string         `gorm:"type:varchar(64)" json:"username"`
	UserRole          Role           `gorm:"type:varchar(16)" json:"userRole"`
	Type              string         `gorm:"type:varchar(64);index;not null" json:"type"`
	AttemptedDomain   string         `gorm:"type:varchar(64)" json:"attemptedDomain,omitempty"`
	AttemptedCategory string         `gorm:"type:varchar(64)" json:"attemptedCategory,omitempty"`
	IPAddress         string         `gorm:"type:varchar(64)" json:"ipAddress"`
	Action            string         `gorm:"type:varchar(128)" json:"action,omitempty"`
	TargetUserID      *uint64        `json:"targetUserId,omitempty"`
	TargetUsername    string         `gorm:"type:varchar(64)" json:"targetUsername,omitempty"`
	Changes           map[string]any `gorm:"serializer:json;type:text" json:"changes,omitempty"`
	CreatedAt         time.Time      `gorm:"index" json:"createdAt"`
}

func (AuditLog) TableName() string { return "audit_logs" }
