package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleAnalyst Role = "Analyst"
)

type User struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Username           string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash       string    `gorm:"type:varchar(255);not null" json:"-"`
	Role               Role      `gorm:"type:varchar(16);not null" json:"role"`
	AssignedDomains    []string  `gorm:"serializer:json;type:text" json:"assignedDomains"`
	AssignedCategories []string  `gorm:"serializer:json;type:text" json:"assignedCategories"`
	IsActive           bool      `gorm:"not null" json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// BeforeSave keeps assignments in the same normalized form as request scope.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Username = strings.TrimSpace(u.Username)
	u.AssignedDomains = normalizeSet(u.AssignedDomains)
	u.AssignedCategories = normalizeSet(u.AssignedCategories)
	return nil
}

func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
