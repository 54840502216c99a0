package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/review-insights/internal/common"
	"github.com/suPer8Hu/review-insights/internal/httpapi/middleware"
	"github.com/suPer8Hu/review-insights/internal/models"
	"gorm.io/gorm"
)

const (
	SelfDemoteMessage     = "Security Guard: You cannot remove your own Admin privileges."
	SelfDeactivateMessage = "Security Guard: You cannot deactivate your own account."
)

func (h *Handler) ListUsers(c *gin.Context) {
	list, err := h.Users.List(c.Request.Context())
	if err != nil {
		h.Log.Error("list users failed", map[string]any{"error": err})
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, list)
}

// Absent fields are left unchanged.
type updatePermissionsReq struct {
	Role               *models.Role `json:"role"`
	AssignedDomains    *[]string    `json:"assignedDomains"`
	AssignedCategories *[]string    `json:"assignedCategories"`
	IsActive           *bool        `json:"isActive"`
}

// UpdatePermissions changes a user's role, assignments or active flag and
// records an admin audit entry. Admins cannot demote or deactivate
// themselves.
func (h *Handler) UpdatePermissions(c *gin.Context) {
	admin, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	id, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || id == 0 {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var req updatePermissionsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Role != nil && *req.Role != models.RoleAdmin && *req.Role != models.RoleAnalyst {
		common.Fail(c, http.StatusBadRequest, 10003, "role must be Admin or Analyst")
		return
	}
	if id == admin.ID {
		if req.Role != nil && *req.Role != models.RoleAdmin {
			common.Fail(c, http.StatusBadRequest, 10030, SelfDemoteMessage)
			return
		}
		if req.IsActive != nil && !*req.IsActive {
			common.Fail(c, http.StatusBadRequest, 10031, SelfDeactivateMessage)
			return
		}
	}

	target, err := h.Users.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40400, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	changes := map[string]any{}
	if req.Role != nil {
		target.Role = *req.Role
		changes["role"] = *req.Role
	}
	if req.AssignedDomains != nil {
		target.AssignedDomains = *req.AssignedDomains
		changes["assignedDomains"] = *req.AssignedDomains
	}
	if req.AssignedCategories != nil {
		target.AssignedCategories = *req.AssignedCategories
		changes["assignedCategories"] = *req.AssignedCategories
	}
	if req.IsActive != nil {
		target.IsActive = *req.IsActive
		changes["isActive"] = *req.IsActive
	}

	if err := h.Users.Update(c.Request.Context(), target); err != nil {
		h.Log.Error("update user failed", map[string]any{"target_id": id, "error": err})
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	e := &models.AuditLog{
		UserID:         admin.ID,
		Username:       admin.Username,
		UserRole:       admin.Role,
		Type:           models.AuditAdminAction,
		Action:         "Updated User Permissions",
		TargetUserID:   &target.ID,
		TargetUsername: target.Username,
		Changes:        changes,
		IPAddress:      c.ClientIP(),
	}
	if err := h.Audit.Record(c.Request.Context(), e); err != nil {
		h.Log.Error("audit write failed", map[string]any{"user_id": admin.ID, "error": err})
	}
	common.OK(c, target)
}
