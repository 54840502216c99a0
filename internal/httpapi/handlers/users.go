package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/review-insights/internal/auth"
	"github.com/suPer8Hu/review-insights/internal/common"
	"github.com/suPer8Hu/review-insights/internal/httpapi/middleware"
	"github.com/suPer8Hu/review-insights/internal/models"
	"gorm.io/gorm"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Username == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "username and password required")
		return
	}

	u, err := h.Users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, 40110, "invalid credentials")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if !u.IsActive || !auth.CheckPassword(u.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40110, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(h.JWTSecret, u.ID, h.TokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, int(h.TokenTTL.Seconds()), "/", "", false, true)
	common.OK(c, gin.H{"token": token, "user": u})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", false, true)
	common.OK(c, gin.H{"logged_out": true})
}

func (h *Handler) Me(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	common.OK(c, u)
}

type createUserReq struct {
	Username           string      `json:"username"`
	Password           string      `json:"password"`
	Role               models.Role `json:"role"`
	AssignedDomains    []string    `json:"assignedDomains"`
	AssignedCategories []string    `json:"assignedCategories"`
}

// CreateUser is admin only.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "username and password required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleAnalyst
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleAnalyst {
		common.Fail(c, http.StatusBadRequest, 10003, "role must be Admin or Analyst")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	u := &models.User{
		Username:           req.Username,
		PasswordHash:       hash,
		Role:               req.Role,
		AssignedDomains:    req.AssignedDomains,
		AssignedCategories: req.AssignedCategories,
		IsActive:           true,
	}
	if err := h.Users.Create(c.Request.Context(), u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			common.Fail(c, http.StatusConflict, 10010, "username already exists")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 0, "message": "ok", "data": u})
}
