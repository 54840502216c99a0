package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/review-insights/internal/auth"
	"github.com/suPer8Hu/review-insights/internal/common"
	"github.com/suPer8Hu/review-insights/internal/models"
	"gorm.io/gorm"
)

const (
	UserIDKey   = "user_id"
	UserKey     = "user"
	TokenCookie = "token"
)

type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (*models.User, error)
}

// AuthRequired accepts the session cookie or a Bearer token and loads the
// current user. Deactivated accounts are rejected even with a valid token.
func AuthRequired(secret string, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c.GetHeader("Authorization"))
		if tok == "" {
			tok, _ = c.Cookie(TokenCookie)
		}
		if tok == "" {
			common.Abort(c, http.StatusUnauthorized, 40100, "missing token")
			return
		}

		claims, err := auth.ParseJWT(secret, tok)
		if err != nil {
			common.Abort(c, http.StatusUnauthorized, 40101, "invalid token")
			return
		}

		u, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				common.Abort(c, http.StatusUnauthorized, 40102, "user not found")
				return
			}
			common.Abort(c, http.StatusInternalServerError, 50001, "db error")
			return
		}
		if !u.IsActive {
			common.Abort(c, http.StatusUnauthorized, 40103, "account disabled")
			return
		}

		c.Set(UserIDKey, u.ID)
		c.Set(UserKey, u)
		c.Next()
	}
}

func bearer(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok || !u.IsAdmin() {
			common.Abort(c, http.StatusForbidden, 40300, "admin role required")
			return
		}
		c.Next()
	}
}
