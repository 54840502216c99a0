package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/suPer8Hu/review-insights/internal/access"
	"github.com/suPer8Hu/review-insights/internal/audit"
	"github.com/suPer8Hu/review-insights/internal/common"
	"github.com/suPer8Hu/review-insights/internal/insight"
	"github.com/suPer8Hu/review-insights/internal/logger"
	"github.com/suPer8Hu/review-insights/internal/metrics"
	"github.com/suPer8Hu/review-insights/internal/models"
)

const (
	QueryRequestKey = "query_request"

	AccessDeniedMessage = "Security Violation: You are not authorized to query this category or domain."
)

// RequireScopeAccess validates the query body and rejects domains or
// categories outside the caller's assignments before any engine runs.
// Rejections are written to the audit sink. The normalized request is
// left in the context under QueryRequestKey.
func RequireScopeAccess(sink audit.Sink, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			common.Abort(c, http.StatusUnauthorized, 40100, "unauthorized")
			return
		}

		var req insight.Request
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			common.Abort(c, http.StatusBadRequest, 10001, "invalid json")
			return
		}
		req, err := insight.Normalize(req)
		if err != nil {
			common.Abort(c, http.StatusBadRequest, 10002, err.Error())
			return
		}
		req.ReceivedAt = ReceivedAt(c)

		if err := access.Check(u, req.Domain, req.Category); err != nil {
			if !errors.Is(err, access.ErrAccessDenied) {
				common.Abort(c, http.StatusInternalServerError, 50000, "internal server error")
				return
			}
			metrics.AccessDenied.Inc()
			e := &models.AuditLog{
				UserID:            u.ID,
				Username:          u.Username,
				UserRole:          u.Role,
				Type:              models.AuditUnauthorizedAccess,
				AttemptedDomain:   req.Domain,
				AttemptedCategory: req.Category,
				IPAddress:         c.ClientIP(),
			}
			if err := sink.Record(c.Request.Context(), e); err != nil {
				log.Error("audit write failed", map[string]any{"user_id": u.ID, "error": err})
			}
			log.Warn("scope access denied", map[string]any{
				"user_id":  u.ID,
				"domain":   req.Domain,
				"category": req.Category,
			})
			common.Abort(c, http.StatusForbidden, 40301, AccessDeniedMessage)
			return
		}

		c.Set(QueryRequestKey, req)
		c.Next()
	}
}

func QueryRequest(c *gin.Context) (insight.Request, bool) {
	v, ok := c.Get(QueryRequestKey)
	if !ok {
		return insight.Request{}, false
	}
	req, ok := v.(insight.Request)
	return req, ok
}
