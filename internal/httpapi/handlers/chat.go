package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/review-insights/internal/access"
	"github.com/suPer8Hu/review-insights/internal/common"
	"github.com/suPer8Hu/review-insights/internal/history"
	"github.com/suPer8Hu/review-insights/internal/httpapi/middleware"
	"github.com/suPer8Hu/review-insights/internal/insight"
)

// Query answers POST /api/chat. Scope and validation already ran in
// middleware.RequireScopeAccess. The body is the answer itself, not the
// {code, message, data} envelope.
func (h *Handler) Query(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	req, ok := middleware.QueryRequest(c)
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10002, "query, domain and category required")
		return
	}

	res, err := h.Insights.Ask(c.Request.Context(), u, req)
	if err != nil {
		if errors.Is(err, insight.ErrValidation) {
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
			return
		}
		h.Log.Error("query failed", map[string]any{"user_id": u.ID, "error": err})
		common.Fail(c, http.StatusInternalServerError, 50000, insight.InternalErrorMessage)
		return
	}
	c.JSON(res.Status, res.Response)
}

// ListReports shows admins every record and analysts only their own.
// Filters are domain, category and intent (the response type, also
// accepted as responseType); "all" leaves a filter off.
func (h *Handler) ListReports(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	responseType := c.Query("intent")
	if responseType == "" {
		responseType = c.Query("responseType")
	}
	q := history.ReportQuery{
		Domain:       reportFilter(c.Query("domain")),
		Category:     reportFilter(c.Query("category")),
		ResponseType: reportFilter(responseType),
		Page:         page,
		Limit:        limit,
	}
	if !u.IsAdmin() {
		q.UserID = &u.ID
	}

	out, err := h.Reports.ListReports(c.Request.Context(), q)
	if err != nil {
		h.Log.Error("list reports failed", map[string]any{"user_id": u.ID, "error": err})
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, out)
}

// reportFilter normalizes a listing filter. "all" and empty mean no filter.
func reportFilter(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == access.All {
		return ""
	}
	return v
}

func (h *Handler) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.AuditLogs.Latest(c.Request.Context(), limit)
	if err != nil {
		h.Log.Error("list audit logs failed", map[string]any{"error": err})
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, logs)
}
