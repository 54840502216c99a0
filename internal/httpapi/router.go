package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/review-insights/internal/audit"
	"github.com/suPer8Hu/review-insights/internal/common"
	"github.com/suPer8Hu/review-insights/internal/httpapi/handlers"
	"github.com/suPer8Hu/review-insights/internal/httpapi/middleware"
	"github.com/suPer8Hu/review-insights/internal/logger"
)

// NewRouter wires every route. With no origins, CORS is left off and only
// same-origin browsers can use the session cookie.
func NewRouter(h *handlers.Handler, sink audit.Sink, log logger.Logger, origins ...string) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.StartTimer())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	// auth
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)

	authGroup := api.Group("/")
	authGroup.Use(middleware.AuthRequired(h.JWTSecret, h.Users))
	authGroup.GET("/auth/me", h.Me)
	authGroup.POST("/chat", middleware.RequireScopeAccess(sink, log), h.Query)
	authGroup.GET("/reports", h.ListReports)

	admin := authGroup.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.GET("/audit-logs", h.ListAuditLogs)
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.PUT("/users/permissions/:user_id", h.UpdatePermissions)
	return r
}
