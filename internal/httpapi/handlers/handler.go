package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/review-insights/internal/audit"
	"github.com/suPer8Hu/review-insights/internal/common"
	"github.com/suPer8Hu/review-insights/internal/history"
	"github.com/suPer8Hu/review-insights/internal/insight"
	"github.com/suPer8Hu/review-insights/internal/logger"
	"github.com/suPer8Hu/review-insights/internal/models"
)

type Asker interface {
	Ask(ctx context.Context, u *models.User, req insight.Request) (*insight.Result, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uint64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, u *models.User) error
}

type ReportLister interface {
	ListReports(ctx context.Context, q history.ReportQuery) (*history.ReportPage, error)
}

type AuditReader interface {
	Latest(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type Handler struct {
	Users     UserStore
	Insights  Asker
	Reports   ReportLister
	AuditLogs AuditReader
	Audit     audit.Sink
	JWTSecret string
	TokenTTL  time.Duration
	Log       logger.Logger
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
