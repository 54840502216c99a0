package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/review-insights/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	return db
}

func TestRepo_RecordStampsAndLatestOrders(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Record(ctx, &models.AuditLog{
			UserID:          uint64(i + 1),
			Type:            models.AuditUnauthorizedAccess,
			AttemptedDomain: "finance",
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}))
	}
	fresh := &models.AuditLog{UserID: 9, Type: models.AuditUnauthorizedAccess}
	require.NoError(t, repo.Record(ctx, fresh))
	assert.Len(t, fresh.ID, 26)
	assert.False(t, fresh.CreatedAt.IsZero())

	got, err := repo.Latest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(9), got[0].UserID)
	assert.Equal(t, uint64(3), got[1].UserID)
}

func TestRepo_RecordRejectsDuplicateID(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	e := models.AuditLog{ID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", UserID: 1, Type: models.AuditUnauthorizedAccess}
	require.NoError(t, repo.Record(context.Background(), &e))
	dup := e
	assert.Error(t, repo.Record(context.Background(), &dup))
}
