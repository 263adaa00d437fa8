package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/menusam/partner-billing/pkg/db/models"
	"github.com/menusam/partner-billing/pkg/enums"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:notifications_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(`
CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  audience TEXT NOT NULL,
  establishment_id TEXT,
  category TEXT NOT NULL,
  alert_type TEXT,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  data TEXT,
  read_at DATETIME,
  created_at DATETIME NOT NULL
);`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX ux_notifications_event_audience ON notifications (event_id, audience);`).Error)
	return db
}

func partnerRow(establishmentID uuid.UUID, createdAt time.Time) *models.Notification {
	return &models.Notification{
		EventID:         uuid.New(),
		Audience:        enums.NotificationAudiencePartner,
		EstablishmentID: &establishmentID,
		Category:        enums.NotificationCategoryBillingPayment,
		Title:           "Payment sent",
		Body:            "We sent 83.00 EUR for period 2026-01-A.",
		Data:            map[string]any{"periodCode": "2026-01-A"},
		CreatedAt:       createdAt,
	}
}

func TestRepositoryCreateIgnoresRedeliveredEvent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupNotificationsTestDB(t))
	establishmentID := uuid.New()

	first := partnerRow(establishmentID, time.Now().UTC())
	created, err := repo.Create(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	again := partnerRow(establishmentID, time.Now().UTC())
	again.EventID = first.EventID
	created, err = repo.Create(ctx, again)
	require.NoError(t, err)
	require.False(t, created)

	// The same event may still reach the admin audience.
	admin := &models.Notification{
		EventID:  first.EventID,
		Audience: enums.NotificationAudienceAdmin,
		Category: enums.NotificationCategoryBillingInvoice,
		Title:    "Invoice submitted",
		Body:     "body",
	}
	created, err = repo.Create(ctx, admin)
	require.NoError(t, err)
	require.True(t, created)
}

func TestRepositoryListPaginatesPerEstablishment(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupNotificationsTestDB(t))
	establishmentID := uuid.New()
	base := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, partnerRow(establishmentID, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, partnerRow(uuid.New(), base))
	require.NoError(t, err)

	page, next, err := repo.List(ctx, listNotificationsParams{
		Audience:        enums.NotificationAudiencePartner,
		EstablishmentID: &establishmentID,
		Limit:           2,
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	require.True(t, page[0].CreatedAt.After(page[1].CreatedAt))
	require.Equal(t, "2026-01-A", page[0].Data["periodCode"])

	rest, next, err := repo.List(ctx, listNotificationsParams{
		Audience:        enums.NotificationAudiencePartner,
		EstablishmentID: &establishmentID,
		Limit:           2,
		Cursor:          next,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Nil(t, next)
	require.True(t, rest[0].CreatedAt.Equal(base))
}

func TestRepositoryMarkReadScopedToEstablishment(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupNotificationsTestDB(t))
	establishmentID := uuid.New()
	row := partnerRow(establishmentID, time.Now().UTC())
	_, err := repo.Create(ctx, row)
	require.NoError(t, err)

	mark, err := repo.MarkRead(ctx, uuid.New(), row.ID, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, mark.Found)

	mark, err = repo.MarkRead(ctx, establishmentID, row.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, mark.Found)
	require.True(t, mark.Updated)

	mark, err = repo.MarkRead(ctx, establishmentID, row.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, mark.Found)
	require.False(t, mark.Updated)
}

func TestRepositoryDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	establishmentID := uuid.New()
	cutoff := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{cutoff.Add(-2 * time.Hour), cutoff.Add(-time.Hour), cutoff.Add(time.Hour)} {
		_, err := repo.Create(ctx, partnerRow(establishmentID, at))
		require.NoError(t, err)
	}

	deleted, err := repo.DeleteOlderThan(ctx, db, cutoff, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	deleted, err = repo.DeleteOlderThan(ctx, nil, cutoff, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)
}
