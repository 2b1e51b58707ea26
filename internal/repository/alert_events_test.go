package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leghakrishifarm/solar-accounting/internal/models"
)

func setupMockAlertEventsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertEventsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewAlertEventsRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestInsertAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertEventsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	alert := &models.AlertEvent{
		SiteID:      1,
		DeviceID:    1,
		Type:        models.AlertOffline,
		Message:     "Device Main Inverter offline for ~12 min (threshold 10m)",
		TriggeredAt: now,
	}

	mock.ExpectQuery(`INSERT INTO alert_events`).
		WithArgs(int64(1), int64(1), "OFFLINE", alert.Message, now, false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.Insert(ctx, alert)

	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlert_MissingDevice(t *testing.T) {
	db, mock, repo := setupMockAlertEventsDB(t)
	defer db.Close()

	_, err := repo.Insert(context.Background(), &models.AlertEvent{SiteID: 1, Type: models.AlertOffline})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "device_id is required")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRecentByDeviceAndType(t *testing.T) {
	db, mock, repo := setupMockAlertEventsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alert_events`).
		WithArgs(int64(1), "ZERO_POWER", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountRecentByDeviceAndType(context.Background(), 1, models.AlertZeroPower, 30)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestUnacknowledgedSince_None(t *testing.T) {
	db, mock, repo := setupMockAlertEventsDB(t)
	defer db.Close()

	since := time.Now().Add(-60 * time.Minute)
	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(3), since).
		WillReturnError(sql.ErrNoRows)

	alert, err := repo.LatestUnacknowledgedSince(context.Background(), 3, since)

	require.NoError(t, err)
	assert.Nil(t, alert)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledge_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertEventsDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE alert_events SET acknowledged`).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Acknowledge(context.Background(), 99)

	assert.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListBySiteSince(t *testing.T) {
	db, mock, repo := setupMockAlertEventsDB(t)
	defer db.Close()

	since := time.Now().Add(-24 * time.Hour)
	t1 := time.Now().Add(-10 * time.Minute)
	t2 := time.Now().Add(-2 * time.Hour)

	rows := sqlmock.NewRows([]string{"id", "site_id", "device_id", "type", "message", "triggered_at", "acknowledged"}).
		AddRow(int64(2), int64(1), int64(1), "ZERO_POWER", "Zero power for ~5 min during daylight (<= 0.10 kW)", t1, false).
		AddRow(int64(1), int64(1), int64(1), "OFFLINE", "Device Main Inverter offline for ~12 min (threshold 10m)", t2, true)

	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(1), since, 5).
		WillReturnRows(rows)

	alerts, err := repo.ListBySiteSince(context.Background(), 1, since, 5)

	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertZeroPower, alerts[0].Type)
	assert.True(t, alerts[1].Acknowledged)
	require.NoError(t, mock.ExpectationsWereMet())
}
