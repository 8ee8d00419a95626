package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/csm/internal/config"
	"github.com/BradenHooton/csm/internal/models"
)

func newTestAlert(severity string, created time.Time) *models.Alert {
	return &models.Alert{
		AlertUUID:   "uuid-" + severity,
		Severity:    severity,
		State:       models.AlertStateNew,
		Module:      "disk",
		Resource:    "node-1",
		Description: severity + " on disk",
		CreatedTime: created,
		UpdatedTime: created,
	}
}

func TestAlertRepository_AssignsSequentialIDs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		r := NewAlertRepository(s.Alerts)

		for want := int64(1); want <= 3; want++ {
			a, err := r.Create(ctx, newTestAlert(models.SeverityWarning, testNow))
			require.NoError(t, err)
			assert.Equal(t, want, a.AlertID)
		}

		got, err := r.GetByID(ctx, 2)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(2), got.AlertID)

		missing, err := r.GetByID(ctx, 99)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestAlertRepository_List(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		r := NewAlertRepository(s.Alerts)

		old, err := r.Create(ctx, newTestAlert(models.SeverityError, testNow.Add(-2*time.Hour)))
		require.NoError(t, err)
		closed, err := r.Create(ctx, newTestAlert(models.SeverityCritical, testNow.Add(-10*time.Minute)))
		require.NoError(t, err)
		open, err := r.Create(ctx, newTestAlert(models.SeverityWarning, testNow.Add(-5*time.Minute)))
		require.NoError(t, err)

		closed.Acknowledged = true
		closed.Resolved = true
		require.NoError(t, r.Save(ctx, closed))

		since := testNow.Add(-time.Hour)

		visible, err := r.List(ctx, since, 100, false)
		require.NoError(t, err)
		require.Len(t, visible, 1)
		assert.Equal(t, open.AlertID, visible[0].AlertID)

		all, err := r.List(ctx, since, 100, true)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, open.AlertID, all[0].AlertID, "newest first")
		assert.Equal(t, closed.AlertID, all[1].AlertID)

		limited, err := r.List(ctx, testNow.Add(-3*time.Hour), 1, true)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.NotEqual(t, old.AlertID, limited[0].AlertID)

		n, err := r.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestEmailConfigRepository(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		r := NewEmailConfigRepository(s.EmailConfig)

		cfg, err := r.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, cfg)

		require.NoError(t, r.Save(ctx, &models.EmailConfig{
			Sender:      "csm@example.com",
			Subscribers: []string{"ops@example.com"},
			UpdatedTime: testNow,
		}))

		cfg, err = r.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, models.EmailConfigID, cfg.ConfigID)
		assert.Equal(t, []string{"ops@example.com"}, cfg.Subscribers)

		require.NoError(t, r.Delete(ctx))
		cfg, err = r.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, cfg)
	})
}

func TestSupportBundleRepository(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		r := NewSupportBundleRepository(s.SupportBundles)

		older := &models.SupportBundle{BundleID: "b1", Status: models.BundleStatusReady, CreatedTime: testNow.Add(-48 * time.Hour)}
		newer := &models.SupportBundle{BundleID: "b2", Status: models.BundleStatusReady, CreatedTime: testNow}
		require.NoError(t, r.Create(ctx, older))
		require.NoError(t, r.Create(ctx, newer))

		list, err := r.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b2", list[0].BundleID)

		stale, err := r.ListOlderThan(ctx, testNow.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "b1", stale[0].BundleID)

		removed, err := r.Delete(ctx, "b1")
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = r.Delete(ctx, "b1")
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestAuditLogRepository(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		r := NewAuditLogRepository(s.AuditLogs)

		for i := 0; i < 4; i++ {
			entry := models.NewAuditLog("admin", models.AuditActionCreate, models.AuditResourceUser, true, "entry")
			entry.CreatedTime = testNow.Add(time.Duration(i) * time.Hour)
			require.NoError(t, r.Create(ctx, entry))
		}

		logs, err := r.GetByRange(ctx, models.AuditComponentCsm, testNow.Add(time.Hour), testNow.Add(3*time.Hour), 0)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.True(t, logs[0].CreatedTime.After(logs[1].CreatedTime), "newest first")
		assert.True(t, logs[2].CreatedTime.Equal(testNow.Add(time.Hour)), "start is inclusive")

		capped, err := r.GetByRange(ctx, models.AuditComponentCsm, testNow, testNow.Add(3*time.Hour), 2)
		require.NoError(t, err)
		assert.Len(t, capped, 2)

		none, err := r.GetByRange(ctx, "s3", testNow, testNow.Add(10*time.Hour), 0)
		require.NoError(t, err)
		assert.Empty(t, none)

		n, err := r.DeleteOlderThan(ctx, testNow.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestOpen_MemoryBackend(t *testing.T) {
	s, err := Open(context.Background(), &config.StorageConfig{Backend: config.BackendMemory}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, s.Backend)
	assert.NoError(t, s.HealthCheck(context.Background()))
	assert.NoError(t, s.Close(context.Background()))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.StorageConfig{Backend: "etcd"}, discardLogger())
	assert.Error(t, err)
}
