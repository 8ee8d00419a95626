package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/csm/internal/metrics"
)

// AuditPurger removes audit entries older than a cutoff
type AuditPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// BundlePurger removes support bundles older than a cutoff
type BundlePurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// RevocationPurger drops expired revocation entries held in process memory
type RevocationPurger interface {
	Purge() int
}

// RetentionConfig holds how long each kind of record is kept
type RetentionConfig struct {
	AuditLogAge      time.Duration
	SupportBundleAge time.Duration
	Interval         time.Duration
}

// RetentionManager periodically removes records past their retention age.
// A zero age disables purging of that kind.
type RetentionManager struct {
	audit       AuditPurger
	bundles     BundlePurger
	revocations RevocationPurger
	config      RetentionConfig
	logger      *slog.Logger
	now         func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewRetentionManager creates a new retention manager. revocations may be
// nil when tokens are revoked in Redis, which expires them itself.
func NewRetentionManager(audit AuditPurger, bundles BundlePurger, revocations RevocationPurger, config RetentionConfig, logger *slog.Logger) *RetentionManager {
	return &RetentionManager{
		audit:       audit,
		bundles:     bundles,
		revocations: revocations,
		config:      config,
		logger:      logger,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic retention task
func (rm *RetentionManager) Start(ctx context.Context) {
	if rm.config.Interval <= 0 {
		rm.logger.Error("retention manager not started, interval must be positive",
			slog.Duration("interval", rm.config.Interval))
		return
	}

	ticker := time.NewTicker(rm.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	rm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			rm.RunOnce(ctx)
		case <-rm.stopCh:
			rm.logger.Info("retention manager stopped")
			return
		case <-ctx.Done():
			rm.logger.Info("retention manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single retention pass. Failures are logged and do not
// stop the remaining kinds from being purged.
func (rm *RetentionManager) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	now := rm.now()

	if rm.audit != nil && rm.config.AuditLogAge > 0 {
		n, err := rm.audit.Purge(ctx, now.Add(-rm.config.AuditLogAge))
		rm.report("audit_log", int(n), err)
	}
	if rm.bundles != nil && rm.config.SupportBundleAge > 0 {
		n, err := rm.bundles.PurgeOlderThan(ctx, now.Add(-rm.config.SupportBundleAge))
		rm.report("support_bundle", n, err)
	}
	if rm.revocations != nil {
		rm.report("revoked_token", rm.revocations.Purge(), nil)
	}
}

func (rm *RetentionManager) report(kind string, n int, err error) {
	if n > 0 {
		metrics.RetentionPurged.WithLabelValues(kind).Add(float64(n))
	}
	if err != nil {
		rm.logger.Error("retention purge failed", slog.String("kind", kind), slog.Int("purged", n), slog.Any("error", err))
		return
	}
	if n > 0 {
		rm.logger.Info("retention purge completed", slog.String("kind", kind), slog.Int("purged", n))
	}
}

// Stop signals the retention manager to stop
func (rm *RetentionManager) Stop() {
	rm.stopOnce.Do(func() { close(rm.stopCh) })
}
