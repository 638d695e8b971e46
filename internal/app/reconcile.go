package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/jobs"
)

// JobReconcile is the kind of the scheduled full reconciliation.
const JobReconcile = "ledger.reconcile"

type fullReconciler interface {
	ReconcileAll(ctx context.Context, actor *models.JWTClaims) (*models.ReconcileReport, error)
}

// StartReconciler is an opt-in ops hook that runs ReconcileAll on the
// configured interval through a single-worker queue, like a cron entry for
// ledgerctl reconcile. The returned func stops it. Nothing starts when the
// interval is zero, which is the default.
func (c *Container) StartReconciler(ctx context.Context) func() {
	interval := c.Config.Ledger.ReconcileInterval
	if interval <= 0 {
		return func() {}
	}
	queue := jobs.NewQueue("reconcile", reconcileHandler(c.Services.Balances, c.Logger), jobs.QueueConfig{
		Workers:    1,
		BufferSize: 1,
		MaxRetries: c.Config.Ledger.ReconcileRetries,
		RetryDelay: 30 * time.Second,
		Logger:     c.Logger,
	})
	runCtx, cancel := context.WithCancel(ctx)
	queue.Start(runCtx)
	go queue.Every(runCtx, interval, JobReconcile)
	c.Logger.Info("scheduled reconciliation enabled", zap.Duration("interval", interval))
	return func() {
		cancel()
		queue.Stop()
	}
}

func reconcileHandler(balances fullReconciler, logger *zap.Logger) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		report, err := balances.ReconcileAll(ctx, nil)
		if err != nil {
			return err
		}
		logger.Info("scheduled reconciliation finished",
			zap.String("job_id", job.ID),
			zap.Int("checked", report.Checked),
			zap.Int("corrected", report.Corrected),
		)
		return nil
	}
}
