package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/cache"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

type balanceStudentStore interface {
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
	SetBalance(ctx context.Context, tx *sqlx.Tx, id string, balance int64) error
}

type balanceLedgerStore interface {
	Aggregate(ctx context.Context, tx *sqlx.Tx, studentID string) (*models.BalanceAggregate, error)
	AggregateAll(ctx context.Context, tx *sqlx.Tx) ([]models.BalanceAggregate, error)
	LockAllStudents(ctx context.Context, tx *sqlx.Tx) ([]string, error)
}

// BalanceService derives balances from history and repairs stored balances.
type BalanceService struct {
	tx       txRunner
	students balanceStudentStore
	ledger   balanceLedgerStore
	cache    *CacheService
	metrics  *MetricsService
	audit    auditTrail
	logger   *zap.Logger
	now      func() time.Time
}

// NewBalanceService constructs a BalanceService.
func NewBalanceService(tx txRunner, students balanceStudentStore, ledger balanceLedgerStore, cache *CacheService, metrics *MetricsService, audit AuditRecorder, logger *zap.Logger) *BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceService{
		tx:       tx,
		students: students,
		ledger:   ledger,
		cache:    cache,
		metrics:  metrics,
		audit:    newAuditTrail(audit, logger, "balance-service"),
		logger:   logger,
		now:      time.Now,
	}
}

// DeriveBalance returns earned minus spent for a student. The result is not clamped.
func (s *BalanceService) DeriveBalance(ctx context.Context, studentID string) (int64, error) {
	agg, err := s.ledger.Aggregate(ctx, nil, studentID)
	if err != nil {
		return 0, notFoundOr(err, "student not found", "failed to derive balance")
	}
	return agg.Derived(), nil
}

// Snapshot compares stored and derived balances, served from cache when possible.
func (s *BalanceService) Snapshot(ctx context.Context, studentID string) (*models.BalanceSnapshot, error) {
	key := cache.BalanceKey(studentID)
	var cached models.BalanceSnapshot
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	agg, err := s.ledger.Aggregate(ctx, nil, studentID)
	if err != nil {
		return nil, notFoundOr(err, "student not found", "failed to derive balance")
	}
	snapshot := snapshotOf(*agg, s.now().UTC())
	s.cache.Set(ctx, key, snapshot)
	return &snapshot, nil
}

// ReconcileStudent overwrites one drifted stored balance.
func (s *BalanceService) ReconcileStudent(ctx context.Context, actor *models.JWTClaims, studentID string) (*models.ReconcileReport, error) {
	report := &models.ReconcileReport{StartedAt: s.now().UTC(), Drifts: []models.BalanceDrift{}}
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.students.LockByID(ctx, tx, studentID); err != nil {
			return notFoundOr(err, "student not found", "failed to lock student")
		}
		agg, err := s.ledger.Aggregate(ctx, tx, studentID)
		if err != nil {
			return notFoundOr(err, "student not found", "failed to derive balance")
		}
		report.Checked = 1
		return s.correct(ctx, tx, *agg, report)
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, actor, report), nil
}

// ReconcileAll locks every student, derives balances and overwrites drifted
// stored balances in one transaction. Running it twice corrects nothing the
// second time.
func (s *BalanceService) ReconcileAll(ctx context.Context, actor *models.JWTClaims) (*models.ReconcileReport, error) {
	report := &models.ReconcileReport{StartedAt: s.now().UTC(), Drifts: []models.BalanceDrift{}}
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.ledger.LockAllStudents(ctx, tx); err != nil {
			return storageError(err, "failed to lock students")
		}
		aggs, err := s.ledger.AggregateAll(ctx, tx)
		if err != nil {
			return storageError(err, "failed to derive balances")
		}
		report.Checked = len(aggs)
		for _, agg := range aggs {
			if err := s.correct(ctx, tx, agg, report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, actor, report), nil
}

func (s *BalanceService) correct(ctx context.Context, tx *sqlx.Tx, agg models.BalanceAggregate, report *models.ReconcileReport) error {
	derived := agg.Derived()
	stored := agg.Stored.Int64()
	if derived == stored {
		return nil
	}
	if err := s.students.SetBalance(ctx, tx, agg.StudentID, derived); err != nil {
		return storageError(err, "failed to correct balance")
	}
	report.Corrected++
	report.Drifts = append(report.Drifts, models.BalanceDrift{
		Code:      appErrors.CodeConsistencyDrift,
		StudentID: agg.StudentID,
		Stored:    stored,
		Derived:   derived,
		Delta:     derived - stored,
		Negative:  derived < 0,
	})
	return nil
}

func (s *BalanceService) finish(ctx context.Context, actor *models.JWTClaims, report *models.ReconcileReport) *models.ReconcileReport {
	report.FinishedAt = s.now().UTC()
	s.metrics.ReconcileFinished(report.Corrected, report.FinishedAt.Sub(report.StartedAt))

	if report.Corrected == 0 {
		s.logger.Info("reconcile found no drift", zap.Int("checked", report.Checked))
		return report
	}
	ids := make([]string, 0, len(report.Drifts))
	for _, drift := range report.Drifts {
		ids = append(ids, drift.StudentID)
		s.logger.Warn("balance drift corrected",
			zap.String("code", drift.Code),
			zap.String("student_id", drift.StudentID),
			zap.Int64("stored", drift.Stored),
			zap.Int64("derived", drift.Derived),
			zap.Bool("negative", drift.Negative),
		)
	}
	s.cache.InvalidateStudents(ctx, ids...)
	s.audit.record(ctx, actor, models.AuditActionBalanceReconcile, "ledger", "", nil, map[string]interface{}{
		"checked":   report.Checked,
		"corrected": report.Corrected,
		"drifts":    report.Drifts,
	})
	return report
}

func snapshotOf(agg models.BalanceAggregate, at time.Time) models.BalanceSnapshot {
	derived := agg.Derived()
	return models.BalanceSnapshot{
		StudentID: agg.StudentID,
		Stored:    agg.Stored.Int64(),
		Earned:    agg.Earned.Int64(),
		Spent:     agg.Spent.Int64(),
		Derived:   derived,
		Drift:     agg.Stored.Int64() - derived,
		TakenAt:   at,
	}
}
