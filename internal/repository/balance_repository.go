package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupoint-api/internal/models"
)

// balanceAggregateSelect derives earned and spent totals from history. Spent
// sums the cost captured on approved redemptions, not the current reward cost.
const balanceAggregateSelect = `SELECT s.id AS student_id, s.balance AS stored,
        COALESCE(a.earned, 0) AS earned, COALESCE(r.spent, 0) AS spent
        FROM students s
        LEFT JOIN (SELECT student_id, SUM(points) AS earned FROM activities GROUP BY student_id) a ON a.student_id = s.id
        LEFT JOIN (SELECT student_id, SUM(cost) AS spent FROM redemptions WHERE status = 'approved' GROUP BY student_id) r ON r.student_id = s.id`

// BalanceRepository runs the ledger derivation queries.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository constructs a BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Aggregate derives the totals of one student.
func (r *BalanceRepository) Aggregate(ctx context.Context, tx *sqlx.Tx, studentID string) (*models.BalanceAggregate, error) {
	var agg models.BalanceAggregate
	if err := sqlx.GetContext(ctx, ext(r.db, tx), &agg, balanceAggregateSelect+" WHERE s.id = $1", studentID); err != nil {
		return nil, err
	}
	return &agg, nil
}

// AggregateAll derives the totals of every student ordered by id.
func (r *BalanceRepository) AggregateAll(ctx context.Context, tx *sqlx.Tx) ([]models.BalanceAggregate, error) {
	var aggs []models.BalanceAggregate
	if err := sqlx.SelectContext(ctx, ext(r.db, tx), &aggs, balanceAggregateSelect+" ORDER BY s.id"); err != nil {
		return nil, fmt.Errorf("aggregate balances: %w", err)
	}
	return aggs, nil
}

// LockAllStudents takes row locks on every student in id order and returns the ids.
func (r *BalanceRepository) LockAllStudents(ctx context.Context, tx *sqlx.Tx) ([]string, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, ext(r.db, tx), &ids, "SELECT id FROM students ORDER BY id FOR UPDATE"); err != nil {
		return nil, fmt.Errorf("lock students: %w", err)
	}
	return ids, nil
}
