package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupoint-api/internal/models"
)

func TestRedemptionRepositoryCreateIsPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRedemptionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO redemptions")).
		WithArgs(sqlmock.AnyArg(), "s-1", "r-1", models.RedemptionPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	red := &models.Redemption{StudentID: "s-1", RewardID: "r-1", Status: models.RedemptionApproved}
	require.NoError(t, repo.Create(context.Background(), nil, red))
	assert.Equal(t, models.RedemptionPending, red.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepositoryUpdateDecisionAlreadyDecided(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRedemptionRepository(db)
	tx := beginMockTx(t, db, mock)

	cost := int64(50)
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $6 AND status = 'pending'")).
		WithArgs(models.RedemptionApproved, &cost, "admin-1", sqlmock.AnyArg(), sqlmock.AnyArg(), "red-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDecision(context.Background(), tx, RedemptionDecisionParams{
		ID: "red-1", Status: models.RedemptionApproved, Cost: &cost, DecidedBy: "admin-1", DecidedAt: time.Now(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepositoryInsufficientQueue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRedemptionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.status = 'pending' AND (s.balance < w.cost OR w.stock <= 0) AND s.class_name = $1 ORDER BY r.created_at ASC, r.id ASC")).
		WithArgs("10A").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("red-1").AddRow("red-2"))

	ids, err := repo.QueueIDs(context.Background(), models.QueueInsufficient, "10A")
	require.NoError(t, err)
	assert.Equal(t, []string{"red-1", "red-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepositoryOrderIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRedemptionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM redemptions WHERE id = ANY($1) ORDER BY created_at ASC, id ASC")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("b").AddRow("a"))

	ids, err := repo.OrderIDs(context.Background(), []string{"a", "b", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	empty, err := repo.OrderIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepositoryListPendingCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRedemptionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.status = $1")).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.Count(context.Background(), models.QueuePending, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
