package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupoint-api/internal/models"
)

var rewardRowColumns = []string{"id", "name", "description", "cost", "stock", "source", "created_at", "updated_at"}

func TestRewardRepositoryListInStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRewardRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM rewards WHERE 1=1 AND source = $1 AND stock > 0 ORDER BY cost ASC, name ASC")).
		WithArgs(models.RewardSourceCanteen).
		WillReturnRows(sqlmock.NewRows(rewardRowColumns).AddRow("r-1", "Juice", "", 10, 3, "canteen", now, now))

	rewards, err := repo.List(context.Background(), models.RewardFilter{Source: models.RewardSourceCanteen, InStockOnly: true})
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.True(t, rewards[0].InStock())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardRepositoryDecrementStockAtZero(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRewardRepository(db)
	tx := beginMockTx(t, db, mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE rewards SET stock = stock - 1, updated_at = $2 WHERE id = $1 AND stock > 0")).
		WithArgs("r-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DecrementStock(context.Background(), tx, "r-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardRepositoryDeleteReferenced(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRewardRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rewards WHERE id = $1")).
		WithArgs("r-1").
		WillReturnError(&pq.Error{Code: "23503"})

	err := repo.Delete(context.Background(), "r-1")
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
