package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupoint-api/internal/models"
)

const rewardColumns = "id, name, description, cost, stock, source, created_at, updated_at"

// RewardRepository manages the reward catalogue and its stock.
type RewardRepository struct {
	db *sqlx.DB
}

// NewRewardRepository constructs a RewardRepository.
func NewRewardRepository(db *sqlx.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// List returns rewards ordered by cost then name.
func (r *RewardRepository) List(ctx context.Context, filter models.RewardFilter) ([]models.Reward, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.Source != "" {
		args = append(args, filter.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.InStockOnly {
		conditions = append(conditions, "stock > 0")
	}
	query := fmt.Sprintf("SELECT %s FROM rewards WHERE %s ORDER BY cost ASC, name ASC", rewardColumns, strings.Join(conditions, " AND "))

	var rewards []models.Reward
	if err := r.db.SelectContext(ctx, &rewards, query, args...); err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

// FindByID fetches a reward without locking.
func (r *RewardRepository) FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Reward, error) {
	var reward models.Reward
	if err := sqlx.GetContext(ctx, ext(r.db, tx), &reward, "SELECT "+rewardColumns+" FROM rewards WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &reward, nil
}

// LockByID fetches a reward FOR UPDATE inside tx.
func (r *RewardRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Reward, error) {
	var reward models.Reward
	if err := sqlx.GetContext(ctx, ext(r.db, tx), &reward, "SELECT "+rewardColumns+" FROM rewards WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &reward, nil
}

// Create inserts a reward.
func (r *RewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	if reward.ID == "" {
		reward.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	reward.CreatedAt = now
	reward.UpdatedAt = now
	const query = `INSERT INTO rewards (id, name, description, cost, stock, source, created_at, updated_at)
        VALUES (:id, :name, :description, :cost, :stock, :source, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reward); err != nil {
		return fmt.Errorf("create reward: %w", err)
	}
	return nil
}

// Update persists editable reward fields.
func (r *RewardRepository) Update(ctx context.Context, reward *models.Reward) error {
	reward.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rewards SET name = :name, description = :description, cost = :cost, stock = :stock, source = :source, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, reward)
	if err != nil {
		return fmt.Errorf("update reward: %w", err)
	}
	return requireRow(result, "update reward")
}

// Delete removes a reward. Rewards referenced by redemptions fail with a foreign key violation.
func (r *RewardRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rewards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return requireRow(result, "delete reward")
}

// DecrementStock removes one unit. It affects no row when stock is already zero.
func (r *RewardRepository) DecrementStock(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE rewards SET stock = stock - 1, updated_at = $2 WHERE id = $1 AND stock > 0`
	result, err := ext(r.db, tx).ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decrement reward stock: %w", err)
	}
	return requireRow(result, "decrement reward stock")
}
