package models

import "time"

// RewardSource identifies where a reward is collected.
type RewardSource string

const (
	RewardSourceCoop    RewardSource = "coop"
	RewardSourceCanteen RewardSource = "canteen"
)

// Reward is a redeemable item with a point cost and finite stock.
type Reward struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Description string       `db:"description" json:"description"`
	Cost        int64        `db:"cost" json:"cost"`
	Stock       int64        `db:"stock" json:"stock"`
	Source      RewardSource `db:"source" json:"source"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// InStock reports whether at least one unit remains.
func (r *Reward) InStock() bool {
	return r != nil && r.Stock > 0
}

// RewardFilter captures list parameters for rewards.
type RewardFilter struct {
	Source      RewardSource
	InStockOnly bool
}

// CreateRewardRequest payload for creating a reward. Cost and stock fit INTEGER columns.
type CreateRewardRequest struct {
	Name        string       `json:"name" validate:"required,max=120"`
	Description string       `json:"description" validate:"max=500"`
	Cost        int64        `json:"cost" validate:"required,gt=0,lte=2147483647"`
	Stock       int64        `json:"stock" validate:"gte=0,lte=2147483647"`
	Source      RewardSource `json:"source" validate:"omitempty,oneof=coop canteen"`
}

// UpdateRewardRequest payload for editing a reward. Nil fields are unchanged.
type UpdateRewardRequest struct {
	Name        *string       `json:"name" validate:"omitempty,max=120"`
	Description *string       `json:"description" validate:"omitempty,max=500"`
	Cost        *int64        `json:"cost" validate:"omitempty,gt=0,lte=2147483647"`
	Stock       *int64        `json:"stock" validate:"omitempty,gte=0,lte=2147483647"`
	Source      *RewardSource `json:"source" validate:"omitempty,oneof=coop canteen"`
}
