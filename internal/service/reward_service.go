package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/internal/repository"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

type rewardStore interface {
	List(ctx context.Context, filter models.RewardFilter) ([]models.Reward, error)
	FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Reward, error)
	Create(ctx context.Context, reward *models.Reward) error
	Update(ctx context.Context, reward *models.Reward) error
	Delete(ctx context.Context, id string) error
}

// RewardService manages the reward catalogue.
type RewardService struct {
	rewards   rewardStore
	access    *AccessService
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRewardService constructs a RewardService.
func NewRewardService(rewards rewardStore, access *AccessService, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *RewardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RewardService{rewards: rewards, access: access, audit: newAuditTrail(audit, logger, "reward-service"), validator: validate, logger: logger}
}

// List returns rewards, optionally only those in stock.
func (s *RewardService) List(ctx context.Context, filter models.RewardFilter) ([]models.Reward, error) {
	if filter.Source != "" && filter.Source != models.RewardSourceCoop && filter.Source != models.RewardSourceCanteen {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown reward source "+string(filter.Source))
	}
	rewards, err := s.rewards.List(ctx, filter)
	if err != nil {
		return nil, storageError(err, "failed to list rewards")
	}
	return rewards, nil
}

// Get returns one reward.
func (s *RewardService) Get(ctx context.Context, id string) (*models.Reward, error) {
	reward, err := s.rewards.FindByID(ctx, nil, id)
	if err != nil {
		return nil, notFoundOr(err, "reward not found", "failed to load reward")
	}
	return reward, nil
}

// Create adds a reward.
func (s *RewardService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateRewardRequest) (*models.Reward, error) {
	if err := s.access.Require(actor, CapManageRewards); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reward payload")
	}
	source := req.Source
	if source == "" {
		source = models.RewardSourceCoop
	}
	reward := &models.Reward{Name: req.Name, Description: req.Description, Cost: req.Cost, Stock: req.Stock, Source: source}
	if err := s.rewards.Create(ctx, reward); err != nil {
		return nil, storageError(err, "failed to create reward")
	}
	s.audit.record(ctx, actor, models.AuditActionRewardCreate, "reward", reward.ID, nil, reward)
	return reward, nil
}

// Update edits cost, stock or descriptive fields. Already approved
// redemptions keep the cost captured at approval.
func (s *RewardService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateRewardRequest) (*models.Reward, error) {
	if err := s.access.Require(actor, CapManageRewards); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reward payload")
	}
	reward, err := s.rewards.FindByID(ctx, nil, id)
	if err != nil {
		return nil, notFoundOr(err, "reward not found", "failed to load reward")
	}
	before := *reward
	if req.Name != nil {
		reward.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		reward.Description = *req.Description
	}
	if req.Cost != nil {
		reward.Cost = *req.Cost
	}
	if req.Stock != nil {
		reward.Stock = *req.Stock
	}
	if req.Source != nil {
		reward.Source = *req.Source
	}
	if err := s.rewards.Update(ctx, reward); err != nil {
		return nil, notFoundOr(err, "reward not found", "failed to update reward")
	}
	s.audit.record(ctx, actor, models.AuditActionRewardUpdate, "reward", reward.ID, before, reward)
	return reward, nil
}

// Delete removes a reward that was never redeemed.
func (s *RewardService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := s.access.Require(actor, CapManageRewards); err != nil {
		return err
	}
	if err := s.rewards.Delete(ctx, id); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "reward has redemptions; set its stock to zero instead")
		}
		return notFoundOr(err, "reward not found", "failed to delete reward")
	}
	s.audit.record(ctx, actor, models.AuditActionRewardDelete, "reward", id, nil, nil)
	return nil
}
