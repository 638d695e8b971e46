package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/response"
)

type rewardService interface {
	List(ctx context.Context, filter models.RewardFilter) ([]models.Reward, error)
	Get(ctx context.Context, id string) (*models.Reward, error)
	Create(ctx context.Context, actor *models.JWTClaims, req models.CreateRewardRequest) (*models.Reward, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateRewardRequest) (*models.Reward, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// RewardHandler manages the reward catalogue.
type RewardHandler struct {
	rewards rewardService
}

// NewRewardHandler constructs RewardHandler.
func NewRewardHandler(rewards rewardService) *RewardHandler {
	return &RewardHandler{rewards: rewards}
}

// List godoc
// @Summary List rewards
// @Tags Rewards
// @Produce json
// @Param source query string false "coop or canteen"
// @Param in_stock query bool false "Only rewards with stock left"
// @Success 200 {object} response.Envelope
// @Router /rewards [get]
func (h *RewardHandler) List(c *gin.Context) {
	filter := models.RewardFilter{Source: models.RewardSource(c.Query("source"))}
	if raw := c.Query("in_stock"); raw != "" {
		filter.InStockOnly, _ = strconv.ParseBool(raw)
	}
	rewards, err := h.rewards.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rewards)
}

// Get godoc
// @Summary Get reward
// @Tags Rewards
// @Produce json
// @Param id path string true "Reward ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rewards/{id} [get]
func (h *RewardHandler) Get(c *gin.Context) {
	reward, err := h.rewards.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reward)
}

// Create godoc
// @Summary Create reward
// @Tags Rewards
// @Accept json
// @Produce json
// @Param payload body models.CreateRewardRequest true "Reward payload"
// @Success 201 {object} response.Envelope
// @Router /rewards [post]
func (h *RewardHandler) Create(c *gin.Context) {
	var req models.CreateRewardRequest
	if !bindJSON(c, &req, "invalid reward payload") {
		return
	}
	reward, err := h.rewards.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reward)
}

// Update godoc
// @Summary Update reward
// @Description Cost changes apply to redemptions approved afterwards
// @Tags Rewards
// @Accept json
// @Produce json
// @Param id path string true "Reward ID"
// @Param payload body models.UpdateRewardRequest true "Reward fields to change"
// @Success 200 {object} response.Envelope
// @Router /rewards/{id} [put]
func (h *RewardHandler) Update(c *gin.Context) {
	var req models.UpdateRewardRequest
	if !bindJSON(c, &req, "invalid reward payload") {
		return
	}
	reward, err := h.rewards.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reward)
}

// Delete godoc
// @Summary Delete reward
// @Description Rewards that were ever requested cannot be deleted
// @Tags Rewards
// @Param id path string true "Reward ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rewards/{id} [delete]
func (h *RewardHandler) Delete(c *gin.Context) {
	if err := h.rewards.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
