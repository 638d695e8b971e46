package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/response"
)

type redemptionService interface {
	RequestRedemption(ctx context.Context, actor *models.JWTClaims, req models.RequestRedemptionRequest) (*models.Redemption, error)
	DecideRedemption(ctx context.Context, actor *models.JWTClaims, id string, req models.DecideRedemptionRequest) (*models.Redemption, error)
	BulkDecide(ctx context.Context, actor *models.JWTClaims, req models.BulkDecisionRequest) (*models.BulkDecisionResult, error)
	ApproveAllPending(ctx context.Context, actor *models.JWTClaims, className string) (*models.BulkDecisionResult, error)
	RejectAllInsufficient(ctx context.Context, actor *models.JWTClaims, className string) (*models.BulkDecisionResult, error)
	ListRedemptions(ctx context.Context, actor *models.JWTClaims, filter models.RedemptionFilter) ([]models.RedemptionDetail, *models.Pagination, error)
	GetRedemption(ctx context.Context, actor *models.JWTClaims, id string) (*models.RedemptionDetail, error)
}

// RedemptionHandler exposes the redemption queue and decisions.
type RedemptionHandler struct {
	redemptions redemptionService
}

// NewRedemptionHandler constructs RedemptionHandler.
func NewRedemptionHandler(redemptions redemptionService) *RedemptionHandler {
	return &RedemptionHandler{redemptions: redemptions}
}

// Request godoc
// @Summary Request a reward
// @Description Creates a pending redemption. Points and stock are checked when an admin approves it.
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param payload body models.RequestRedemptionRequest true "Redemption payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /redemptions [post]
func (h *RedemptionHandler) Request(c *gin.Context) {
	var req models.RequestRedemptionRequest
	if !bindJSON(c, &req, "invalid redemption payload") {
		return
	}
	redemption, err := h.redemptions.RequestRedemption(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, redemption)
}

// List godoc
// @Summary Redemption queue
// @Tags Redemptions
// @Produce json
// @Param status query string false "pending, approved, rejected or insufficient" default(pending)
// @Param class query string false "Filter by class"
// @Param student_id query string false "Filter by student"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /redemptions [get]
func (h *RedemptionHandler) List(c *gin.Context) {
	filter := models.RedemptionFilter{
		Queue:     models.RedemptionQueue(c.DefaultQuery("status", string(models.QueuePending))),
		ClassName: strings.TrimSpace(c.Query("class")),
		StudentID: c.Query("student_id"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.redemptions.ListRedemptions(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get redemption
// @Tags Redemptions
// @Produce json
// @Param id path string true "Redemption ID"
// @Success 200 {object} response.Envelope
// @Router /redemptions/{id} [get]
func (h *RedemptionHandler) Get(c *gin.Context) {
	item, err := h.redemptions.GetRedemption(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Decide godoc
// @Summary Approve or reject a redemption
// @Description Approval debits the reward cost and one unit of stock atomically. A refused approval leaves the request pending.
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param id path string true "Redemption ID"
// @Param payload body models.DecideRedemptionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /redemptions/{id}/decision [post]
func (h *RedemptionHandler) Decide(c *gin.Context) {
	var req models.DecideRedemptionRequest
	if !bindJSON(c, &req, "invalid decision payload") {
		return
	}
	redemption, err := h.redemptions.DecideRedemption(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, redemption)
}

// BulkDecide godoc
// @Summary Decide many redemptions
// @Description Each id is decided in its own transaction, oldest request first
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param payload body models.BulkDecisionRequest true "Bulk decision"
// @Success 200 {object} response.Envelope
// @Router /redemptions/bulk-decision [post]
func (h *RedemptionHandler) BulkDecide(c *gin.Context) {
	var req models.BulkDecisionRequest
	if !bindJSON(c, &req, "invalid bulk decision payload") {
		return
	}
	result, err := h.redemptions.BulkDecide(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ApprovePending godoc
// @Summary Approve every pending redemption
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param payload body models.ClassScopeRequest false "Optional class"
// @Success 200 {object} response.Envelope
// @Router /redemptions/approve-pending [post]
func (h *RedemptionHandler) ApprovePending(c *gin.Context) {
	scope, ok := bindScope(c)
	if !ok {
		return
	}
	result, err := h.redemptions.ApproveAllPending(c.Request.Context(), claimsFromContext(c), scope.ClassName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// RejectInsufficient godoc
// @Summary Reject every redemption that cannot be fulfilled
// @Tags Redemptions
// @Accept json
// @Produce json
// @Param payload body models.ClassScopeRequest false "Optional class"
// @Success 200 {object} response.Envelope
// @Router /redemptions/reject-insufficient [post]
func (h *RedemptionHandler) RejectInsufficient(c *gin.Context) {
	scope, ok := bindScope(c)
	if !ok {
		return
	}
	result, err := h.redemptions.RejectAllInsufficient(c.Request.Context(), claimsFromContext(c), scope.ClassName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// bindScope accepts an empty body as "all classes".
func bindScope(c *gin.Context) (models.ClassScopeRequest, bool) {
	var scope models.ClassScopeRequest
	if c.Request.ContentLength == 0 {
		scope.ClassName = strings.TrimSpace(c.Query("class"))
		return scope, true
	}
	if !bindJSON(c, &scope, "invalid class scope") {
		return scope, false
	}
	scope.ClassName = strings.TrimSpace(scope.ClassName)
	return scope, true
}
