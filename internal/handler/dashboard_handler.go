package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/internal/service"
	"github.com/noah-isme/edupoint-api/pkg/response"
)

type dashboardService interface {
	Build(ctx context.Context, actor *models.JWTClaims) (*service.Dashboard, error)
}

// DashboardHandler serves the role-specific landing page.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Get godoc
// @Summary Role dashboard
// @Description Students see their balance and rewards, teachers their classes, admins the redemption queue
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	dashboard, err := h.service.Build(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dashboard)
}
