package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/response"
)

type activityService interface {
	RecordActivity(ctx context.Context, actor *models.JWTClaims, req models.RecordActivityRequest) (*models.Activity, error)
	ListActivities(ctx context.Context, actor *models.JWTClaims, filter models.ActivityFilter) ([]models.ActivityDetail, *models.Pagination, error)
}

// ActivityHandler records and lists point-earning activities.
type ActivityHandler struct {
	activities activityService
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(activities activityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// Record godoc
// @Summary Record activity
// @Description Credits 1 to 100 points to a student. Teachers may only credit students in their assigned classes.
// @Tags Activities
// @Accept json
// @Produce json
// @Param payload body models.RecordActivityRequest true "Activity payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /activities [post]
func (h *ActivityHandler) Record(c *gin.Context) {
	var req models.RecordActivityRequest
	if !bindJSON(c, &req, "invalid activity payload") {
		return
	}
	activity, err := h.activities.RecordActivity(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// ListForStudent godoc
// @Summary Student activity log
// @Tags Activities
// @Produce json
// @Param id path string true "Student ID"
// @Param category query string false "Category"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/activities [get]
func (h *ActivityHandler) ListForStudent(c *gin.Context) {
	filter := models.ActivityFilter{
		StudentID: c.Param("id"),
		Category:  models.ActivityCategory(c.Query("category")),
	}
	var err error
	if filter.DateFrom, err = parseDate(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.DateTo, err = parseDate(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.activities.ListActivities(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}
