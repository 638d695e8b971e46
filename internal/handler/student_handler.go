package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupoint-api/internal/dto"
	"github.com/noah-isme/edupoint-api/internal/middleware"
	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/internal/service"
	"github.com/noah-isme/edupoint-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.StudentFilter) (*service.Leaderboard, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Student, error)
	Balance(ctx context.Context, actor *models.JWTClaims, id string) (*models.BalanceSnapshot, error)
	Create(ctx context.Context, actor *models.JWTClaims, req models.CreateStudentRequest) (*models.Student, error)
	Classes(ctx context.Context, actor *models.JWTClaims) ([]string, error)
	Entries(ctx context.Context, actor *models.JWTClaims, studentID string) (*models.Student, []models.StatementEntry, error)
	Statement(ctx context.Context, actor *models.JWTClaims, studentID, format string) (*service.Statement, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students by balance
// @Description Students ordered by balance, highest first. Unfiltered first pages may be served from cache.
// @Tags Students
// @Produce json
// @Param class query string false "Filter by class"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.ClassName = strings.TrimSpace(c.Query("class"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)

	board, err := h.students.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, board.Cached)
	response.JSON(c, http.StatusOK, board.Students, &board.Pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}

// Balance godoc
// @Summary Balance snapshot
// @Description Stored balance next to the balance derived from activity and redemption history
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/balance [get]
func (h *StudentHandler) Balance(c *gin.Context) {
	snapshot, err := h.students.Balance(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// Create godoc
// @Summary Enroll student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body models.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req models.CreateStudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, err := h.students.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Classes godoc
// @Summary List classes
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/classes [get]
func (h *StudentHandler) Classes(c *gin.Context) {
	classes, err := h.students.Classes(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, classes)
}

// Statement godoc
// @Summary Ledger statement
// @Description Activities and approved redemptions with a running balance, as JSON, CSV or PDF
// @Tags Students
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param format query string false "json, csv or pdf" default(json)
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/statement [get]
func (h *StudentHandler) Statement(c *gin.Context) {
	actor := claimsFromContext(c)
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format == "json" {
		student, entries, err := h.students.Entries(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, dto.NewStatementResponse(student, entries))
		return
	}

	file, err := h.students.Statement(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}
