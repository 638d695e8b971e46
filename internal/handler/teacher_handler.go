package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/response"
)

type teacherService interface {
	List(ctx context.Context, actor *models.JWTClaims) ([]models.Teacher, error)
	Classes(ctx context.Context, actor *models.JWTClaims, teacherID string) ([]string, error)
	Assign(ctx context.Context, actor *models.JWTClaims, teacherID string, req models.AssignClassRequest) ([]string, error)
	Unassign(ctx context.Context, actor *models.JWTClaims, teacherID, className string) error
}

// TeacherHandler manages teachers and their class assignments.
type TeacherHandler struct {
	teachers teacherService
}

// NewTeacherHandler constructs TeacherHandler.
func NewTeacherHandler(teachers teacherService) *TeacherHandler {
	return &TeacherHandler{teachers: teachers}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	teachers, err := h.teachers.List(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, teachers)
}

// Classes godoc
// @Summary List a teacher's classes
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/classes [get]
func (h *TeacherHandler) Classes(c *gin.Context) {
	classes, err := h.teachers.Classes(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, classes)
}

// Assign godoc
// @Summary Assign a class to a teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body models.AssignClassRequest true "Class"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/classes [post]
func (h *TeacherHandler) Assign(c *gin.Context) {
	var req models.AssignClassRequest
	if !bindJSON(c, &req, "invalid class assignment") {
		return
	}
	classes, err := h.teachers.Assign(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, classes)
}

// Unassign godoc
// @Summary Remove a class from a teacher
// @Tags Teachers
// @Param id path string true "Teacher ID"
// @Param class path string true "Class name"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/classes/{class} [delete]
func (h *TeacherHandler) Unassign(c *gin.Context) {
	if err := h.teachers.Unassign(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.Param("class")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
