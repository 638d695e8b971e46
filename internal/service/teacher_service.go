package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
)

type teacherStore interface {
	List(ctx context.Context) ([]models.Teacher, error)
	FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Teacher, error)
	ListClasses(ctx context.Context, teacherID string) ([]string, error)
	AssignClass(ctx context.Context, teacherID, className string) error
	UnassignClass(ctx context.Context, teacherID, className string) error
}

// TeacherService manages teacher to class assignments.
type TeacherService struct {
	teachers  teacherStore
	access    *AccessService
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(teachers teacherStore, access *AccessService, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TeacherService{teachers: teachers, access: access, audit: newAuditTrail(audit, logger, "teacher-service"), validator: validate, logger: logger}
}

// List returns all teachers.
func (s *TeacherService) List(ctx context.Context, actor *models.JWTClaims) ([]models.Teacher, error) {
	if err := s.access.Require(actor, CapManageTeachers); err != nil {
		return nil, err
	}
	teachers, err := s.teachers.List(ctx)
	if err != nil {
		return nil, storageError(err, "failed to list teachers")
	}
	return teachers, nil
}

// Classes lists the classes of a teacher. Teachers may read their own.
func (s *TeacherService) Classes(ctx context.Context, actor *models.JWTClaims, teacherID string) ([]string, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleTeacher || actor.TeacherID != teacherID {
		if err := s.access.Require(actor, CapManageTeachers); err != nil {
			return nil, err
		}
	}
	if _, err := s.teachers.FindByID(ctx, nil, teacherID); err != nil {
		return nil, notFoundOr(err, "teacher not found", "failed to load teacher")
	}
	classes, err := s.teachers.ListClasses(ctx, teacherID)
	if err != nil {
		return nil, storageError(err, "failed to list classes")
	}
	if classes == nil {
		classes = []string{}
	}
	return classes, nil
}

// Assign links a class to a teacher.
func (s *TeacherService) Assign(ctx context.Context, actor *models.JWTClaims, teacherID string, req models.AssignClassRequest) ([]string, error) {
	if err := s.access.Require(actor, CapManageTeachers); err != nil {
		return nil, err
	}
	req.ClassName = strings.TrimSpace(req.ClassName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class assignment")
	}
	if _, err := s.teachers.FindByID(ctx, nil, teacherID); err != nil {
		return nil, notFoundOr(err, "teacher not found", "failed to load teacher")
	}
	if err := s.teachers.AssignClass(ctx, teacherID, req.ClassName); err != nil {
		return nil, storageError(err, "failed to assign class")
	}
	s.audit.record(ctx, actor, models.AuditActionTeacherClassChange, "teacher", teacherID, nil, map[string]string{"assigned": req.ClassName})
	return s.Classes(ctx, actor, teacherID)
}

// Unassign removes a class from a teacher.
func (s *TeacherService) Unassign(ctx context.Context, actor *models.JWTClaims, teacherID, className string) error {
	if err := s.access.Require(actor, CapManageTeachers); err != nil {
		return err
	}
	if err := s.teachers.UnassignClass(ctx, teacherID, className); err != nil {
		return notFoundOr(err, "assignment not found", "failed to unassign class")
	}
	s.audit.record(ctx, actor, models.AuditActionTeacherClassChange, "teacher", teacherID, map[string]string{"assigned": className}, nil)
	return nil
}
