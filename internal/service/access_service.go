package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupoint-api/internal/models"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

// Capability names an action gated by role.
type Capability string

const (
	CapRecordActivity    Capability = "activity:record"
	CapViewStudents      Capability = "students:view"
	CapManageStudents    Capability = "students:manage"
	CapGenerateQR        Capability = "qr:generate"
	CapRequestRedemption Capability = "redemption:request"
	CapDecideRedemption  Capability = "redemption:decide"
	CapViewQueue         Capability = "redemption:queue"
	CapManageRewards     Capability = "rewards:manage"
	CapReconcile         Capability = "ledger:reconcile"
	CapManageTeachers    Capability = "teachers:manage"
	CapResetPasswords    Capability = "users:reset-password"
)

// capabilities is the role to capability table. Roles absent from a row lack it.
var capabilities = map[models.UserRole]map[Capability]bool{
	models.RoleStudent: {
		CapRequestRedemption: true,
	},
	models.RoleTeacher: {
		CapRecordActivity: true,
		CapViewStudents:   true,
		CapGenerateQR:     true,
	},
	models.RoleAdmin: {
		CapRecordActivity:    true,
		CapViewStudents:      true,
		CapManageStudents:    true,
		CapGenerateQR:        true,
		CapRequestRedemption: true,
		CapDecideRedemption:  true,
		CapViewQueue:         true,
		CapManageRewards:     true,
		CapReconcile:         true,
		CapManageTeachers:    true,
		CapResetPasswords:    true,
	},
}

type accessTeacherStore interface {
	FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Teacher, error)
	IsAssigned(ctx context.Context, tx *sqlx.Tx, teacherID, className string) (bool, error)
}

type accessStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// AccessService answers authorization questions for the ledger.
type AccessService struct {
	teachers accessTeacherStore
	students accessStudentStore
}

// NewAccessService constructs an AccessService.
func NewAccessService(teachers accessTeacherStore, students accessStudentStore) *AccessService {
	return &AccessService{teachers: teachers, students: students}
}

// Can reports whether the role holds the capability.
func Can(role models.UserRole, capability Capability) bool {
	return capabilities[role][capability]
}

// Require returns FORBIDDEN unless the actor holds the capability.
func (s *AccessService) Require(actor *models.JWTClaims, capability Capability) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !Can(actor.Role, capability) {
		return appErrors.Clone(appErrors.ErrForbidden, "role "+string(actor.Role)+" cannot perform "+string(capability))
	}
	return nil
}

// CanViewStudent allows students to see only themselves.
func (s *AccessService) CanViewStudent(actor *models.JWTClaims, studentID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	switch actor.Role {
	case models.RoleStudent:
		if actor.IsStudent(studentID) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "students may only view their own ledger")
	case models.RoleTeacher, models.RoleAdmin:
		return nil
	default:
		return appErrors.ErrForbidden
	}
}

// AuthorizeActivityRecording reports whether actor may record an activity for
// studentID as teacherID.
func (s *AccessService) AuthorizeActivityRecording(ctx context.Context, actor *models.JWTClaims, teacherID, studentID string) (bool, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return false, notFoundOr(err, "student not found", "failed to load student")
	}
	return s.canRecordFor(ctx, nil, actor, teacherID, student.ClassName)
}

// canRecordFor applies the recording rule against a class. Teachers record
// only as themselves and only for assigned classes; admins always may.
func (s *AccessService) canRecordFor(ctx context.Context, tx *sqlx.Tx, actor *models.JWTClaims, teacherID, className string) (bool, error) {
	if actor == nil {
		return false, nil
	}
	switch actor.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleTeacher:
		if actor.TeacherID == "" || (teacherID != "" && teacherID != actor.TeacherID) {
			return false, nil
		}
		assigned, err := s.teachers.IsAssigned(ctx, tx, actor.TeacherID, className)
		if err != nil {
			return false, storageError(err, "failed to check class assignment")
		}
		return assigned, nil
	case models.RoleStudent:
		return false, nil
	default:
		return false, nil
	}
}

// teacherExists checks a teacher reference inside tx.
func (s *AccessService) teacherExists(ctx context.Context, tx *sqlx.Tx, teacherID string) error {
	if _, err := s.teachers.FindByID(ctx, tx, teacherID); err != nil {
		return notFoundOr(err, "teacher not found", "failed to load teacher")
	}
	return nil
}
