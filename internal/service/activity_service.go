package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

type activityStudentStore interface {
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
	AdjustBalance(ctx context.Context, tx *sqlx.Tx, id string, delta int64) error
}

type activityStore interface {
	Create(ctx context.Context, tx *sqlx.Tx, activity *models.Activity) error
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityDetail, int, error)
}

// ActivityService is the single entry point for awarding points.
type ActivityService struct {
	tx         txRunner
	students   activityStudentStore
	activities activityStore
	access     *AccessService
	cache      *CacheService
	metrics    *MetricsService
	audit      auditTrail
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(tx txRunner, students activityStudentStore, activities activityStore, access *AccessService, cache *CacheService, metrics *MetricsService, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ActivityService{
		tx:         tx,
		students:   students,
		activities: activities,
		access:     access,
		cache:      cache,
		metrics:    metrics,
		audit:      newAuditTrail(audit, logger, "activity-service"),
		validator:  validate,
		logger:     logger,
	}
	svc.validator.RegisterValidation("activity_category", func(fl validator.FieldLevel) bool {
		return models.ActivityCategory(fl.Field().String()).Valid()
	})
	return svc
}

// RecordActivity appends an activity and credits the stored balance in one transaction.
func (s *ActivityService) RecordActivity(ctx context.Context, actor *models.JWTClaims, req models.RecordActivityRequest) (*models.Activity, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid activity payload")
	}
	if err := s.access.Require(actor, CapRecordActivity); err != nil {
		return nil, err
	}

	teacherID := req.TeacherID
	if actor.Role == models.RoleTeacher && teacherID == "" {
		teacherID = actor.TeacherID
	}

	activity := &models.Activity{
		StudentID:  req.StudentID,
		TeacherID:  stringPtr(teacherID),
		RecordedBy: actor.UserID,
		Category:   req.Category,
		Reason:     req.Reason,
		Points:     req.Points,
	}

	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		student, err := s.students.LockByID(ctx, tx, req.StudentID)
		if err != nil {
			return notFoundOr(err, "student not found", "failed to lock student")
		}
		if teacherID != "" {
			if err := s.access.teacherExists(ctx, tx, teacherID); err != nil {
				return err
			}
		}
		allowed, err := s.access.canRecordFor(ctx, tx, actor, teacherID, student.ClassName)
		if err != nil {
			return err
		}
		if !allowed {
			return appErrors.Clone(appErrors.ErrForbidden, "not allowed to record activities for class "+student.ClassName)
		}
		if err := s.activities.Create(ctx, tx, activity); err != nil {
			return storageError(err, "failed to record activity")
		}
		if err := s.students.AdjustBalance(ctx, tx, student.ID, activity.Points); err != nil {
			return storageError(err, "failed to credit balance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ActivityRecorded(activity.Category, activity.Points)
	s.cache.InvalidateStudents(ctx, activity.StudentID)
	s.audit.record(ctx, actor, models.AuditActionActivityRecord, "activity", activity.ID, nil, activity)
	s.logger.Info("activity recorded",
		zap.String("activity_id", activity.ID),
		zap.String("student_id", activity.StudentID),
		zap.String("category", string(activity.Category)),
		zap.Int64("points", activity.Points),
	)
	return activity, nil
}

// ListActivities returns a student's activity log.
func (s *ActivityService) ListActivities(ctx context.Context, actor *models.JWTClaims, filter models.ActivityFilter) ([]models.ActivityDetail, *models.Pagination, error) {
	if err := s.access.CanViewStudent(actor, filter.StudentID); err != nil {
		return nil, nil, err
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown category "+string(filter.Category))
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	items, total, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, nil, storageError(err, "failed to list activities")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
