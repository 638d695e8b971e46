package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupoint-api/internal/models"
)

// ActivityRepository stores the append-only activity log.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an activity. CreatedAt is always the server time.
func (r *ActivityRepository) Create(ctx context.Context, tx *sqlx.Tx, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	activity.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO activities (id, student_id, teacher_id, recorded_by, category, reason, points, created_at)
        VALUES (:id, :student_id, :teacher_id, :recorded_by, :category, :reason, :points, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext(r.db, tx), query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// List returns activities newest first.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityDetail, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("a.teacher_id = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("a.category = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("a.created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("a.created_at < $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.teacher_id, a.recorded_by, a.category, a.reason, a.points, a.created_at, t.full_name AS teacher_name
        FROM activities a LEFT JOIN teachers t ON t.id = a.teacher_id
        WHERE %s ORDER BY a.created_at DESC, a.id DESC LIMIT %d OFFSET %d`, where, size, pageOffset(page, size))

	var activities []models.ActivityDetail
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM activities a WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return activities, total, nil
}

// ListForStudent returns the full history of a student in chronological order.
func (r *ActivityRepository) ListForStudent(ctx context.Context, studentID string) ([]models.ActivityDetail, error) {
	const query = `SELECT a.id, a.student_id, a.teacher_id, a.recorded_by, a.category, a.reason, a.points, a.created_at, t.full_name AS teacher_name
        FROM activities a LEFT JOIN teachers t ON t.id = a.teacher_id
        WHERE a.student_id = $1 ORDER BY a.created_at ASC, a.id ASC`
	var activities []models.ActivityDetail
	if err := r.db.SelectContext(ctx, &activities, query, studentID); err != nil {
		return nil, fmt.Errorf("list student activities: %w", err)
	}
	return activities, nil
}
