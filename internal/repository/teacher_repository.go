package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edupoint-api/internal/models"
)

// TeacherRepository manages teachers and their class assignments.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns all teachers ordered by name.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, "SELECT id, full_name, created_at, updated_at FROM teachers ORDER BY full_name"); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindByID fetches a teacher, optionally inside tx.
func (r *TeacherRepository) FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, ext(r.db, tx), &teacher, "SELECT id, full_name, created_at, updated_at FROM teachers WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Create inserts a teacher.
func (r *TeacherRepository) Create(ctx context.Context, tx *sqlx.Tx, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	const query = `INSERT INTO teachers (id, full_name, created_at, updated_at) VALUES (:id, :full_name, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext(r.db, tx), query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// ListClasses returns the classes assigned to a teacher.
func (r *TeacherRepository) ListClasses(ctx context.Context, teacherID string) ([]string, error) {
	var classes []string
	const query = `SELECT class_name FROM teacher_class WHERE teacher_id = $1 ORDER BY class_name`
	if err := r.db.SelectContext(ctx, &classes, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher classes: %w", err)
	}
	return classes, nil
}

// IsAssigned reports whether the teacher is assigned to the class.
func (r *TeacherRepository) IsAssigned(ctx context.Context, tx *sqlx.Tx, teacherID, className string) (bool, error) {
	var exists int
	const query = `SELECT 1 FROM teacher_class WHERE teacher_id = $1 AND class_name = $2 LIMIT 1`
	if err := sqlx.GetContext(ctx, ext(r.db, tx), &exists, query, teacherID, className); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher class: %w", err)
	}
	return true, nil
}

// AssignClass links a teacher to a class. Repeated assignment is a no-op.
func (r *TeacherRepository) AssignClass(ctx context.Context, teacherID, className string) error {
	const query = `INSERT INTO teacher_class (teacher_id, class_name, created_at) VALUES ($1, $2, $3)
        ON CONFLICT (teacher_id, class_name) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, teacherID, className, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign teacher class: %w", err)
	}
	return nil
}

// UnassignClass removes a teacher to class link.
func (r *TeacherRepository) UnassignClass(ctx context.Context, teacherID, className string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teacher_class WHERE teacher_id = $1 AND class_name = $2`, teacherID, className)
	if err != nil {
		return fmt.Errorf("unassign teacher class: %w", err)
	}
	return requireRow(result, "unassign teacher class")
}
