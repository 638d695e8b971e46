package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edupoint-api/internal/models"
)

const studentColumns = "id, full_name, class_name, balance, created_at, updated_at"

// StudentRepository manages persistence for students and their stored balance.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students in leaderboard order (balance desc, name asc).
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.ClassName != "" {
		args = append(args, filter.ClassName)
		conditions = append(conditions, fmt.Sprintf("class_name = $%d", len(args)))
	}
	if len(filter.ClassNames) > 0 {
		args = append(args, pq.Array(filter.ClassNames))
		conditions = append(conditions, fmt.Sprintf("class_name = ANY($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(full_name) LIKE $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY balance DESC, full_name ASC LIMIT %d OFFSET %d",
		studentColumns, where, size, pageOffset(page, size))

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student without locking.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// LockByID fetches a student row FOR UPDATE inside tx.
func (r *StudentRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	var student models.Student
	if err := sqlx.GetContext(ctx, ext(r.db, tx), &student, "SELECT "+studentColumns+" FROM students WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student with a zero balance.
func (r *StudentRepository) Create(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.Balance = 0
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, full_name, class_name, balance, created_at, updated_at)
        VALUES (:id, :full_name, :class_name, :balance, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext(r.db, tx), query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// AdjustBalance adds delta to the stored balance.
func (r *StudentRepository) AdjustBalance(ctx context.Context, tx *sqlx.Tx, id string, delta int64) error {
	const query = `UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1`
	result, err := ext(r.db, tx).ExecContext(ctx, query, id, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adjust student balance: %w", err)
	}
	return requireRow(result, "adjust student balance")
}

// SetBalance overwrites the stored balance, used by reconciliation.
func (r *StudentRepository) SetBalance(ctx context.Context, tx *sqlx.Tx, id string, balance int64) error {
	const query = `UPDATE students SET balance = $2, updated_at = $3 WHERE id = $1`
	result, err := ext(r.db, tx).ExecContext(ctx, query, id, balance, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set student balance: %w", err)
	}
	return requireRow(result, "set student balance")
}

// ListClasses returns the distinct class names in use.
func (r *StudentRepository) ListClasses(ctx context.Context) ([]string, error) {
	var classes []string
	if err := r.db.SelectContext(ctx, &classes, "SELECT DISTINCT class_name FROM students ORDER BY class_name"); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
