package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edupoint-api/internal/models"
)

const (
	redemptionColumns = "id, student_id, reward_id, status, cost, decided_by, decided_at, note, created_at"

	redemptionDetailSelect = `SELECT r.id, r.student_id, r.reward_id, r.status, r.cost, r.decided_by, r.decided_at, r.note, r.created_at,
        s.full_name AS student_name, s.class_name, s.balance AS student_balance,
        w.name AS reward_name, w.cost AS reward_cost, w.stock AS reward_stock
        FROM redemptions r
        JOIN students s ON s.id = r.student_id
        JOIN rewards w ON w.id = r.reward_id`

	// insufficientCondition selects pending rows that could not be approved right now.
	insufficientCondition = "r.status = 'pending' AND (s.balance < w.cost OR w.stock <= 0)"
)

// RedemptionDecisionParams describes the transition of a pending redemption.
type RedemptionDecisionParams struct {
	ID        string
	Status    models.RedemptionStatus
	Cost      *int64
	DecidedBy string
	DecidedAt time.Time
	Note      *string
}

// RedemptionRepository persists redemption requests and their decisions.
type RedemptionRepository struct {
	db *sqlx.DB
}

// NewRedemptionRepository constructs a RedemptionRepository.
func NewRedemptionRepository(db *sqlx.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// Create inserts a pending redemption.
func (r *RedemptionRepository) Create(ctx context.Context, tx *sqlx.Tx, redemption *models.Redemption) error {
	if redemption.ID == "" {
		redemption.ID = uuid.NewString()
	}
	redemption.Status = models.RedemptionPending
	redemption.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO redemptions (id, student_id, reward_id, status, created_at)
        VALUES (:id, :student_id, :reward_id, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext(r.db, tx), query, redemption); err != nil {
		return fmt.Errorf("create redemption: %w", err)
	}
	return nil
}

// FindByID fetches a redemption with its student and reward context.
func (r *RedemptionRepository) FindByID(ctx context.Context, id string) (*models.RedemptionDetail, error) {
	var detail models.RedemptionDetail
	if err := r.db.GetContext(ctx, &detail, redemptionDetailSelect+" WHERE r.id = $1", id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// LockByID fetches a redemption row FOR UPDATE inside tx.
func (r *RedemptionRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Redemption, error) {
	var redemption models.Redemption
	query := "SELECT " + redemptionColumns + " FROM redemptions WHERE id = $1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, ext(r.db, tx), &redemption, query, id); err != nil {
		return nil, err
	}
	return &redemption, nil
}

// UpdateDecision moves a pending redemption to a terminal state. It returns
// sql.ErrNoRows when the row is no longer pending.
func (r *RedemptionRepository) UpdateDecision(ctx context.Context, tx *sqlx.Tx, params RedemptionDecisionParams) error {
	const query = `UPDATE redemptions SET status = :status, cost = :cost, decided_by = :decided_by, decided_at = :decided_at, note = :note
        WHERE id = :id AND status = 'pending'`
	result, err := sqlx.NamedExecContext(ctx, ext(r.db, tx), query, map[string]interface{}{
		"id":         params.ID,
		"status":     params.Status,
		"cost":       params.Cost,
		"decided_by": params.DecidedBy,
		"decided_at": params.DecidedAt,
		"note":       params.Note,
	})
	if err != nil {
		return fmt.Errorf("update redemption decision: %w", err)
	}
	return requireRow(result, "update redemption decision")
}

// List returns redemptions for a queue ordered by creation time.
func (r *RedemptionRepository) List(ctx context.Context, filter models.RedemptionFilter) ([]models.RedemptionDetail, int, error) {
	where, args := redemptionConditions(filter.Queue, filter.ClassName, filter.StudentID)

	order := "r.created_at ASC, r.id ASC"
	if filter.Queue == models.QueueApproved || filter.Queue == models.QueueRejected {
		order = "r.created_at DESC, r.id DESC"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("%s WHERE %s ORDER BY %s LIMIT %d OFFSET %d", redemptionDetailSelect, where, order, size, pageOffset(page, size))

	var items []models.RedemptionDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list redemptions: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM redemptions r JOIN students s ON s.id = r.student_id JOIN rewards w ON w.id = r.reward_id WHERE ` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count redemptions: %w", err)
	}
	return items, total, nil
}

// Count returns the number of redemptions in a queue.
func (r *RedemptionRepository) Count(ctx context.Context, queue models.RedemptionQueue, className string) (int, error) {
	where, args := redemptionConditions(queue, className, "")
	query := `SELECT COUNT(*) FROM redemptions r JOIN students s ON s.id = r.student_id JOIN rewards w ON w.id = r.reward_id WHERE ` + where
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return total, nil
}

// QueueIDs returns the ids of a queue in processing order.
func (r *RedemptionRepository) QueueIDs(ctx context.Context, queue models.RedemptionQueue, className string) ([]string, error) {
	where, args := redemptionConditions(queue, className, "")
	query := `SELECT r.id FROM redemptions r JOIN students s ON s.id = r.student_id JOIN rewards w ON w.id = r.reward_id
        WHERE ` + where + ` ORDER BY r.created_at ASC, r.id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list redemption queue ids: %w", err)
	}
	return ids, nil
}

// OrderIDs returns the subset of ids that exist, ordered by creation time then id.
func (r *RedemptionRepository) OrderIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id FROM redemptions WHERE id = ANY($1) ORDER BY created_at ASC, id ASC`
	var ordered []string
	if err := r.db.SelectContext(ctx, &ordered, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("order redemption ids: %w", err)
	}
	return ordered, nil
}

// ListForStudent returns every redemption of a student in chronological order.
func (r *RedemptionRepository) ListForStudent(ctx context.Context, studentID string) ([]models.RedemptionDetail, error) {
	var items []models.RedemptionDetail
	query := redemptionDetailSelect + " WHERE r.student_id = $1 ORDER BY r.created_at ASC, r.id ASC"
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list student redemptions: %w", err)
	}
	return items, nil
}

func redemptionConditions(queue models.RedemptionQueue, className, studentID string) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}
	switch queue {
	case models.QueueInsufficient:
		conditions = append(conditions, insufficientCondition)
	case models.QueuePending, models.QueueApproved, models.QueueRejected:
		args = append(args, string(queue))
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)))
	default:
		conditions = append(conditions, "1=1")
	}
	if className != "" {
		args = append(args, className)
		conditions = append(conditions, fmt.Sprintf("s.class_name = $%d", len(args)))
	}
	if studentID != "" {
		args = append(args, studentID)
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}
