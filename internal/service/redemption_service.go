package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/internal/repository"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

// Request channels reported in metrics.
const (
	ChannelAPI = "api"
	ChannelQR  = "qr"
)

type redemptionStore interface {
	Create(ctx context.Context, tx *sqlx.Tx, redemption *models.Redemption) error
	FindByID(ctx context.Context, id string) (*models.RedemptionDetail, error)
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Redemption, error)
	UpdateDecision(ctx context.Context, tx *sqlx.Tx, params repository.RedemptionDecisionParams) error
	List(ctx context.Context, filter models.RedemptionFilter) ([]models.RedemptionDetail, int, error)
	QueueIDs(ctx context.Context, queue models.RedemptionQueue, className string) ([]string, error)
	OrderIDs(ctx context.Context, ids []string) ([]string, error)
}

type redemptionStudentStore interface {
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
	AdjustBalance(ctx context.Context, tx *sqlx.Tx, id string, delta int64) error
}

type redemptionRewardStore interface {
	FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Reward, error)
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Reward, error)
	DecrementStock(ctx context.Context, tx *sqlx.Tx, id string) error
}

// RedemptionService runs the pending, approved, rejected state machine.
// Approval re-checks stock and balance under row locks taken in the order
// redemption, student, reward.
type RedemptionService struct {
	tx          txRunner
	redemptions redemptionStore
	students    redemptionStudentStore
	rewards     redemptionRewardStore
	access      *AccessService
	cache       *CacheService
	metrics     *MetricsService
	audit       auditTrail
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewRedemptionService constructs a RedemptionService.
func NewRedemptionService(tx txRunner, redemptions redemptionStore, students redemptionStudentStore, rewards redemptionRewardStore, access *AccessService, cache *CacheService, metrics *MetricsService, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *RedemptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RedemptionService{
		tx:          tx,
		redemptions: redemptions,
		students:    students,
		rewards:     rewards,
		access:      access,
		cache:       cache,
		metrics:     metrics,
		audit:       newAuditTrail(audit, logger, "redemption-service"),
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// RequestRedemption files a pending request. Students request for themselves,
// admins for anyone. Balance and stock are untouched until approval.
func (s *RedemptionService) RequestRedemption(ctx context.Context, actor *models.JWTClaims, req models.RequestRedemptionRequest) (*models.Redemption, error) {
	if err := s.access.Require(actor, CapRequestRedemption); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		if req.StudentID != "" && req.StudentID != actor.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only redeem for themselves")
		}
		req.StudentID = actor.StudentID
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid redemption payload")
	}
	if req.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	return s.request(ctx, actor, req.StudentID, req.RewardID, ChannelAPI)
}

// RequestViaLink files a pending request for the student encoded in a verified deep link.
func (s *RedemptionService) RequestViaLink(ctx context.Context, studentID, rewardID string) (*models.Redemption, error) {
	if err := s.validator.Var(rewardID, "required,uuid"); err != nil {
		return nil, validationError(err, "invalid reward id")
	}
	return s.request(ctx, nil, studentID, rewardID, ChannelQR)
}

func (s *RedemptionService) request(ctx context.Context, actor *models.JWTClaims, studentID, rewardID, channel string) (*models.Redemption, error) {
	redemption := &models.Redemption{StudentID: studentID, RewardID: rewardID}
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.students.LockByID(ctx, tx, studentID); err != nil {
			return notFoundOr(err, "student not found", "failed to load student")
		}
		reward, err := s.rewards.FindByID(ctx, tx, rewardID)
		if err != nil {
			return notFoundOr(err, "reward not found", "failed to load reward")
		}
		if !reward.InStock() {
			return appErrors.Clone(appErrors.ErrOutOfStock, fmt.Sprintf("%s is out of stock", reward.Name))
		}
		if err := s.redemptions.Create(ctx, tx, redemption); err != nil {
			return storageError(err, "failed to create redemption")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RedemptionRequested(channel)
	s.audit.record(ctx, actor, models.AuditActionRedemptionRequest, "redemption", redemption.ID, nil, map[string]string{
		"student_id": studentID,
		"reward_id":  rewardID,
		"channel":    channel,
	})
	return redemption, nil
}

// DecideRedemption approves or rejects a pending redemption. A refused
// approval leaves the row pending.
func (s *RedemptionService) DecideRedemption(ctx context.Context, actor *models.JWTClaims, id string, req models.DecideRedemptionRequest) (*models.Redemption, error) {
	if err := s.access.Require(actor, CapDecideRedemption); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid decision payload")
	}
	redemption, err := s.decide(ctx, actor, id, req.Decision, req.Note)
	outcome := "ok"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	var spent int64
	if redemption != nil && redemption.Cost != nil {
		spent = *redemption.Cost
	}
	s.metrics.RedemptionDecided(req.Decision, outcome, spent)
	return redemption, err
}

func (s *RedemptionService) decide(ctx context.Context, actor *models.JWTClaims, id string, decision models.Decision, note string) (*models.Redemption, error) {
	var result *models.Redemption
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		redemption, err := s.redemptions.LockByID(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "redemption not found", "failed to lock redemption")
		}
		if redemption.Status != models.RedemptionPending {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("redemption already %s", redemption.Status))
		}
		student, err := s.students.LockByID(ctx, tx, redemption.StudentID)
		if err != nil {
			return notFoundOr(err, "student not found", "failed to lock student")
		}
		reward, err := s.rewards.LockByID(ctx, tx, redemption.RewardID)
		if err != nil {
			return notFoundOr(err, "reward not found", "failed to lock reward")
		}

		params := repository.RedemptionDecisionParams{
			ID:        redemption.ID,
			DecidedBy: actor.UserID,
			DecidedAt: s.now().UTC(),
			Note:      stringPtr(note),
		}
		switch decision {
		case models.DecisionApprove:
			if !reward.InStock() {
				return appErrors.Clone(appErrors.ErrOutOfStock, fmt.Sprintf("%s is out of stock", reward.Name))
			}
			if student.Balance < reward.Cost {
				return appErrors.Clone(appErrors.ErrInsufficientPoints, fmt.Sprintf("balance %d is below cost %d", student.Balance, reward.Cost))
			}
			cost := reward.Cost
			params.Status = models.RedemptionApproved
			params.Cost = &cost
		case models.DecisionReject:
			params.Status = models.RedemptionRejected
		default:
			return appErrors.Clone(appErrors.ErrValidation, "unknown decision "+string(decision))
		}

		if err := s.redemptions.UpdateDecision(ctx, tx, params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "redemption already decided")
			}
			return storageError(err, "failed to update redemption")
		}
		if params.Status == models.RedemptionApproved {
			if err := s.students.AdjustBalance(ctx, tx, student.ID, -*params.Cost); err != nil {
				return storageError(err, "failed to debit balance")
			}
			if err := s.rewards.DecrementStock(ctx, tx, reward.ID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrOutOfStock, fmt.Sprintf("%s is out of stock", reward.Name))
				}
				return storageError(err, "failed to decrement stock")
			}
		}

		redemption.Status = params.Status
		redemption.Cost = params.Cost
		redemption.DecidedBy = &params.DecidedBy
		redemption.DecidedAt = &params.DecidedAt
		redemption.Note = params.Note
		result = redemption
		return nil
	})
	if err != nil {
		if code := appErrors.CodeOf(err); code == appErrors.ErrInsufficientPoints.Code || code == appErrors.ErrOutOfStock.Code {
			s.logger.Info("approval refused", zap.String("redemption_id", id), zap.String("code", code))
		}
		return nil, err
	}

	if result.Status == models.RedemptionApproved {
		s.cache.InvalidateStudents(ctx, result.StudentID)
	}
	action := models.AuditActionRedemptionReject
	if result.Status == models.RedemptionApproved {
		action = models.AuditActionRedemptionApprove
	}
	s.audit.record(ctx, actor, action, "redemption", result.ID,
		map[string]string{"status": string(models.RedemptionPending)},
		map[string]interface{}{"status": result.Status, "cost": result.Cost, "note": result.Note})
	return result, nil
}

// BulkDecide applies one decision to many redemptions, oldest first. Each id
// is decided in its own transaction; one failure does not affect the others.
func (s *RedemptionService) BulkDecide(ctx context.Context, actor *models.JWTClaims, req models.BulkDecisionRequest) (*models.BulkDecisionResult, error) {
	if err := s.access.Require(actor, CapDecideRedemption); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk decision payload")
	}

	unique := dedupe(req.IDs)
	ordered, err := s.redemptions.OrderIDs(ctx, unique)
	if err != nil {
		return nil, storageError(err, "failed to order redemptions")
	}
	return s.applyAll(ctx, actor, req.Decision, req.Note, ordered, missing(unique, ordered)), nil
}

// ApproveAllPending approves every pending redemption, optionally for one class.
func (s *RedemptionService) ApproveAllPending(ctx context.Context, actor *models.JWTClaims, className string) (*models.BulkDecisionResult, error) {
	return s.decideQueue(ctx, actor, models.QueuePending, models.DecisionApprove, className)
}

// RejectAllInsufficient rejects every pending redemption that cannot currently be approved.
func (s *RedemptionService) RejectAllInsufficient(ctx context.Context, actor *models.JWTClaims, className string) (*models.BulkDecisionResult, error) {
	return s.decideQueue(ctx, actor, models.QueueInsufficient, models.DecisionReject, className)
}

func (s *RedemptionService) decideQueue(ctx context.Context, actor *models.JWTClaims, queue models.RedemptionQueue, decision models.Decision, className string) (*models.BulkDecisionResult, error) {
	if err := s.access.Require(actor, CapDecideRedemption); err != nil {
		return nil, err
	}
	ids, err := s.redemptions.QueueIDs(ctx, queue, className)
	if err != nil {
		return nil, storageError(err, "failed to load redemption queue")
	}
	return s.applyAll(ctx, actor, decision, "", ids, nil), nil
}

func (s *RedemptionService) applyAll(ctx context.Context, actor *models.JWTClaims, decision models.Decision, note string, ordered, unknown []string) *models.BulkDecisionResult {
	result := &models.BulkDecisionResult{Decision: decision, Items: make([]models.BulkDecisionItem, 0, len(ordered)+len(unknown))}
	for _, id := range ordered {
		redemption, err := s.decide(ctx, actor, id, decision, note)
		item := models.BulkDecisionItem{ID: id}
		outcome := "ok"
		var spent int64
		if err != nil {
			appErr := appErrors.FromError(err)
			item.Outcome = models.OutcomeFailed
			item.Code = appErr.Code
			item.Message = appErr.Message
			outcome = appErr.Code
			result.Failed++
		} else {
			item.Outcome = models.OutcomeApplied
			item.Status = redemption.Status
			if redemption.Cost != nil {
				spent = *redemption.Cost
			}
			result.Applied++
		}
		s.metrics.RedemptionDecided(decision, outcome, spent)
		result.Items = append(result.Items, item)
	}
	for _, id := range unknown {
		result.Failed++
		result.Items = append(result.Items, models.BulkDecisionItem{
			ID:      id,
			Outcome: models.OutcomeFailed,
			Code:    appErrors.ErrNotFound.Code,
			Message: "redemption not found",
		})
	}
	s.logger.Info("bulk redemption decision",
		zap.String("decision", string(decision)),
		zap.Int("applied", result.Applied),
		zap.Int("failed", result.Failed),
	)
	return result
}

// ListRedemptions returns a queue. Students only see their own requests.
func (s *RedemptionService) ListRedemptions(ctx context.Context, actor *models.JWTClaims, filter models.RedemptionFilter) ([]models.RedemptionDetail, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	if filter.Queue != "" && !filter.Queue.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter "+string(filter.Queue))
	}
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.StudentID
	case models.RoleTeacher, models.RoleAdmin:
		if err := s.access.Require(actor, CapViewQueue); err != nil && filter.StudentID == "" {
			return nil, nil, err
		}
		if filter.StudentID != "" {
			if err := s.access.CanViewStudent(actor, filter.StudentID); err != nil {
				return nil, nil, err
			}
		}
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	items, total, err := s.redemptions.List(ctx, filter)
	if err != nil {
		return nil, nil, storageError(err, "failed to list redemptions")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetRedemption returns one redemption with its context.
func (s *RedemptionService) GetRedemption(ctx context.Context, actor *models.JWTClaims, id string) (*models.RedemptionDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	detail, err := s.redemptions.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "redemption not found", "failed to load redemption")
	}
	if err := s.access.CanViewStudent(actor, detail.StudentID); err != nil {
		return nil, err
	}
	return detail, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missing(requested, found []string) []string {
	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var out []string
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
