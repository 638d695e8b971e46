package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/cache"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
	"github.com/noah-isme/edupoint-api/pkg/export"
)

type studentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
	ListClasses(ctx context.Context) ([]string, error)
}

type statementActivityStore interface {
	ListForStudent(ctx context.Context, studentID string) ([]models.ActivityDetail, error)
}

type statementRedemptionStore interface {
	ListForStudent(ctx context.Context, studentID string) ([]models.RedemptionDetail, error)
}

// Leaderboard is a cached page of students ordered by balance.
type Leaderboard struct {
	Students   []models.Student  `json:"students"`
	Pagination models.Pagination `json:"pagination"`
	Cached     bool              `json:"-"`
}

// Statement is a rendered ledger statement file.
type Statement struct {
	Filename    string
	ContentType string
	Body        []byte
}

// StudentService lists students and renders their ledger statements.
type StudentService struct {
	students    studentStore
	activities  statementActivityStore
	redemptions statementRedemptionStore
	balances    *BalanceService
	access      *AccessService
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewStudentService constructs a StudentService.
func NewStudentService(students studentStore, activities statementActivityStore, redemptions statementRedemptionStore, balances *BalanceService, access *AccessService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{
		students:    students,
		activities:  activities,
		redemptions: redemptions,
		balances:    balances,
		access:      access,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns students in leaderboard order. Unfiltered first pages are cached.
func (s *StudentService) List(ctx context.Context, actor *models.JWTClaims, filter models.StudentFilter) (*Leaderboard, error) {
	if err := s.access.Require(actor, CapViewStudents); err != nil {
		return nil, err
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	cacheable := filter.Search == "" && filter.Page == 1 && len(filter.ClassNames) == 0
	key := cache.LeaderboardKey(filter.ClassName) + fmt.Sprintf(":%d", filter.PageSize)

	if cacheable {
		var cached Leaderboard
		if s.cache.Get(ctx, key, &cached) {
			cached.Cached = true
			return &cached, nil
		}
	}

	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, storageError(err, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	board := &Leaderboard{
		Students:   students,
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}
	if cacheable {
		s.cache.Set(ctx, key, board)
	}
	return board, nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Student, error) {
	if err := s.access.CanViewStudent(actor, id); err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "student not found", "failed to load student")
	}
	return student, nil
}

// Balance returns the stored and derived balance of a student.
func (s *StudentService) Balance(ctx context.Context, actor *models.JWTClaims, id string) (*models.BalanceSnapshot, error) {
	if err := s.access.CanViewStudent(actor, id); err != nil {
		return nil, err
	}
	return s.balances.Snapshot(ctx, id)
}

// Create enrolls a student without a login.
func (s *StudentService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateStudentRequest) (*models.Student, error) {
	if err := s.access.Require(actor, CapManageStudents); err != nil {
		return nil, err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.ClassName = strings.TrimSpace(req.ClassName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student := &models.Student{FullName: req.FullName, ClassName: req.ClassName}
	if err := s.students.Create(ctx, nil, student); err != nil {
		return nil, storageError(err, "failed to create student")
	}
	s.cache.InvalidateLeaderboards(ctx)
	return student, nil
}

// Classes lists the class names in use.
func (s *StudentService) Classes(ctx context.Context, actor *models.JWTClaims) ([]string, error) {
	if err := s.access.Require(actor, CapViewStudents); err != nil {
		return nil, err
	}
	classes, err := s.students.ListClasses(ctx)
	if err != nil {
		return nil, storageError(err, "failed to list classes")
	}
	return classes, nil
}

// Entries merges activities and approved redemptions into a chronological
// ledger with a running balance.
func (s *StudentService) Entries(ctx context.Context, actor *models.JWTClaims, studentID string) (*models.Student, []models.StatementEntry, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	if actor.Role == models.RoleTeacher {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "statements are available to the student and admins")
	}
	student, err := s.Get(ctx, actor, studentID)
	if err != nil {
		return nil, nil, err
	}
	activities, err := s.activities.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, nil, storageError(err, "failed to load activities")
	}
	redemptions, err := s.redemptions.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, nil, storageError(err, "failed to load redemptions")
	}
	return student, buildStatement(activities, redemptions), nil
}

// Statement renders the ledger as CSV or PDF.
func (s *StudentService) Statement(ctx context.Context, actor *models.JWTClaims, studentID, format string) (*Statement, error) {
	exporter, ok := export.ForFormat(strings.ToLower(format))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	student, entries, err := s.Entries(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}

	doc := export.Document{
		Title: "Points statement",
		Summary: []string{
			fmt.Sprintf("Student: %s (%s)", student.FullName, student.ClassName),
			fmt.Sprintf("Balance: %d", student.Balance),
			"Generated: " + s.now().UTC().Format(time.RFC3339),
		},
		Headers: []string{"Date", "Type", "Detail", "Points", "Balance"},
		Widths:  []float64{2, 1.2, 4, 1, 1},
	}
	for _, e := range entries {
		doc.Rows = append(doc.Rows, []string{
			e.At.Format("2006-01-02 15:04"),
			e.Kind,
			e.Detail,
			fmt.Sprintf("%+d", e.Points),
			fmt.Sprintf("%d", e.Running),
		})
	}
	body, err := exporter.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	return &Statement{
		Filename:    fmt.Sprintf("statement-%s.%s", student.ID, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        body,
	}, nil
}

func buildStatement(activities []models.ActivityDetail, redemptions []models.RedemptionDetail) []models.StatementEntry {
	entries := make([]models.StatementEntry, 0, len(activities)+len(redemptions))
	for _, a := range activities {
		entries = append(entries, models.StatementEntry{
			At:     a.CreatedAt,
			Kind:   "activity",
			Detail: fmt.Sprintf("%s: %s", a.Category, a.Reason),
			Points: a.Points,
		})
	}
	for _, r := range redemptions {
		if r.Status != models.RedemptionApproved || r.Cost == nil {
			continue
		}
		at := r.CreatedAt
		if r.DecidedAt != nil {
			at = *r.DecidedAt
		}
		entries = append(entries, models.StatementEntry{
			At:     at,
			Kind:   "redemption",
			Detail: r.RewardName,
			Points: -*r.Cost,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })
	var running int64
	for i := range entries {
		running += entries[i].Points
		entries[i].Running = running
	}
	return entries
}
