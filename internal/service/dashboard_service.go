package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

const dashboardRecentLimit = 10

type dashboardActivityStore interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityDetail, int, error)
}

type dashboardRedemptionStore interface {
	List(ctx context.Context, filter models.RedemptionFilter) ([]models.RedemptionDetail, int, error)
	Count(ctx context.Context, queue models.RedemptionQueue, className string) (int, error)
}

type dashboardTeacherStore interface {
	ListClasses(ctx context.Context, teacherID string) ([]string, error)
}

type dashboardStudentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type dashboardRewardStore interface {
	List(ctx context.Context, filter models.RewardFilter) ([]models.Reward, error)
}

// Dashboard is the role specific landing payload. Only the section for the
// caller's role is set.
type Dashboard struct {
	Role    models.UserRole   `json:"role"`
	Student *StudentDashboard `json:"student,omitempty"`
	Teacher *TeacherDashboard `json:"teacher,omitempty"`
	Admin   *AdminDashboard   `json:"admin,omitempty"`
}

type StudentDashboard struct {
	Balance          models.BalanceSnapshot    `json:"balance"`
	RecentActivities []models.ActivityDetail   `json:"recent_activities"`
	Redemptions      []models.RedemptionDetail `json:"redemptions"`
	AvailableRewards []models.Reward           `json:"available_rewards"`
}

type TeacherDashboard struct {
	Classes     []string                `json:"classes"`
	Leaderboard []models.Student        `json:"leaderboard"`
	Recorded    []models.ActivityDetail `json:"recently_recorded"`
}

type AdminDashboard struct {
	Pending      int              `json:"pending"`
	Insufficient int              `json:"insufficient"`
	Leaderboard  []models.Student `json:"leaderboard"`
	Rewards      []models.Reward  `json:"rewards"`
}

type dashboardBuilder func(ctx context.Context, actor *models.JWTClaims) (*Dashboard, error)

// DashboardService assembles dashboards through a role dispatch table.
type DashboardService struct {
	balances    *BalanceService
	activities  dashboardActivityStore
	redemptions dashboardRedemptionStore
	teachers    dashboardTeacherStore
	students    dashboardStudentStore
	rewards     dashboardRewardStore
	builders    map[models.UserRole]dashboardBuilder
	logger      *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(balances *BalanceService, activities dashboardActivityStore, redemptions dashboardRedemptionStore, teachers dashboardTeacherStore, students dashboardStudentStore, rewards dashboardRewardStore, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DashboardService{
		balances:    balances,
		activities:  activities,
		redemptions: redemptions,
		teachers:    teachers,
		students:    students,
		rewards:     rewards,
		logger:      logger,
	}
	s.builders = map[models.UserRole]dashboardBuilder{
		models.RoleStudent: s.student,
		models.RoleTeacher: s.teacher,
		models.RoleAdmin:   s.admin,
	}
	return s
}

// Build dispatches on the actor's role.
func (s *DashboardService) Build(ctx context.Context, actor *models.JWTClaims) (*Dashboard, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	build, ok := s.builders[actor.Role]
	if !ok {
		return nil, appErrors.ErrForbidden
	}
	return build(ctx, actor)
}

func (s *DashboardService) student(ctx context.Context, actor *models.JWTClaims) (*Dashboard, error) {
	if actor.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "account is not linked to a student")
	}
	snapshot, err := s.balances.Snapshot(ctx, actor.StudentID)
	if err != nil {
		return nil, err
	}
	activities, _, err := s.activities.List(ctx, models.ActivityFilter{StudentID: actor.StudentID, Page: 1, PageSize: dashboardRecentLimit})
	if err != nil {
		return nil, storageError(err, "failed to load activities")
	}
	redemptions, _, err := s.redemptions.List(ctx, models.RedemptionFilter{StudentID: actor.StudentID, Page: 1, PageSize: dashboardRecentLimit})
	if err != nil {
		return nil, storageError(err, "failed to load redemptions")
	}
	rewards, err := s.rewards.List(ctx, models.RewardFilter{InStockOnly: true})
	if err != nil {
		return nil, storageError(err, "failed to load rewards")
	}
	return &Dashboard{Role: actor.Role, Student: &StudentDashboard{
		Balance:          *snapshot,
		RecentActivities: activities,
		Redemptions:      redemptions,
		AvailableRewards: rewards,
	}}, nil
}

func (s *DashboardService) teacher(ctx context.Context, actor *models.JWTClaims) (*Dashboard, error) {
	classes, err := s.teachers.ListClasses(ctx, actor.TeacherID)
	if err != nil {
		return nil, storageError(err, "failed to load classes")
	}
	board := []models.Student{}
	if len(classes) > 0 {
		board, _, err = s.students.List(ctx, models.StudentFilter{ClassNames: classes, Page: 1, PageSize: dashboardRecentLimit})
		if err != nil {
			return nil, storageError(err, "failed to load leaderboard")
		}
	}
	recorded, _, err := s.activities.List(ctx, models.ActivityFilter{TeacherID: actor.TeacherID, Page: 1, PageSize: dashboardRecentLimit})
	if err != nil {
		return nil, storageError(err, "failed to load activities")
	}
	if classes == nil {
		classes = []string{}
	}
	return &Dashboard{Role: actor.Role, Teacher: &TeacherDashboard{Classes: classes, Leaderboard: board, Recorded: recorded}}, nil
}

func (s *DashboardService) admin(ctx context.Context, actor *models.JWTClaims) (*Dashboard, error) {
	pending, err := s.redemptions.Count(ctx, models.QueuePending, "")
	if err != nil {
		return nil, storageError(err, "failed to count pending redemptions")
	}
	insufficient, err := s.redemptions.Count(ctx, models.QueueInsufficient, "")
	if err != nil {
		return nil, storageError(err, "failed to count insufficient redemptions")
	}
	board, _, err := s.students.List(ctx, models.StudentFilter{Page: 1, PageSize: dashboardRecentLimit})
	if err != nil {
		return nil, storageError(err, "failed to load leaderboard")
	}
	rewards, err := s.rewards.List(ctx, models.RewardFilter{})
	if err != nil {
		return nil, storageError(err, "failed to load rewards")
	}
	return &Dashboard{Role: actor.Role, Admin: &AdminDashboard{
		Pending:      pending,
		Insufficient: insufficient,
		Leaderboard:  board,
		Rewards:      rewards,
	}}, nil
}
