package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupoint-api/internal/models"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

func newTestDashboard(f *ledgerFixture) *DashboardService {
	l := f.ledger
	return NewDashboardService(f.balances, memActivities{l}, memRedemptions{l}, memTeachers{l}, memStudents{l}, memRewards{l}, nil)
}

func TestDashboardDispatchesByRole(t *testing.T) {
	f := newLedgerFixture()
	svc := newTestDashboard(f)
	ctx := context.Background()
	studentID := f.ledger.addStudent("Ayu", "10A")
	f.ledger.addStudent("Citra", "11B")
	teacherID := f.ledger.addTeacher("Bu Sari", "10A")
	rewardID := f.ledger.addReward("Backpack", 30, 2)
	f.ledger.addReward("Sold out", 5, 0)
	f.credit(t, studentID, 10)
	f.request(t, studentID, rewardID)

	student, err := svc.Build(ctx, studentActor(studentID))
	require.NoError(t, err)
	require.NotNil(t, student.Student)
	assert.Nil(t, student.Teacher)
	assert.Nil(t, student.Admin)
	assert.Equal(t, int64(10), student.Student.Balance.Derived)
	assert.Len(t, student.Student.RecentActivities, 1)
	assert.Len(t, student.Student.Redemptions, 1)
	assert.Len(t, student.Student.AvailableRewards, 1)

	teacher, err := svc.Build(ctx, teacherActor(teacherID))
	require.NoError(t, err)
	require.NotNil(t, teacher.Teacher)
	assert.Equal(t, []string{"10A"}, teacher.Teacher.Classes)
	require.Len(t, teacher.Teacher.Leaderboard, 1)
	assert.Equal(t, studentID, teacher.Teacher.Leaderboard[0].ID)

	admin, err := svc.Build(ctx, f.admin)
	require.NoError(t, err)
	require.NotNil(t, admin.Admin)
	assert.Equal(t, 1, admin.Admin.Pending)
	assert.Equal(t, 1, admin.Admin.Insufficient)
	assert.Len(t, admin.Admin.Leaderboard, 2)
	assert.Len(t, admin.Admin.Rewards, 2)
}

func TestDashboardRejectsUnknownActors(t *testing.T) {
	svc := newTestDashboard(newLedgerFixture())

	_, err := svc.Build(context.Background(), nil)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.CodeOf(err))

	_, err = svc.Build(context.Background(), &models.JWTClaims{Role: models.RoleStudent})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))
}

func TestDashboardTeacherWithoutClasses(t *testing.T) {
	f := newLedgerFixture()
	svc := newTestDashboard(f)
	teacherID := f.ledger.addTeacher("Pak Dedi")

	dash, err := svc.Build(context.Background(), teacherActor(teacherID))
	require.NoError(t, err)
	assert.Empty(t, dash.Teacher.Classes)
	assert.NotNil(t, dash.Teacher.Classes)
	assert.Empty(t, dash.Teacher.Leaderboard)
}
