package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupoint-api/internal/models"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

func TestRewardServiceLifecycle(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	reward, err := f.rewards.Create(ctx, f.admin, models.CreateRewardRequest{Name: "  Notebook ", Cost: 25, Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, "Notebook", reward.Name)
	assert.Equal(t, models.RewardSourceCoop, reward.Source)

	stock := int64(0)
	cost := int64(40)
	updated, err := f.rewards.Update(ctx, f.admin, reward.ID, models.UpdateRewardRequest{Stock: &stock, Cost: &cost})
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.Stock)
	assert.Equal(t, int64(40), updated.Cost)
	assert.Equal(t, "Notebook", updated.Name)

	inStock, err := f.rewards.List(ctx, models.RewardFilter{InStockOnly: true})
	require.NoError(t, err)
	assert.Empty(t, inStock)

	require.NoError(t, f.rewards.Delete(ctx, f.admin, reward.ID))
	_, err = f.rewards.Get(ctx, reward.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))

	assert.Equal(t, []string{
		models.AuditActionRewardCreate,
		models.AuditActionRewardUpdate,
		models.AuditActionRewardDelete,
	}, f.ledger.auditActions())
}

func TestRewardServiceGuards(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	studentID := f.ledger.addStudent("Ayu", "10A")
	rewardID := f.ledger.addReward("Pen", 5, 2)
	f.request(t, studentID, rewardID)

	_, err := f.rewards.Create(ctx, teacherActor("t-1"), models.CreateRewardRequest{Name: "Pen", Cost: 5})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))

	_, err = f.rewards.Create(ctx, f.admin, models.CreateRewardRequest{Name: "Free", Cost: 0})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	_, err = f.rewards.Create(ctx, f.admin, models.CreateRewardRequest{Name: "Car", Cost: 1 << 31})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	_, err = f.rewards.Create(ctx, f.admin, models.CreateRewardRequest{Name: "Sticker", Cost: 1, Stock: 1 << 31})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	huge := int64(1 << 31)
	_, err = f.rewards.Update(ctx, f.admin, rewardID, models.UpdateRewardRequest{Stock: &huge})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	err = f.rewards.Delete(ctx, f.admin, rewardID)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.CodeOf(err))

	err = f.rewards.Delete(ctx, f.admin, uuid.NewString())
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))

	_, err = f.rewards.List(ctx, models.RewardFilter{Source: "market"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))
}

func TestRewardUpdateKeepsApprovedCost(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	studentID := f.ledger.addStudent("Ayu", "10A")
	rewardID := f.ledger.addReward("Pen", 5, 2)
	f.credit(t, studentID, 20)
	approved, err := f.approve(f.request(t, studentID, rewardID).ID)
	require.NoError(t, err)

	cost := int64(50)
	_, err = f.rewards.Update(ctx, f.admin, rewardID, models.UpdateRewardRequest{Cost: &cost})
	require.NoError(t, err)

	derived, err := f.balances.DeriveBalance(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), derived)
	assert.Equal(t, int64(5), *f.ledger.redemption(approved.ID).Cost)
}

func TestTeacherServiceAssignments(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	teacherID := f.ledger.addTeacher("Bu Sari")

	classes, err := f.teachers.Assign(ctx, f.admin, teacherID, models.AssignClassRequest{ClassName: " 10A "})
	require.NoError(t, err)
	assert.Equal(t, []string{"10A"}, classes)

	classes, err = f.teachers.Assign(ctx, f.admin, teacherID, models.AssignClassRequest{ClassName: "10B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10A", "10B"}, classes)

	own, err := f.teachers.Classes(ctx, teacherActor(teacherID), teacherID)
	require.NoError(t, err)
	assert.Equal(t, classes, own)

	_, err = f.teachers.Classes(ctx, teacherActor(uuid.NewString()), teacherID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))

	require.NoError(t, f.teachers.Unassign(ctx, f.admin, teacherID, "10A"))
	err = f.teachers.Unassign(ctx, f.admin, teacherID, "10A")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))

	_, err = f.teachers.Assign(ctx, f.admin, uuid.NewString(), models.AssignClassRequest{ClassName: "10A"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))

	_, err = f.teachers.Assign(ctx, teacherActor(teacherID), teacherID, models.AssignClassRequest{ClassName: "12C"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))

	teachers, err := f.teachers.List(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
}
