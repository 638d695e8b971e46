package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupoint-api/internal/models"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

func TestStudentServiceLeaderboard(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	low := f.ledger.addStudent("Ayu", "10A")
	high := f.ledger.addStudent("Budi", "10A")
	other := f.ledger.addStudent("Citra", "11B")
	f.credit(t, low, 10)
	f.credit(t, high, 60)
	f.credit(t, other, 90)

	board, err := f.students.List(ctx, teacherActor("t-1"), models.StudentFilter{ClassName: "10A"})
	require.NoError(t, err)
	require.Len(t, board.Students, 2)
	assert.Equal(t, high, board.Students[0].ID)
	assert.Equal(t, low, board.Students[1].ID)
	assert.Equal(t, 2, board.Pagination.TotalCount)
	assert.Equal(t, 20, board.Pagination.PageSize)

	_, err = f.students.List(ctx, studentActor(low), models.StudentFilter{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))
}

func TestStudentServiceGetAndBalance(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	self := f.ledger.addStudent("Ayu", "10A")
	peer := f.ledger.addStudent("Budi", "10A")
	f.credit(t, self, 30)

	student, err := f.students.Get(ctx, studentActor(self), self)
	require.NoError(t, err)
	assert.Equal(t, int64(30), student.Balance)

	_, err = f.students.Get(ctx, studentActor(self), peer)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))

	_, err = f.students.Get(ctx, f.admin, uuid.NewString())
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))

	snapshot, err := f.students.Balance(ctx, studentActor(self), self)
	require.NoError(t, err)
	assert.Equal(t, int64(30), snapshot.Derived)
	assert.Equal(t, int64(0), snapshot.Drift)
}

func TestStudentServiceCreate(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	student, err := f.students.Create(ctx, f.admin, models.CreateStudentRequest{FullName: " Ayu ", ClassName: "10A"})
	require.NoError(t, err)
	assert.Equal(t, "Ayu", student.FullName)
	assert.Equal(t, int64(0), student.Balance)

	_, err = f.students.Create(ctx, teacherActor("t-1"), models.CreateStudentRequest{FullName: "Budi", ClassName: "10A"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))

	classes, err := f.students.Classes(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"10A"}, classes)
}

func TestStudentStatementRunningBalance(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	studentID := f.ledger.addStudent("Ayu", "10A")
	rewardID := f.ledger.addReward("Pen", 15, 5)
	f.credit(t, studentID, 40)
	_, err := f.approve(f.request(t, studentID, rewardID).ID)
	require.NoError(t, err)
	rejected := f.request(t, studentID, rewardID)
	_, err = f.redemptions.DecideRedemption(ctx, f.admin, rejected.ID, models.DecideRedemptionRequest{Decision: models.DecisionReject})
	require.NoError(t, err)

	_, entries, err := f.students.Entries(ctx, studentActor(studentID), studentID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "activity", entries[0].Kind)
	assert.Equal(t, int64(40), entries[0].Running)
	assert.Equal(t, "redemption", entries[1].Kind)
	assert.Equal(t, int64(-15), entries[1].Points)
	assert.Equal(t, int64(25), entries[1].Running)
	assert.Equal(t, f.ledger.student(studentID).Balance, entries[1].Running)

	_, _, err = f.students.Entries(ctx, teacherActor("t-1"), studentID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))
}

func TestStudentStatementFormats(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	studentID := f.ledger.addStudent("Ayu", "10A")
	f.credit(t, studentID, 12)
	f.students.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	csvStatement, err := f.students.Statement(ctx, f.admin, studentID, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "statement-"+studentID+".csv", csvStatement.Filename)
	assert.Contains(t, csvStatement.ContentType, "text/csv")
	body := string(csvStatement.Body)
	assert.Contains(t, body, "Balance: 12")
	assert.Contains(t, body, "Academics: seed")
	assert.True(t, strings.Contains(body, "+12"))

	pdfStatement, err := f.students.Statement(ctx, f.admin, studentID, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfStatement.ContentType)
	assert.True(t, strings.HasPrefix(string(pdfStatement.Body), "%PDF"))

	_, err = f.students.Statement(ctx, f.admin, studentID, "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))
}
