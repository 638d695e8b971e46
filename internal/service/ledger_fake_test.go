package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/internal/repository"
)

type ledgerState struct {
	students    map[string]models.Student
	teachers    map[string]models.Teacher
	assignments map[string]map[string]bool
	rewards     map[string]models.Reward
	activities  []models.Activity
	redemptions map[string]models.Redemption
}

func (s ledgerState) clone() ledgerState {
	out := ledgerState{
		students:    make(map[string]models.Student, len(s.students)),
		teachers:    make(map[string]models.Teacher, len(s.teachers)),
		assignments: make(map[string]map[string]bool, len(s.assignments)),
		rewards:     make(map[string]models.Reward, len(s.rewards)),
		activities:  append([]models.Activity(nil), s.activities...),
		redemptions: make(map[string]models.Redemption, len(s.redemptions)),
	}
	for k, v := range s.students {
		out.students[k] = v
	}
	for k, v := range s.teachers {
		out.teachers[k] = v
	}
	for k, classes := range s.assignments {
		copied := make(map[string]bool, len(classes))
		for c := range classes {
			copied[c] = true
		}
		out.assignments[k] = copied
	}
	for k, v := range s.rewards {
		out.rewards[k] = v
	}
	for k, v := range s.redemptions {
		out.redemptions[k] = v
	}
	return out
}

// memLedger is an in-memory stand-in for the postgres stores. Transactions
// are serialized and roll back to a snapshot on error, which gives the same
// isolation the row locks give in production.
type memLedger struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	st    ledgerState
	clock time.Time

	audits     []*models.AuditLog
	failAdjust error
	failStock  error
}

func newMemLedger() *memLedger {
	return &memLedger{
		st:    ledgerState{}.clone(),
		clock: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (l *memLedger) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()

	l.mu.Lock()
	snapshot := l.st.clone()
	l.mu.Unlock()

	if err := fn(nil); err != nil {
		l.mu.Lock()
		l.st = snapshot
		l.mu.Unlock()
		return err
	}
	return nil
}

func (l *memLedger) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.audits = append(l.audits, log)
	return nil
}

func (l *memLedger) auditActions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.audits))
	for _, a := range l.audits {
		out = append(out, a.Action)
	}
	return out
}

// tick must be called with mu held.
func (l *memLedger) tick() time.Time {
	l.clock = l.clock.Add(time.Second)
	return l.clock
}

func (l *memLedger) addStudent(name, class string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := uuid.NewString()
	l.st.students[id] = models.Student{ID: id, FullName: name, ClassName: class, CreatedAt: l.tick()}
	return id
}

func (l *memLedger) addTeacher(name string, classes ...string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := uuid.NewString()
	l.st.teachers[id] = models.Teacher{ID: id, FullName: name}
	l.st.assignments[id] = map[string]bool{}
	for _, c := range classes {
		l.st.assignments[id][c] = true
	}
	return id
}

func (l *memLedger) addReward(name string, cost, stock int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := uuid.NewString()
	l.st.rewards[id] = models.Reward{ID: id, Name: name, Cost: cost, Stock: stock, Source: models.RewardSourceCoop}
	return id
}

func (l *memLedger) student(id string) models.Student {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.students[id]
}

func (l *memLedger) reward(id string) models.Reward {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.rewards[id]
}

func (l *memLedger) redemption(id string) models.Redemption {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.redemptions[id]
}

func (l *memLedger) activityCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.st.activities)
}

// setStoredBalance corrupts a stored balance to simulate drift.
func (l *memLedger) setStoredBalance(id string, balance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.st.students[id]
	s.Balance = balance
	l.st.students[id] = s
}

type memStudents struct{ l *memLedger }

func (m memStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	classes := map[string]bool{}
	for _, c := range filter.ClassNames {
		classes[c] = true
	}
	var out []models.Student
	for _, s := range m.l.st.students {
		if filter.ClassName != "" && !strings.EqualFold(s.ClassName, filter.ClassName) {
			continue
		}
		if len(classes) > 0 && !classes[s.ClassName] {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(s.FullName), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].FullName < out[j].FullName
	})
	total := len(out)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m memStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return m.LockByID(ctx, nil, id)
}

func (m memStudents) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	s, ok := m.l.st.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m memStudents) Create(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	student.ID = uuid.NewString()
	student.Balance = 0
	student.CreatedAt = m.l.tick()
	m.l.st.students[student.ID] = *student
	return nil
}

func (m memStudents) AdjustBalance(ctx context.Context, tx *sqlx.Tx, id string, delta int64) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if m.l.failAdjust != nil {
		return m.l.failAdjust
	}
	s, ok := m.l.st.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Balance += delta
	m.l.st.students[id] = s
	return nil
}

func (m memStudents) SetBalance(ctx context.Context, tx *sqlx.Tx, id string, balance int64) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	s, ok := m.l.st.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Balance = balance
	m.l.st.students[id] = s
	return nil
}

func (m memStudents) ListClasses(ctx context.Context) ([]string, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, s := range m.l.st.students {
		if !seen[s.ClassName] {
			seen[s.ClassName] = true
			out = append(out, s.ClassName)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memTeachers struct{ l *memLedger }

func (m memTeachers) List(ctx context.Context) ([]models.Teacher, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	out := make([]models.Teacher, 0, len(m.l.st.teachers))
	for _, t := range m.l.st.teachers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m memTeachers) FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Teacher, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	t, ok := m.l.st.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m memTeachers) Create(ctx context.Context, tx *sqlx.Tx, teacher *models.Teacher) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	teacher.ID = uuid.NewString()
	m.l.st.teachers[teacher.ID] = *teacher
	m.l.st.assignments[teacher.ID] = map[string]bool{}
	return nil
}

func (m memTeachers) ListClasses(ctx context.Context, teacherID string) ([]string, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var out []string
	for c := range m.l.st.assignments[teacherID] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (m memTeachers) IsAssigned(ctx context.Context, tx *sqlx.Tx, teacherID, className string) (bool, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	return m.l.st.assignments[teacherID][className], nil
}

func (m memTeachers) AssignClass(ctx context.Context, teacherID, className string) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if m.l.st.assignments[teacherID] == nil {
		m.l.st.assignments[teacherID] = map[string]bool{}
	}
	m.l.st.assignments[teacherID][className] = true
	return nil
}

func (m memTeachers) UnassignClass(ctx context.Context, teacherID, className string) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if !m.l.st.assignments[teacherID][className] {
		return sql.ErrNoRows
	}
	delete(m.l.st.assignments[teacherID], className)
	return nil
}

type memRewards struct{ l *memLedger }

func (m memRewards) List(ctx context.Context, filter models.RewardFilter) ([]models.Reward, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	out := []models.Reward{}
	for _, r := range m.l.st.rewards {
		if filter.Source != "" && r.Source != filter.Source {
			continue
		}
		if filter.InStockOnly && r.Stock <= 0 {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out, nil
}

func (m memRewards) FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Reward, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	r, ok := m.l.st.rewards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m memRewards) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Reward, error) {
	return m.FindByID(ctx, tx, id)
}

func (m memRewards) Create(ctx context.Context, reward *models.Reward) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	reward.ID = uuid.NewString()
	m.l.st.rewards[reward.ID] = *reward
	return nil
}

func (m memRewards) Update(ctx context.Context, reward *models.Reward) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if _, ok := m.l.st.rewards[reward.ID]; !ok {
		return sql.ErrNoRows
	}
	m.l.st.rewards[reward.ID] = *reward
	return nil
}

func (m memRewards) Delete(ctx context.Context, id string) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if _, ok := m.l.st.rewards[id]; !ok {
		return sql.ErrNoRows
	}
	for _, r := range m.l.st.redemptions {
		if r.RewardID == id {
			return fmt.Errorf("delete reward: %w", &pq.Error{Code: "23503"})
		}
	}
	delete(m.l.st.rewards, id)
	return nil
}

func (m memRewards) DecrementStock(ctx context.Context, tx *sqlx.Tx, id string) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if m.l.failStock != nil {
		return m.l.failStock
	}
	r, ok := m.l.st.rewards[id]
	if !ok || r.Stock <= 0 {
		return sql.ErrNoRows
	}
	r.Stock--
	m.l.st.rewards[id] = r
	return nil
}

type memActivities struct{ l *memLedger }

func (m memActivities) Create(ctx context.Context, tx *sqlx.Tx, activity *models.Activity) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	activity.ID = uuid.NewString()
	activity.CreatedAt = m.l.tick()
	m.l.st.activities = append(m.l.st.activities, *activity)
	return nil
}

func (m memActivities) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityDetail, int, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var out []models.ActivityDetail
	for i := len(m.l.st.activities) - 1; i >= 0; i-- {
		a := m.l.st.activities[i]
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && (a.TeacherID == nil || *a.TeacherID != filter.TeacherID) {
			continue
		}
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		out = append(out, models.ActivityDetail{Activity: a})
	}
	total := len(out)
	_, size := models.NormalizePage(filter.Page, filter.PageSize)
	if len(out) > size {
		out = out[:size]
	}
	return out, total, nil
}

func (m memActivities) ListForStudent(ctx context.Context, studentID string) ([]models.ActivityDetail, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var out []models.ActivityDetail
	for _, a := range m.l.st.activities {
		if a.StudentID == studentID {
			out = append(out, models.ActivityDetail{Activity: a})
		}
	}
	return out, nil
}

type memRedemptions struct{ l *memLedger }

func (m memRedemptions) Create(ctx context.Context, tx *sqlx.Tx, redemption *models.Redemption) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	redemption.ID = uuid.NewString()
	redemption.Status = models.RedemptionPending
	redemption.CreatedAt = m.l.tick()
	m.l.st.redemptions[redemption.ID] = *redemption
	return nil
}

// detail must be called with mu held.
func (m memRedemptions) detail(r models.Redemption) models.RedemptionDetail {
	s := m.l.st.students[r.StudentID]
	w := m.l.st.rewards[r.RewardID]
	return models.RedemptionDetail{
		Redemption:     r,
		StudentName:    s.FullName,
		ClassName:      s.ClassName,
		StudentBalance: s.Balance,
		RewardName:     w.Name,
		RewardCost:     w.Cost,
		RewardStock:    w.Stock,
	}
}

func (m memRedemptions) FindByID(ctx context.Context, id string) (*models.RedemptionDetail, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	r, ok := m.l.st.redemptions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := m.detail(r)
	return &d, nil
}

func (m memRedemptions) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Redemption, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	r, ok := m.l.st.redemptions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m memRedemptions) UpdateDecision(ctx context.Context, tx *sqlx.Tx, params repository.RedemptionDecisionParams) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	r, ok := m.l.st.redemptions[params.ID]
	if !ok || r.Status != models.RedemptionPending {
		return sql.ErrNoRows
	}
	by, at := params.DecidedBy, params.DecidedAt
	r.Status = params.Status
	r.Cost = params.Cost
	r.DecidedBy = &by
	r.DecidedAt = &at
	r.Note = params.Note
	m.l.st.redemptions[params.ID] = r
	return nil
}

// matches must be called with mu held.
func (m memRedemptions) matches(r models.Redemption, queue models.RedemptionQueue, className, studentID string) bool {
	s := m.l.st.students[r.StudentID]
	w := m.l.st.rewards[r.RewardID]
	if className != "" && s.ClassName != className {
		return false
	}
	if studentID != "" && r.StudentID != studentID {
		return false
	}
	switch queue {
	case "":
		return true
	case models.QueueInsufficient:
		return r.Status == models.RedemptionPending && (s.Balance < w.Cost || w.Stock <= 0)
	default:
		return string(r.Status) == string(queue)
	}
}

// ordered must be called with mu held.
func (m memRedemptions) ordered() []models.Redemption {
	out := make([]models.Redemption, 0, len(m.l.st.redemptions))
	for _, r := range m.l.st.redemptions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m memRedemptions) List(ctx context.Context, filter models.RedemptionFilter) ([]models.RedemptionDetail, int, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var out []models.RedemptionDetail
	for _, r := range m.ordered() {
		if m.matches(r, filter.Queue, filter.ClassName, filter.StudentID) {
			out = append(out, m.detail(r))
		}
	}
	return out, len(out), nil
}

func (m memRedemptions) Count(ctx context.Context, queue models.RedemptionQueue, className string) (int, error) {
	items, err := m.QueueIDs(ctx, queue, className)
	return len(items), err
}

func (m memRedemptions) QueueIDs(ctx context.Context, queue models.RedemptionQueue, className string) ([]string, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var ids []string
	for _, r := range m.ordered() {
		if m.matches(r, queue, className, "") {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (m memRedemptions) OrderIDs(ctx context.Context, ids []string) ([]string, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []string
	for _, r := range m.ordered() {
		if want[r.ID] {
			out = append(out, r.ID)
		}
	}
	return out, nil
}

func (m memRedemptions) ListForStudent(ctx context.Context, studentID string) ([]models.RedemptionDetail, error) {
	items, _, err := m.List(ctx, models.RedemptionFilter{StudentID: studentID})
	return items, err
}

type memBalances struct{ l *memLedger }

// aggregate must be called with mu held.
func (m memBalances) aggregate(s models.Student) models.BalanceAggregate {
	agg := models.BalanceAggregate{StudentID: s.ID, Stored: models.Points(s.Balance)}
	var earned, spent int64
	for _, a := range m.l.st.activities {
		if a.StudentID == s.ID {
			earned += a.Points
		}
	}
	for _, r := range m.l.st.redemptions {
		if r.StudentID == s.ID && r.Status == models.RedemptionApproved && r.Cost != nil {
			spent += *r.Cost
		}
	}
	agg.Earned = models.Points(earned)
	agg.Spent = models.Points(spent)
	return agg
}

func (m memBalances) Aggregate(ctx context.Context, tx *sqlx.Tx, studentID string) (*models.BalanceAggregate, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	s, ok := m.l.st.students[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	agg := m.aggregate(s)
	return &agg, nil
}

func (m memBalances) AggregateAll(ctx context.Context, tx *sqlx.Tx) ([]models.BalanceAggregate, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	ids := make([]string, 0, len(m.l.st.students))
	for id := range m.l.st.students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.BalanceAggregate, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.aggregate(m.l.st.students[id]))
	}
	return out, nil
}

func (m memBalances) LockAllStudents(ctx context.Context, tx *sqlx.Tx) ([]string, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	ids := make([]string, 0, len(m.l.st.students))
	for id := range m.l.st.students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
