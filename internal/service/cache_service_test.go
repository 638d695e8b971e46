package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/cache"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

type memCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{entries: map[string][]byte{}}
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *memCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newMemCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)
	svc.Set(context.Background(), "k", 1)
	var out int
	assert.False(t, svc.Get(context.Background(), "k", &out))
	assert.False(t, repo.has("k"))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Get(context.Background(), "k", &out))
	assert.NotPanics(t, func() { nilSvc.InvalidateStudents(context.Background(), "s-1") })
}

func TestCacheServiceSwallowsBackendErrors(t *testing.T) {
	repo := newMemCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	var out models.BalanceSnapshot
	assert.False(t, svc.Get(context.Background(), cache.BalanceKey("s-1"), &out))
}

func TestBalanceSnapshotCachedUntilMutation(t *testing.T) {
	f := newLedgerFixture()
	repo := newMemCacheRepo()
	cacheSvc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	l := f.ledger
	f.balances = NewBalanceService(l, memStudents{l}, memBalances{l}, cacheSvc, nil, l, nil)
	f.activities = NewActivityService(l, memStudents{l}, memActivities{l}, f.access, cacheSvc, nil, l, nil, nil)
	f.students = NewStudentService(memStudents{l}, memActivities{l}, memRedemptions{l}, f.balances, f.access, cacheSvc, nil, nil)
	ctx := context.Background()
	studentID := l.addStudent("Ayu", "10A")

	snapshot, err := f.balances.Snapshot(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snapshot.Derived)
	assert.True(t, repo.has(cache.BalanceKey(studentID)))

	board, err := f.students.List(ctx, f.admin, models.StudentFilter{ClassName: "10A"})
	require.NoError(t, err)
	assert.False(t, board.Cached)
	assert.True(t, repo.has(cache.LeaderboardKey("10A")+":20"))

	board, err = f.students.List(ctx, f.admin, models.StudentFilter{ClassName: "10A"})
	require.NoError(t, err)
	assert.True(t, board.Cached)
	require.Len(t, board.Students, 1)

	f.credit(t, studentID, 7)
	assert.False(t, repo.has(cache.BalanceKey(studentID)))
	assert.False(t, repo.has(cache.LeaderboardKey("10A")+":20"))

	snapshot, err = f.balances.Snapshot(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), snapshot.Derived)
}
