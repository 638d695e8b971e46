package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/config"
	"github.com/noah-isme/edupoint-api/pkg/jobs"
)

type stubReconciler struct {
	err   error
	calls int
}

func (s *stubReconciler) ReconcileAll(_ context.Context, actor *models.JWTClaims) (*models.ReconcileReport, error) {
	s.calls++
	if actor != nil {
		return nil, errors.New("scheduled runs have no actor")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.ReconcileReport{Checked: 4, Corrected: 1}, nil
}

func TestReconcileHandler(t *testing.T) {
	stub := &stubReconciler{}
	handle := reconcileHandler(stub, zap.NewNop())

	require.NoError(t, handle(context.Background(), jobs.Job{ID: "j1", Kind: JobReconcile}))
	assert.Equal(t, 1, stub.calls)

	stub.err = errors.New("deadlock detected")
	assert.EqualError(t, handle(context.Background(), jobs.Job{ID: "j2", Kind: JobReconcile}), "deadlock detected")
}

func TestStartReconcilerDisabled(t *testing.T) {
	c := &Container{Config: &config.Config{}, Logger: zap.NewNop()}
	stop := c.StartReconciler(context.Background())
	require.NotNil(t, stop)
	stop()
}
