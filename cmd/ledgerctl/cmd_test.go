package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edupoint-api/internal/models"
)

type stubReconciler struct {
	report *models.ReconcileReport
	err    error
	actor  *models.JWTClaims
	calls  int
}

func (s *stubReconciler) ReconcileAll(_ context.Context, actor *models.JWTClaims) (*models.ReconcileReport, error) {
	s.calls++
	s.actor = actor
	return s.report, s.err
}

type stubCreator struct {
	username, password string
}

func (s *stubCreator) CreateAdmin(_ context.Context, username, password string) (*models.UserInfo, error) {
	s.username, s.password = username, password
	return &models.UserInfo{ID: "u-1", Username: username, Role: models.RoleAdmin}, nil
}

func fakePassword(pwd string) func(int) ([]byte, error) {
	return func(int) ([]byte, error) { return []byte(pwd), nil }
}

func TestRunUsage(t *testing.T) {
	var out bytes.Buffer
	cli := commandLine{out: &out}

	assert.ErrorIs(t, cli.run(context.Background(), []string{"ledgerctl"}), errHelp)
	assert.ErrorIs(t, cli.run(context.Background(), []string{"ledgerctl", "nope"}), errHelp)
	assert.Contains(t, out.String(), "create-admin")
}

func TestRunReconcile(t *testing.T) {
	var out bytes.Buffer
	balances := &stubReconciler{report: &models.ReconcileReport{
		Checked:   3,
		Corrected: 2,
		Drifts: []models.BalanceDrift{
			{StudentID: "s1", Stored: 10, Derived: 7, Delta: -3},
			{StudentID: "s2", Stored: 20, Derived: -10, Delta: -30, Negative: true},
		},
	}}
	cli := commandLine{balances: balances, out: &out}

	require.NoError(t, cli.run(context.Background(), []string{"ledgerctl", "reconcile"}))
	assert.Equal(t, 1, balances.calls)
	assert.Nil(t, balances.actor)
	assert.Contains(t, out.String(), "checked 3 students, corrected 2")
	assert.Contains(t, out.String(), "s1 stored=10 derived=7 delta=-3\n")
	assert.Contains(t, out.String(), "s2 stored=20 derived=-10 delta=-30 NEGATIVE")

	balances.err = errors.New("connection reset")
	assert.Error(t, cli.run(context.Background(), []string{"ledgerctl", "reconcile"}))
}

func TestRunCreateAdmin(t *testing.T) {
	original := readPasswordFunc
	defer func() { readPasswordFunc = original }()

	var out bytes.Buffer
	creator := &stubCreator{}
	cli := commandLine{accounts: creator, out: &out}

	assert.ErrorIs(t, cli.run(context.Background(), []string{"ledgerctl", "create-admin"}), errHelp)

	readPasswordFunc = fakePassword("")
	assert.ErrorIs(t, cli.run(context.Background(), []string{"ledgerctl", "create-admin", "-username", "root"}), errHelp)

	readPasswordFunc = fakePassword("s3cret-pass")
	require.NoError(t, cli.run(context.Background(), []string{"ledgerctl", "create-admin", "-username", "root"}))
	assert.Equal(t, "root", creator.username)
	assert.Equal(t, "s3cret-pass", creator.password)
	assert.Contains(t, out.String(), "created admin root (u-1)")
}
