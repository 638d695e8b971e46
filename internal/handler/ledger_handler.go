package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupoint-api/internal/models"
	"github.com/noah-isme/edupoint-api/pkg/response"
)

type reconciler interface {
	ReconcileStudent(ctx context.Context, actor *models.JWTClaims, studentID string) (*models.ReconcileReport, error)
	ReconcileAll(ctx context.Context, actor *models.JWTClaims) (*models.ReconcileReport, error)
}

// LedgerHandler exposes balance reconciliation.
type LedgerHandler struct {
	balances reconciler
}

// NewLedgerHandler constructs LedgerHandler.
func NewLedgerHandler(balances reconciler) *LedgerHandler {
	return &LedgerHandler{balances: balances}
}

// ReconcileAll godoc
// @Summary Reconcile every stored balance
// @Description Rewrites drifted balances from history and reports each correction. Running it twice reports nothing the second time.
// @Tags Ledger
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ledger/reconcile [post]
func (h *LedgerHandler) ReconcileAll(c *gin.Context) {
	report, err := h.balances.ReconcileAll(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// ReconcileStudent godoc
// @Summary Reconcile one stored balance
// @Tags Ledger
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ledger/reconcile/{studentId} [post]
func (h *LedgerHandler) ReconcileStudent(c *gin.Context) {
	report, err := h.balances.ReconcileStudent(c.Request.Context(), claimsFromContext(c), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
