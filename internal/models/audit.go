package models

import "time"

// Audit actions recorded for ledger mutations and account events.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionSignup             = "SIGNUP"
	AuditActionPasswordChange     = "PASSWORD_CHANGE"
	AuditActionPasswordReset      = "PASSWORD_RESET"
	AuditActionActivityRecord     = "ACTIVITY_RECORD"
	AuditActionRedemptionRequest  = "REDEMPTION_REQUEST"
	AuditActionRedemptionApprove  = "REDEMPTION_APPROVE"
	AuditActionRedemptionReject   = "REDEMPTION_REJECT"
	AuditActionBalanceReconcile   = "BALANCE_RECONCILE"
	AuditActionRewardCreate       = "REWARD_CREATE"
	AuditActionRewardUpdate       = "REWARD_UPDATE"
	AuditActionRewardDelete       = "REWARD_DELETE"
	AuditActionTeacherClassChange = "TEACHER_CLASS_CHANGE"
	AuditActionStatementExport    = "STATEMENT_EXPORT"
	AuditActionQRGenerate         = "QR_GENERATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
