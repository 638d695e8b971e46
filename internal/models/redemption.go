package models

import "time"

// RedemptionStatus is the stored state of a redemption.
type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionRejected RedemptionStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s RedemptionStatus) Terminal() bool {
	return s == RedemptionApproved || s == RedemptionRejected
}

// RedemptionQueue selects a listing. Insufficient is derived at read time:
// pending rows whose student cannot currently afford the reward or whose
// reward has no stock.
type RedemptionQueue string

const (
	QueuePending      RedemptionQueue = "pending"
	QueueApproved     RedemptionQueue = "approved"
	QueueRejected     RedemptionQueue = "rejected"
	QueueInsufficient RedemptionQueue = "insufficient"
)

// Valid reports whether the queue name is known.
func (q RedemptionQueue) Valid() bool {
	switch q {
	case QueuePending, QueueApproved, QueueRejected, QueueInsufficient:
		return true
	default:
		return false
	}
}

// Decision is the admin verdict on a pending redemption.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Redemption is a request to exchange points for a reward.
type Redemption struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	RewardID  string           `db:"reward_id" json:"reward_id"`
	Status    RedemptionStatus `db:"status" json:"status"`
	Cost      *int64           `db:"cost" json:"cost,omitempty"`
	DecidedBy *string          `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
	Note      *string          `db:"note" json:"note,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// RedemptionDetail joins student and reward columns for queue views.
type RedemptionDetail struct {
	Redemption
	StudentName    string `db:"student_name" json:"student_name"`
	ClassName      string `db:"class_name" json:"class_name"`
	StudentBalance int64  `db:"student_balance" json:"student_balance"`
	RewardName     string `db:"reward_name" json:"reward_name"`
	RewardCost     int64  `db:"reward_cost" json:"reward_cost"`
	RewardStock    int64  `db:"reward_stock" json:"reward_stock"`
}

// RedemptionFilter captures list parameters.
type RedemptionFilter struct {
	Queue     RedemptionQueue
	ClassName string
	StudentID string
	Page      int
	PageSize  int
}

// RequestRedemptionRequest asks for a reward on behalf of a student.
type RequestRedemptionRequest struct {
	StudentID string `json:"student_id" validate:"omitempty,uuid"`
	RewardID  string `json:"reward_id" validate:"required,uuid"`
}

// DecideRedemptionRequest carries an admin decision.
type DecideRedemptionRequest struct {
	Decision Decision `json:"decision" validate:"required,oneof=approve reject"`
	Note     string   `json:"note" validate:"max=255"`
}

// BulkDecisionRequest applies one decision to many redemptions.
type BulkDecisionRequest struct {
	IDs      []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
	Decision Decision `json:"decision" validate:"required,oneof=approve reject"`
	Note     string   `json:"note" validate:"max=255"`
}

// ClassScopeRequest optionally narrows a bulk action to one class.
type ClassScopeRequest struct {
	ClassName string `json:"class_name" validate:"max=32"`
}

// BulkDecisionItem is the outcome for one redemption id.
type BulkDecisionItem struct {
	ID      string           `json:"id"`
	Outcome string           `json:"outcome"`
	Status  RedemptionStatus `json:"status,omitempty"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Bulk outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
)

// BulkDecisionResult aggregates a bulk run.
type BulkDecisionResult struct {
	Decision Decision           `json:"decision"`
	Applied  int                `json:"applied"`
	Failed   int                `json:"failed"`
	Items    []BulkDecisionItem `json:"items"`
}
