package models

import "time"

// BalanceSnapshot compares the stored balance with the one derived from history.
type BalanceSnapshot struct {
	StudentID string    `json:"student_id"`
	Stored    int64     `json:"stored"`
	Earned    int64     `json:"earned"`
	Spent     int64     `json:"spent"`
	Derived   int64     `json:"derived"`
	Drift     int64     `json:"drift"`
	TakenAt   time.Time `json:"taken_at"`
}

// BalanceAggregate is one row of the derivation query.
type BalanceAggregate struct {
	StudentID string `db:"student_id"`
	Stored    Points `db:"stored"`
	Earned    Points `db:"earned"`
	Spent     Points `db:"spent"`
}

// Derived returns earned minus spent, unclamped.
func (a BalanceAggregate) Derived() int64 {
	return a.Earned.Int64() - a.Spent.Int64()
}

// BalanceDrift reports a corrected stored balance. Negative marks a derived
// balance below zero, which only happens after approvals against a drifted balance.
type BalanceDrift struct {
	Code      string `json:"code"`
	StudentID string `json:"student_id"`
	Stored    int64  `json:"stored"`
	Derived   int64  `json:"derived"`
	Delta     int64  `json:"delta"`
	Negative  bool   `json:"negative,omitempty"`
}

// ReconcileReport summarises a reconciliation run.
type ReconcileReport struct {
	Checked    int            `json:"checked"`
	Corrected  int            `json:"corrected"`
	Drifts     []BalanceDrift `json:"drifts"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// StatementEntry is one line of a student ledger statement.
type StatementEntry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Detail  string    `json:"detail"`
	Points  int64     `json:"points"`
	Running int64     `json:"running"`
}
