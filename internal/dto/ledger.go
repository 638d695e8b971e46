package dto

import "github.com/noah-isme/edupoint-api/internal/models"

// StatementResponse is the JSON rendition of a student's ledger.
type StatementResponse struct {
	Student *models.Student         `json:"student"`
	Balance int64                   `json:"balance"`
	Entries []models.StatementEntry `json:"entries"`
}

// NewStatementResponse builds the response, taking the closing balance from the last entry.
func NewStatementResponse(student *models.Student, entries []models.StatementEntry) StatementResponse {
	if entries == nil {
		entries = []models.StatementEntry{}
	}
	var balance int64
	if n := len(entries); n > 0 {
		balance = entries[n-1].Running
	}
	return StatementResponse{Student: student, Balance: balance, Entries: entries}
}

// HealthResponse reports liveness and dependency readiness.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
