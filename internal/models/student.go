package models

import "time"

// Student is a points holder. Balance is a stored cache of the derived balance.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	ClassName string    `db:"class_name" json:"class_name"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures list parameters. Results are ordered by balance, highest first.
type StudentFilter struct {
	ClassName  string
	ClassNames []string
	Search     string
	Page       int
	PageSize   int
}

// CreateStudentRequest is used by admins to enroll a student without a login.
type CreateStudentRequest struct {
	FullName  string `json:"full_name" validate:"required,max=120"`
	ClassName string `json:"class_name" validate:"required,max=32"`
}
