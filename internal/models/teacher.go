package models

import "time"

// Teacher records activities for the classes assigned to them.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherClass is a teacher to class assignment.
type TeacherClass struct {
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	ClassName string    `db:"class_name" json:"class_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AssignClassRequest payload for assigning a class to a teacher.
type AssignClassRequest struct {
	ClassName string `json:"class_name" validate:"required,max=32"`
}
