package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required,max=64"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token and identity.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// SignupRequest registers a student (with class) or a teacher.
type SignupRequest struct {
	Username  string   `json:"username" validate:"required,min=3,max=64,excludesall= "`
	Password  string   `json:"password" validate:"required,min=8,max=72"`
	FullName  string   `json:"full_name" validate:"required,max=120"`
	Role      UserRole `json:"role" validate:"required,oneof=student teacher"`
	ClassName string   `json:"class_name" validate:"required_if=Role student,max=32"`
}

// ChangePasswordRequest payload for updating one's own password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// TemporaryPassword is returned exactly once after an admin reset.
type TemporaryPassword struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"temporary_password"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Role      UserRole `json:"role"`
	StudentID *string  `json:"student_id,omitempty"`
	TeacherID *string  `json:"teacher_id,omitempty"`
}

// JWTClaims represents the access token payload and the request-scoped actor.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username"`
	Role      UserRole `json:"role"`
	StudentID string   `json:"student_id,omitempty"`
	TeacherID string   `json:"teacher_id,omitempty"`
	jwt.RegisteredClaims
}

// IsStudent reports whether the actor acts as the given student.
func (c *JWTClaims) IsStudent(studentID string) bool {
	return c != nil && c.Role == RoleStudent && c.StudentID != "" && c.StudentID == studentID
}

// Info converts a user to its public identity.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Username: u.Username, Role: u.Role, StudentID: u.StudentID, TeacherID: u.TeacherID}
}
