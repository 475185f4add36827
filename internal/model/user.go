package model

import "time"

// Role represents a user's access level.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

// User represents a registered account. Students keep the classes they are
// enrolled in inside EnrolledClasses; instructors keep the classes they own
// in the same list.
type User struct {
	ID              int        `json:"id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email"`
	Role            Role       `json:"role"`
	PasswordHash    string     `json:"-"`
	EnrolledClasses []ClassRef `json:"enrolled_classes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DisplayName returns the user's full name as shown on class records.
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// ClassRef is a denormalized snapshot of class summary fields stored inside
// a user's enrolled-class list, keyed by CourseNumber. Field values reflect
// the class at the time of enrollment.
type ClassRef struct {
	CourseNumber string    `json:"course_number"`
	Semester     string    `json:"semester"`
	CourseName   string    `json:"course_name"`
	Department   string    `json:"department"`
	Instructor   string    `json:"instructor"`
	Schedule     string    `json:"schedule"`
	EnrolledAt   time.Time `json:"enrolled_at"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ChangePasswordRequest is the payload for a credential update. Field-level
// policy checks happen in the service so every violation is reported at once.
type ChangePasswordRequest struct {
	Old             string `json:"old"`
	New             string `json:"new"`
	ConfirmPassword string `json:"confirm_password"`
}
