package model

import "time"

// Class represents an offered course section. The roster is stored on the
// class record itself; every RosterEntry must be mirrored by a ClassRef in
// that student's EnrolledClasses. InstructorID is the authoritative owner
// reference; InstructorName is the derived display name.
type Class struct {
	ID             int           `json:"id"`
	CourseNumber   string        `json:"course_number"`
	Semester       string        `json:"semester"`
	CourseName     string        `json:"course_name"`
	Department     string        `json:"department"`
	InstructorID   int           `json:"instructor_id"`
	InstructorName string        `json:"instructor_name"`
	Description    string        `json:"description"`
	Schedule       string        `json:"schedule"`
	Capacity       int           `json:"capacity"`
	StartDate      string        `json:"start_date"`
	Roster         []RosterEntry `json:"roster"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SeatsLeft returns the number of open seats.
func (c *Class) SeatsLeft() int {
	return c.Capacity - len(c.Roster)
}

// HasStudent reports whether the student appears on the roster.
func (c *Class) HasStudent(studentID int) bool {
	for _, e := range c.Roster {
		if e.StudentID == studentID {
			return true
		}
	}
	return false
}

// Ref builds the denormalized snapshot stored on an enrolling user.
func (c *Class) Ref(now time.Time) ClassRef {
	return ClassRef{
		CourseNumber: c.CourseNumber,
		Semester:     c.Semester,
		CourseName:   c.CourseName,
		Department:   c.Department,
		Instructor:   c.InstructorName,
		Schedule:     c.Schedule,
		EnrolledAt:   now,
	}
}

// RosterEntry is a user reference stored on a class record.
type RosterEntry struct {
	StudentID  int       `json:"student_id"`
	Name       string    `json:"name"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// CreateClassRequest is the payload for creating a class. All fields arrive
// as strings so validation can echo the original input back on failure.
type CreateClassRequest struct {
	CourseNumber string `json:"course_number"`
	Semester     string `json:"semester"`
	CourseName   string `json:"course_name"`
	Department   string `json:"department"`
	Description  string `json:"description"`
	Schedule     string `json:"schedule"`
	Capacity     string `json:"capacity"`
	StartDate    string `json:"start_date"`
}

// EnrollRequest is the payload for a student adding a class.
type EnrollRequest struct {
	CourseNumber string `json:"course_number" binding:"required"`
}

// DropRequest is the payload for a student dropping a class.
type DropRequest struct {
	DropField string `json:"drop_field" binding:"required"`
}

// DeleteClassRequest is the payload for an instructor deleting a class.
type DeleteClassRequest struct {
	DeleteField string `json:"delete_field" binding:"required"`
}

// SearchRequest is the payload for the course dictionary search.
type SearchRequest struct {
	Search string `json:"search"`
}
