package service

import (
	"regexp"
	"strconv"

	"github.com/courseworks/registrar-backend/internal/model"
)

// Validation messages shown back on the create-class form.
const (
	MsgMissingFields       = "Please fill in all the fields!"
	MsgInvalidCourseNumber = "Course Number must only contain digits!"
	MsgInvalidSemester     = "Please enter a term in the following format: FALL/SPRING/WINTER/SUMMER [yyyy]"
	MsgInvalidCourseName   = "Courses must only contain letters!"
	MsgInvalidDepartment   = "Departments must only contain letters!"
	MsgInvalidInstructor   = "Instructor names must only contain letters!"
	MsgInvalidCapacity     = "Class capacity must only contain digits!"
	MsgNonPositiveCapacity = "Class capacity must be greater than zero!"
)

var (
	courseNumberPattern = regexp.MustCompile(`^[0-9]+$`)
	semesterPattern     = regexp.MustCompile(`^(SPRING|SUMMER|WINTER|FALL) \d{4}$`)
	hasLetterPattern    = regexp.MustCompile(`[a-zA-Z]`)
	capacityPattern     = regexp.MustCompile(`^[0-9]+$`)
)

// ValidateCreateClass applies every create-class rule and returns the full
// ordered list of violations. It does not stop at the first failure; the
// caller re-renders the form with all messages and the original input.
func ValidateCreateClass(req model.CreateClassRequest, instructorName string) []string {
	var msgs []string

	if req.CourseNumber == "" || req.Semester == "" || req.CourseName == "" ||
		req.Department == "" || req.Description == "" || req.Schedule == "" ||
		req.Capacity == "" || req.StartDate == "" {
		msgs = append(msgs, MsgMissingFields)
	}

	if !courseNumberPattern.MatchString(req.CourseNumber) {
		msgs = append(msgs, MsgInvalidCourseNumber)
	}

	if !semesterPattern.MatchString(req.Semester) {
		msgs = append(msgs, MsgInvalidSemester)
	}

	if !hasLetterPattern.MatchString(req.CourseName) {
		msgs = append(msgs, MsgInvalidCourseName)
	}

	if !hasLetterPattern.MatchString(req.Department) {
		msgs = append(msgs, MsgInvalidDepartment)
	}

	if !hasLetterPattern.MatchString(instructorName) {
		msgs = append(msgs, MsgInvalidInstructor)
	}

	if !capacityPattern.MatchString(req.Capacity) {
		msgs = append(msgs, MsgInvalidCapacity)
	} else if n, err := strconv.Atoi(req.Capacity); err != nil || n <= 0 {
		msgs = append(msgs, MsgNonPositiveCapacity)
	}

	return msgs
}
