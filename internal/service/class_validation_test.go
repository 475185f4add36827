package service

import (
	"reflect"
	"testing"

	"github.com/courseworks/registrar-backend/internal/model"
)

func validCreateClassRequest() model.CreateClassRequest {
	return model.CreateClassRequest{
		CourseNumber: "4111",
		Semester:     "FALL 2026",
		CourseName:   "Introduction to Databases",
		Department:   "Computer Science",
		Description:  "Relational model, SQL, transactions, and storage.",
		Schedule:     "Mon/Wed 10:10-11:25",
		Capacity:     "120",
		StartDate:    "2026-09-08",
	}
}

func TestValidateCreateClass(t *testing.T) {
	t.Run("ValidRequest", func(t *testing.T) {
		if msgs := ValidateCreateClass(validCreateClassRequest(), "Grace Hopper"); len(msgs) != 0 {
			t.Errorf("unexpected violations: %v", msgs)
		}
	})

	t.Run("AccumulatesAllViolations", func(t *testing.T) {
		req := validCreateClassRequest()
		req.CourseNumber = ""
		req.Capacity = "abc"

		msgs := ValidateCreateClass(req, "Grace Hopper")
		want := []string{MsgMissingFields, MsgInvalidCourseNumber, MsgInvalidCapacity}
		if !reflect.DeepEqual(msgs, want) {
			t.Errorf("msgs = %v, want %v", msgs, want)
		}
	})

	t.Run("SemesterFormat", func(t *testing.T) {
		cases := map[string]bool{
			"FALL 2026":    true,
			"SPRING 2027":  true,
			"WINTER 2026":  true,
			"SUMMER 2026":  true,
			"fall 2026":    false,
			"FALL26":       false,
			"FALL 26":      false,
			"AUTUMN 2026":  false,
			" FALL 2026":   false,
			"FALL 2026 ":   false,
			"FALL  2026":   false,
		}
		for input, ok := range cases {
			req := validCreateClassRequest()
			req.Semester = input
			msgs := ValidateCreateClass(req, "Grace Hopper")
			violated := false
			for _, m := range msgs {
				if m == MsgInvalidSemester {
					violated = true
				}
			}
			if violated == ok {
				t.Errorf("semester %q: violation=%v, want %v", input, violated, !ok)
			}
		}
	})

	t.Run("CourseNumberDigitsOnly", func(t *testing.T) {
		req := validCreateClassRequest()
		req.CourseNumber = "41E1"
		msgs := ValidateCreateClass(req, "Grace Hopper")
		if len(msgs) != 1 || msgs[0] != MsgInvalidCourseNumber {
			t.Errorf("msgs = %v, want only %q", msgs, MsgInvalidCourseNumber)
		}
	})

	t.Run("NamesNeedALetter", func(t *testing.T) {
		req := validCreateClassRequest()
		req.CourseName = "12345"
		req.Department = "----"
		msgs := ValidateCreateClass(req, "4 8 15")
		want := []string{MsgInvalidCourseName, MsgInvalidDepartment, MsgInvalidInstructor}
		if !reflect.DeepEqual(msgs, want) {
			t.Errorf("msgs = %v, want %v", msgs, want)
		}
	})

	t.Run("CapacityMustBePositive", func(t *testing.T) {
		req := validCreateClassRequest()
		req.Capacity = "0"
		msgs := ValidateCreateClass(req, "Grace Hopper")
		if len(msgs) != 1 || msgs[0] != MsgNonPositiveCapacity {
			t.Errorf("msgs = %v, want only %q", msgs, MsgNonPositiveCapacity)
		}

		req.Capacity = "-3"
		msgs = ValidateCreateClass(req, "Grace Hopper")
		if len(msgs) != 1 || msgs[0] != MsgInvalidCapacity {
			t.Errorf("msgs = %v, want only %q", msgs, MsgInvalidCapacity)
		}
	})

	t.Run("RepeatedCallsStayIndependent", func(t *testing.T) {
		bad := validCreateClassRequest()
		bad.Semester = "AUTUMN 2026"
		if msgs := ValidateCreateClass(bad, "Grace Hopper"); len(msgs) == 0 {
			t.Fatal("expected a violation")
		}
		if msgs := ValidateCreateClass(validCreateClassRequest(), "Grace Hopper"); len(msgs) != 0 {
			t.Errorf("valid request rejected after an invalid one: %v", msgs)
		}
	})
}
