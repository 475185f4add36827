package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseworks/registrar-backend/internal/model"
	"github.com/courseworks/registrar-backend/internal/repository"
)

// Enrollment errors surfaced to handlers.
var (
	ErrClassNotFound   = errors.New("class is not registered")
	ErrClassFull       = errors.New("class has reached its capacity")
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this class")
	ErrNotEnrolled     = errors.New("student is not enrolled in this class")
	ErrNotClassOwner   = errors.New("class is not owned by this instructor")
)

// PartialFailureError reports that a two-sided mutation was split: the first
// write succeeded, the second failed, and the compensating write failed too.
// The dangling side has been queued for the reconciliation worker; operators
// can also repair it manually.
type PartialFailureError struct {
	Op           string
	CourseNumber string
	StudentID    int
	Cause        error
	Compensation error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s %s for student %d partially applied: %v (compensation: %v)",
		e.Op, e.CourseNumber, e.StudentID, e.Cause, e.Compensation)
}

func (e *PartialFailureError) Unwrap() error { return e.Cause }

// CourseLocks hands out one mutex per course number. A single instance is
// shared by every service that performs a two-sided mutation on a class, so
// creation, enrollment and deletion of the same course serialize. Entries
// are never removed; the map is bounded by the number of distinct courses.
type CourseLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCourseLocks() *CourseLocks {
	return &CourseLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for courseNumber and returns its unlock func.
func (l *CourseLocks) Lock(courseNumber string) func() {
	l.mu.Lock()
	m, ok := l.locks[courseNumber]
	if !ok {
		m = &sync.Mutex{}
		l.locks[courseNumber] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// EnrollmentService performs the two-sided mutations that keep a class
// roster and the referencing users' enrolled-class lists consistent, even
// though the store offers only per-document operations.
//
// Concurrency control: a per-course-number mutex is held for the duration of
// each two-step mutation, so the capacity check and both writes form a
// critical section. Partial storage failure is handled saga-style with a
// compensating write; if compensation itself fails the mutation surfaces a
// PartialFailureError and a repair task is queued.
type EnrollmentService struct {
	users   UserStore
	classes ClassStore
	events  RosterEvents
	locks   *CourseLocks
	log     zerolog.Logger
}

// NewEnrollmentService creates a new EnrollmentService. events may be nil.
// locks must be the same instance handed to the class service.
func NewEnrollmentService(users UserStore, classes ClassStore, events RosterEvents, locks *CourseLocks, log zerolog.Logger) *EnrollmentService {
	return &EnrollmentService{
		users:   users,
		classes: classes,
		events:  events,
		locks:   locks,
		log:     log.With().Str("component", "enrollment_service").Logger(),
	}
}

// Enroll adds the class to the student's enrolled list and the student to
// the class roster. Both sides are applied or neither is observable.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID int, courseNumber string) (*model.Class, error) {
	unlock := s.locks.Lock(courseNumber)
	defer unlock()

	class, err := s.classes.GetByCourseNumber(ctx, courseNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("find class: %w", err)
	}

	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}

	if class.HasStudent(studentID) {
		return nil, ErrAlreadyEnrolled
	}
	if len(class.Roster) >= class.Capacity {
		return nil, ErrClassFull
	}

	now := time.Now().UTC()
	entry := model.RosterEntry{StudentID: studentID, Name: student.DisplayName(), EnrolledAt: now}

	if err := s.users.AppendEnrolledClass(ctx, studentID, class.Ref(now)); err != nil {
		return nil, fmt.Errorf("append enrolled class: %w", err)
	}

	if err := s.classes.AppendRosterStudent(ctx, courseNumber, entry); err != nil {
		if cerr := s.users.RemoveEnrolledClass(ctx, studentID, courseNumber); cerr != nil {
			s.repair(ctx, RepairTask{Side: "user", StudentID: studentID, CourseNumber: courseNumber})
			return nil, &PartialFailureError{
				Op: "enroll", CourseNumber: courseNumber, StudentID: studentID,
				Cause: err, Compensation: cerr,
			}
		}
		return nil, fmt.Errorf("append roster student: %w", err)
	}

	class.Roster = append(class.Roster, entry)
	s.publish(ctx, RosterEvent{
		CourseNumber: courseNumber,
		Action:       "enroll",
		StudentID:    studentID,
		StudentName:  entry.Name,
		SeatsLeft:    class.SeatsLeft(),
		At:           now,
	})

	s.log.Info().Int("student_id", studentID).Str("course_number", courseNumber).Msg("student enrolled")
	return class, nil
}

// Drop removes the student's membership from both sides. The class record
// itself survives; only the membership goes away.
func (s *EnrollmentService) Drop(ctx context.Context, studentID int, courseNumber string) error {
	unlock := s.locks.Lock(courseNumber)
	defer unlock()

	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return fmt.Errorf("find student: %w", err)
	}

	// Keep the snapshot so a failed second write can be compensated by
	// restoring it.
	var ref *model.ClassRef
	for i := range student.EnrolledClasses {
		if student.EnrolledClasses[i].CourseNumber == courseNumber {
			ref = &student.EnrolledClasses[i]
			break
		}
	}
	if ref == nil {
		return ErrNotEnrolled
	}

	if err := s.users.RemoveEnrolledClass(ctx, studentID, courseNumber); err != nil {
		return fmt.Errorf("remove enrolled class: %w", err)
	}

	if err := s.classes.RemoveRosterStudent(ctx, courseNumber, studentID); err != nil {
		// The class may legitimately be gone (instructor deleted it); the
		// student-side removal already produced a consistent state then.
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if cerr := s.users.AppendEnrolledClass(ctx, studentID, *ref); cerr != nil {
			s.repair(ctx, RepairTask{Side: "class", StudentID: studentID, CourseNumber: courseNumber})
			return &PartialFailureError{
				Op: "drop", CourseNumber: courseNumber, StudentID: studentID,
				Cause: err, Compensation: cerr,
			}
		}
		return fmt.Errorf("remove roster student: %w", err)
	}

	if class, gerr := s.classes.GetByCourseNumber(ctx, courseNumber); gerr == nil {
		s.publish(ctx, RosterEvent{
			CourseNumber: courseNumber,
			Action:       "drop",
			StudentID:    studentID,
			StudentName:  student.DisplayName(),
			SeatsLeft:    class.SeatsLeft(),
			At:           time.Now().UTC(),
		})
	}

	s.log.Info().Int("student_id", studentID).Str("course_number", courseNumber).Msg("student dropped")
	return nil
}

// DeleteClass removes a class owned by the instructor and purges the
// now-dangling reference from every enrolled student's list.
func (s *EnrollmentService) DeleteClass(ctx context.Context, instructorID int, courseNumber string) error {
	unlock := s.locks.Lock(courseNumber)
	defer unlock()

	class, err := s.classes.GetByCourseNumber(ctx, courseNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClassNotFound
		}
		return fmt.Errorf("find class: %w", err)
	}

	if class.InstructorID != instructorID {
		return ErrNotClassOwner
	}

	// A user's list can reference the course without a matching roster entry
	// when an earlier enrollment failed halfway, so the purge set is the
	// union of the roster and a containment query over every user document.
	holders, err := s.users.ListByEnrolledCourse(ctx, courseNumber)
	if err != nil {
		return fmt.Errorf("list enrolled users: %w", err)
	}

	if err := s.classes.Delete(ctx, courseNumber); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}

	purge := make(map[int]bool, len(class.Roster)+len(holders)+1)
	purge[instructorID] = true
	for _, entry := range class.Roster {
		purge[entry.StudentID] = true
	}
	for i := range holders {
		purge[holders[i].ID] = true
	}

	// The record is already gone, so a failed purge cannot be rolled back;
	// each failure becomes a repair task and the whole call reports a
	// partial failure.
	var firstErr error
	var failedStudent int
	for userID := range purge {
		if perr := s.users.RemoveEnrolledClass(ctx, userID, courseNumber); perr != nil && !errors.Is(perr, repository.ErrNotFound) {
			s.repair(ctx, RepairTask{Side: "user", StudentID: userID, CourseNumber: courseNumber})
			if firstErr == nil {
				firstErr = perr
				failedStudent = userID
			}
		}
	}

	s.publish(ctx, RosterEvent{
		CourseNumber: courseNumber,
		Action:       "delete",
		SeatsLeft:    0,
		At:           time.Now().UTC(),
	})

	if firstErr != nil {
		return &PartialFailureError{
			Op: "delete-class", CourseNumber: courseNumber, StudentID: failedStudent,
			Cause: firstErr,
		}
	}

	s.log.Info().Int("instructor_id", instructorID).Str("course_number", courseNumber).
		Int("purged", len(purge)).Msg("class deleted")
	return nil
}

func (s *EnrollmentService) publish(ctx context.Context, ev RosterEvent) {
	if s.events != nil {
		s.events.PublishChange(ctx, ev)
	}
}

func (s *EnrollmentService) repair(ctx context.Context, task RepairTask) {
	if s.events != nil {
		s.events.EnqueueRepair(ctx, task)
	}
}
