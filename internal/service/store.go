package service

import (
	"context"

	"github.com/courseworks/registrar-backend/internal/model"
)

// UserStore is the user-side document store the services operate on.
// Implemented by repository.UserRepository; tests substitute an in-memory
// store with the same semantics.
type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	ListByEnrolledCourse(ctx context.Context, courseNumber string) ([]model.User, error)
	Create(ctx context.Context, u *model.User) error
	UpdatePasswordHash(ctx context.Context, id int, passwordHash string) error
	AppendEnrolledClass(ctx context.Context, userID int, ref model.ClassRef) error
	// RemoveEnrolledClass removes every entry whose course number matches
	// (pull-by-field-match semantics).
	RemoveEnrolledClass(ctx context.Context, userID int, courseNumber string) error
}

// ClassStore is the class-side document store.
// Implemented by repository.ClassRepository.
type ClassStore interface {
	GetByCourseNumber(ctx context.Context, courseNumber string) (*model.Class, error)
	List(ctx context.Context, sortBySemester bool) ([]model.Class, error)
	DistinctDepartments(ctx context.Context) ([]string, error)
	Create(ctx context.Context, c *model.Class) error
	Delete(ctx context.Context, courseNumber string) error
	AppendRosterStudent(ctx context.Context, courseNumber string, entry model.RosterEntry) error
	RemoveRosterStudent(ctx context.Context, courseNumber string, studentID int) error
}
