package repository

import "errors"

// Sentinel errors shared by all repositories. Services match on these with
// errors.Is instead of inspecting driver error codes.
var (
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateCourseNumber = errors.New("class with this course number already exists")
	ErrDuplicateEmail        = errors.New("user with this email already exists")
)
