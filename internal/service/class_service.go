package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/courseworks/registrar-backend/internal/config"
	"github.com/courseworks/registrar-backend/internal/model"
)

// ClassService is the class registry: lookup, listing, the course
// dictionary search, and creation with its uniqueness guarantee.
type ClassService struct {
	classes ClassStore
	users   UserStore
	rdb     *redis.Client
	ttl     time.Duration
	locks   *CourseLocks
	log     zerolog.Logger
}

// NewClassService creates a new ClassService. rdb may be nil, which
// disables the department cache. locks must be the same instance handed to
// the enrollment service.
func NewClassService(classes ClassStore, users UserStore, rdb *redis.Client, ttl time.Duration, locks *CourseLocks, log zerolog.Logger) *ClassService {
	return &ClassService{
		classes: classes,
		users:   users,
		rdb:     rdb,
		ttl:     ttl,
		locks:   locks,
		log:     log.With().Str("component", "class_service").Logger(),
	}
}

// GetByCourseNumber retrieves a class by its unique course number.
func (s *ClassService) GetByCourseNumber(ctx context.Context, courseNumber string) (*model.Class, error) {
	return s.classes.GetByCourseNumber(ctx, courseNumber)
}

// List retrieves all classes, optionally sorted by semester ascending.
func (s *ClassService) List(ctx context.Context, sortBySemester bool) ([]model.Class, error) {
	classes, err := s.classes.List(ctx, sortBySemester)
	if err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []model.Class{}
	}
	return classes, nil
}

// Departments returns the distinct department names, served from Redis when
// fresh and rebuilt from the store on a miss.
func (s *ClassService) Departments(ctx context.Context) ([]string, error) {
	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, config.CacheKey.DepartmentsKey()).Result()
		if err == nil {
			var departments []string
			if jerr := json.Unmarshal([]byte(cached), &departments); jerr == nil {
				return departments, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("department cache read failed")
		}
	}

	departments, err := s.classes.DistinctDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("distinct departments: %w", err)
	}
	if departments == nil {
		departments = []string{}
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(departments); err == nil {
			if err := s.rdb.Set(ctx, config.CacheKey.DepartmentsKey(), raw, s.ttl).Err(); err != nil {
				s.log.Warn().Err(err).Msg("department cache write failed")
			}
		}
	}

	return departments, nil
}

// InvalidateDepartmentCache drops the cached department list. Called after
// class creation and deletion; the TTL is the backstop.
func (s *ClassService) InvalidateDepartmentCache(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, config.CacheKey.DepartmentsKey()).Err(); err != nil {
		s.log.Warn().Err(err).Msg("department cache invalidation failed")
	}
}

// Search runs the course dictionary query: a case-insensitive substring
// match against any of the class's descriptive fields. An empty query
// returns every record, sorted by semester.
func (s *ClassService) Search(ctx context.Context, query string) ([]model.Class, error) {
	classes, err := s.classes.List(ctx, true)
	if err != nil {
		return nil, err
	}

	if query == "" {
		if classes == nil {
			classes = []model.Class{}
		}
		return classes, nil
	}

	matched := []model.Class{}
	for _, c := range classes {
		if classMatches(&c, query) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// classMatches reports whether any searchable field contains the query,
// case-insensitively.
func classMatches(c *model.Class, query string) bool {
	q := strings.ToLower(query)
	for _, field := range []string{
		c.CourseNumber,
		c.Semester,
		c.CourseName,
		c.Department,
		c.InstructorName,
		c.Description,
		c.Schedule,
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Create validates the form input and persists a new class owned by the
// creator. Returned messages are the accumulated validation violations; a
// non-empty list means nothing was persisted. Creation is itself two-sided:
// the record insert plus the owner's list entry, compensated on failure.
func (s *ClassService) Create(ctx context.Context, req model.CreateClassRequest, creator *model.User) (*model.Class, []string, error) {
	msgs := ValidateCreateClass(req, creator.DisplayName())
	if len(msgs) > 0 {
		return nil, msgs, nil
	}

	capacity, err := strconv.Atoi(req.Capacity)
	if err != nil {
		return nil, []string{MsgInvalidCapacity}, nil
	}

	class := &model.Class{
		CourseNumber:   req.CourseNumber,
		Semester:       req.Semester,
		CourseName:     req.CourseName,
		Department:     req.Department,
		InstructorID:   creator.ID,
		InstructorName: creator.DisplayName(),
		Description:    req.Description,
		Schedule:       req.Schedule,
		Capacity:       capacity,
		StartDate:      req.StartDate,
	}

	// The insert, the owner-ref write and a possible compensating delete run
	// under the course lock so a concurrent enrollment cannot interleave
	// between them.
	unlock := s.locks.Lock(req.CourseNumber)
	defer unlock()

	if err := s.classes.Create(ctx, class); err != nil {
		return nil, nil, err
	}

	if err := s.users.AppendEnrolledClass(ctx, creator.ID, class.Ref(time.Now().UTC())); err != nil {
		if cerr := s.classes.Delete(ctx, class.CourseNumber); cerr != nil {
			return nil, nil, &PartialFailureError{
				Op: "create-class", CourseNumber: class.CourseNumber, StudentID: creator.ID,
				Cause: err, Compensation: cerr,
			}
		}
		return nil, nil, fmt.Errorf("append owner class: %w", err)
	}

	s.InvalidateDepartmentCache(ctx)
	s.log.Info().Str("course_number", class.CourseNumber).Int("instructor_id", creator.ID).Msg("class created")
	return class, nil, nil
}
