package service

import (
	"context"
	"sync"

	"github.com/courseworks/registrar-backend/internal/model"
	"github.com/courseworks/registrar-backend/internal/repository"
)

// memUserStore is an in-memory UserStore with the same semantics as the
// Postgres repository, plus error-injection hooks for failure-path tests.
type memUserStore struct {
	mu     sync.Mutex
	users  map[int]*model.User
	nextID int

	appendErr func(userID int, courseNumber string) error
	removeErr func(userID int, courseNumber string) error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[int]*model.User), nextID: 1}
}

func (s *memUserStore) add(u *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID
		s.nextID++
	} else if u.ID >= s.nextID {
		s.nextID = u.ID + 1
	}
	s.users[u.ID] = u
	return u
}

func copyUser(u *model.User) *model.User {
	out := *u
	out.EnrolledClasses = append([]model.ClassRef(nil), u.EnrolledClasses...)
	return &out
}

func (s *memUserStore) GetByID(_ context.Context, id int) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memUserStore) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *copyUser(u))
	}
	return out, nil
}

func (s *memUserStore) ListByEnrolledCourse(_ context.Context, courseNumber string) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, u := range s.users {
		for _, ref := range u.EnrolledClasses {
			if ref.CourseNumber == courseNumber {
				out = append(out, *copyUser(u))
				break
			}
		}
	}
	return out, nil
}

func (s *memUserStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	u.ID = s.nextID
	s.nextID++
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *memUserStore) UpdatePasswordHash(_ context.Context, id int, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *memUserStore) AppendEnrolledClass(_ context.Context, userID int, ref model.ClassRef) error {
	// The hook runs before the store lock so a hook that parks the caller
	// stalls only this write, not unrelated reads.
	if s.appendErr != nil {
		if err := s.appendErr(userID, ref.CourseNumber); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.EnrolledClasses = append(u.EnrolledClasses, ref)
	return nil
}

func (s *memUserStore) RemoveEnrolledClass(_ context.Context, userID int, courseNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		if err := s.removeErr(userID, courseNumber); err != nil {
			return err
		}
	}
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	kept := u.EnrolledClasses[:0]
	for _, ref := range u.EnrolledClasses {
		if ref.CourseNumber != courseNumber {
			kept = append(kept, ref)
		}
	}
	u.EnrolledClasses = kept
	return nil
}

// memClassStore is the class-side counterpart.
type memClassStore struct {
	mu      sync.Mutex
	classes map[string]*model.Class
	nextID  int

	appendErr func(courseNumber string, studentID int) error
	removeErr func(courseNumber string, studentID int) error
	deleteErr error
}

func newMemClassStore() *memClassStore {
	return &memClassStore{classes: make(map[string]*model.Class), nextID: 1}
}

func (s *memClassStore) add(c *model.Class) *model.Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID
		s.nextID++
	}
	s.classes[c.CourseNumber] = c
	return c
}

func copyClass(c *model.Class) *model.Class {
	out := *c
	out.Roster = append([]model.RosterEntry(nil), c.Roster...)
	return &out
}

func (s *memClassStore) GetByCourseNumber(_ context.Context, courseNumber string) (*model.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[courseNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyClass(c), nil
}

func (s *memClassStore) List(_ context.Context, _ bool) ([]model.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Class, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, *copyClass(c))
	}
	return out, nil
}

func (s *memClassStore) DistinctDepartments(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.classes {
		if !seen[c.Department] {
			seen[c.Department] = true
			out = append(out, c.Department)
		}
	}
	return out, nil
}

func (s *memClassStore) Create(_ context.Context, c *model.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.classes[c.CourseNumber]; exists {
		return repository.ErrDuplicateCourseNumber
	}
	c.ID = s.nextID
	s.nextID++
	s.classes[c.CourseNumber] = copyClass(c)
	return nil
}

func (s *memClassStore) Delete(_ context.Context, courseNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.classes[courseNumber]; !ok {
		return repository.ErrNotFound
	}
	delete(s.classes, courseNumber)
	return nil
}

func (s *memClassStore) AppendRosterStudent(_ context.Context, courseNumber string, entry model.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		if err := s.appendErr(courseNumber, entry.StudentID); err != nil {
			return err
		}
	}
	c, ok := s.classes[courseNumber]
	if !ok {
		return repository.ErrNotFound
	}
	c.Roster = append(c.Roster, entry)
	return nil
}

func (s *memClassStore) RemoveRosterStudent(_ context.Context, courseNumber string, studentID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		if err := s.removeErr(courseNumber, studentID); err != nil {
			return err
		}
	}
	c, ok := s.classes[courseNumber]
	if !ok {
		return repository.ErrNotFound
	}
	kept := c.Roster[:0]
	for _, entry := range c.Roster {
		if entry.StudentID != studentID {
			kept = append(kept, entry)
		}
	}
	c.Roster = kept
	return nil
}

// recordingEvents captures published roster events and repair tasks.
type recordingEvents struct {
	mu        sync.Mutex
	published []RosterEvent
	repairs   []RepairTask
}

func (r *recordingEvents) PublishChange(_ context.Context, ev RosterEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, ev)
}

func (r *recordingEvents) EnqueueRepair(_ context.Context, task RepairTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repairs = append(r.repairs, task)
}

func (r *recordingEvents) repairTasks() []RepairTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RepairTask(nil), r.repairs...)
}

func (r *recordingEvents) events() []RosterEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RosterEvent(nil), r.published...)
}
