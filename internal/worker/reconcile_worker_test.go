package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseworks/registrar-backend/internal/model"
	"github.com/courseworks/registrar-backend/internal/repository"
	"github.com/courseworks/registrar-backend/internal/service"
)

// auditUserStore and auditClassStore are minimal in-memory stores for
// driving the audit sweep without a database.
type auditUserStore struct {
	users map[int]*model.User
}

func (s *auditUserStore) GetByID(_ context.Context, id int) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (s *auditUserStore) GetByEmail(context.Context, string) (*model.User, error) {
	return nil, repository.ErrNotFound
}

func (s *auditUserStore) List(context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *auditUserStore) ListByEnrolledCourse(context.Context, string) ([]model.User, error) {
	return nil, nil
}

func (s *auditUserStore) Create(context.Context, *model.User) error { return nil }

func (s *auditUserStore) UpdatePasswordHash(context.Context, int, string) error { return nil }

func (s *auditUserStore) AppendEnrolledClass(_ context.Context, userID int, ref model.ClassRef) error {
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.EnrolledClasses = append(u.EnrolledClasses, ref)
	return nil
}

func (s *auditUserStore) RemoveEnrolledClass(_ context.Context, userID int, courseNumber string) error {
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

type auditClassStore struct {
	classes map[string]*model.Class
}

func (s *auditClassStore) GetByCourseNumber(_ context.Context, courseNumber string) (*model.Class, error) {
	c, ok := s.classes[courseNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *auditClassStore) List(context.Context, bool) ([]model.Class, error) {
	out := make([]model.Class, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, *c)
	}
	return out, nil
}

func (s *auditClassStore) DistinctDepartments(context.Context) ([]string, error) { return nil, nil }

func (s *auditClassStore) Create(context.Context, *model.Class) error { return nil }

func (s *auditClassStore) Delete(context.Context, string) error { return nil }

func (s *auditClassStore) AppendRosterStudent(context.Context, string, model.RosterEntry) error {
	return nil
}

func (s *auditClassStore) RemoveRosterStudent(_ context.Context, courseNumber string, studentID int) error {
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

func TestAudit(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("RemovesRefsToDeletedClasses", func(t *testing.T) {
		users := &auditUserStore{users: map[int]*model.User{
			1: {ID: 1, EnrolledClasses: []model.ClassRef{{CourseNumber: "9999", EnrolledAt: now}}},
		}}
		classes := &auditClassStore{classes: map[string]*model.Class{}}
		w := NewReconcileWorker(users, classes, nil, zerolog.Nop())

		if err := w.audit(ctx); err != nil {
			t.Fatalf("audit failed: %v", err)
		}
		if got := users.users[1].EnrolledClasses; len(got) != 0 {
			t.Errorf("dead refs survived the sweep: %+v", got)
		}
	})

	t.Run("FinishesInterruptedDrops", func(t *testing.T) {
		users := &auditUserStore{users: map[int]*model.User{
			1: {ID: 1},
		}}
		classes := &auditClassStore{classes: map[string]*model.Class{
			"4111": {
				CourseNumber: "4111", InstructorID: 100, Capacity: 30,
				Roster: []model.RosterEntry{{StudentID: 1, Name: "Ada Lovelace", EnrolledAt: now}},
			},
		}}
		w := NewReconcileWorker(users, classes, nil, zerolog.Nop())

		if err := w.audit(ctx); err != nil {
			t.Fatalf("audit failed: %v", err)
		}
		if got := classes.classes["4111"].Roster; len(got) != 0 {
			t.Errorf("orphaned roster entry survived the sweep: %+v", got)
		}
	})

	t.Run("LeavesOwnerRefsAlone", func(t *testing.T) {
		users := &auditUserStore{users: map[int]*model.User{
			100: {ID: 100, EnrolledClasses: []model.ClassRef{{CourseNumber: "4111", EnrolledAt: now}}},
		}}
		classes := &auditClassStore{classes: map[string]*model.Class{
			"4111": {CourseNumber: "4111", InstructorID: 100, Capacity: 30},
		}}
		w := NewReconcileWorker(users, classes, nil, zerolog.Nop())

		if err := w.audit(ctx); err != nil {
			t.Fatalf("audit failed: %v", err)
		}
		if got := users.users[100].EnrolledClasses; len(got) != 1 {
			t.Errorf("owner ref removed by the sweep: %+v", got)
		}
	})

	t.Run("LeavesConsistentStateAlone", func(t *testing.T) {
		users := &auditUserStore{users: map[int]*model.User{
			1: {ID: 1, EnrolledClasses: []model.ClassRef{{CourseNumber: "4111", EnrolledAt: now}}},
		}}
		classes := &auditClassStore{classes: map[string]*model.Class{
			"4111": {
				CourseNumber: "4111", InstructorID: 100, Capacity: 30,
				Roster: []model.RosterEntry{{StudentID: 1, Name: "Ada Lovelace", EnrolledAt: now}},
			},
		}}
		w := NewReconcileWorker(users, classes, nil, zerolog.Nop())

		if err := w.audit(ctx); err != nil {
			t.Fatalf("audit failed: %v", err)
		}
		if len(users.users[1].EnrolledClasses) != 1 || len(classes.classes["4111"].Roster) != 1 {
			t.Error("consistent membership modified by the sweep")
		}
	})
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("UserSide", func(t *testing.T) {
		users := &auditUserStore{users: map[int]*model.User{
			1: {ID: 1, EnrolledClasses: []model.ClassRef{{CourseNumber: "4111", EnrolledAt: now}}},
		}}
		classes := &auditClassStore{classes: map[string]*model.Class{}}
		w := NewReconcileWorker(users, classes, nil, zerolog.Nop())

		task := service.RepairTask{Side: "user", StudentID: 1, CourseNumber: "4111"}
		if err := w.apply(ctx, task); err != nil {
			t.Fatalf("apply failed: %v", err)
		}
		if got := users.users[1].EnrolledClasses; len(got) != 0 {
			t.Errorf("dangling ref survived: %+v", got)
		}
	})

	t.Run("ClassSide", func(t *testing.T) {
		users := &auditUserStore{users: map[int]*model.User{}}
		classes := &auditClassStore{classes: map[string]*model.Class{
			"4111": {
				CourseNumber: "4111", Capacity: 30,
				Roster: []model.RosterEntry{{StudentID: 1, EnrolledAt: now}},
			},
		}}
		w := NewReconcileWorker(users, classes, nil, zerolog.Nop())

		task := service.RepairTask{Side: "class", StudentID: 1, CourseNumber: "4111"}
		if err := w.apply(ctx, task); err != nil {
			t.Fatalf("apply failed: %v", err)
		}
		if got := classes.classes["4111"].Roster; len(got) != 0 {
			t.Errorf("dangling roster entry survived: %+v", got)
		}
	})

	t.Run("MissingRecordIsSuccess", func(t *testing.T) {
		w := NewReconcileWorker(
			&auditUserStore{users: map[int]*model.User{}},
			&auditClassStore{classes: map[string]*model.Class{}},
			nil, zerolog.Nop(),
		)

		task := service.RepairTask{Side: "user", StudentID: 1, CourseNumber: "4111"}
		if err := w.apply(ctx, task); err != nil {
			t.Errorf("apply of an already-clean reference must succeed: %v", err)
		}
	})
}
