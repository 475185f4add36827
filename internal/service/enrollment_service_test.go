package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/courseworks/registrar-backend/internal/model"
)

func newEnrollmentFixture() (*memUserStore, *memClassStore, *recordingEvents, *EnrollmentService) {
	users := newMemUserStore()
	classes := newMemClassStore()
	events := &recordingEvents{}
	svc := NewEnrollmentService(users, classes, events, NewCourseLocks(), zerolog.Nop())
	return users, classes, events, svc
}

func seedStudent(users *memUserStore, id int, name string) *model.User {
	return users.add(&model.User{
		ID:        id,
		FirstName: name,
		LastName:  "Student",
		Email:     name + "@example.edu",
		Role:      model.RoleStudent,
	})
}

func seedClass(classes *memClassStore, courseNumber string, capacity int) *model.Class {
	return classes.add(&model.Class{
		CourseNumber:   courseNumber,
		Semester:       "FALL 2026",
		CourseName:     "Introduction to Databases",
		Department:     "Computer Science",
		InstructorID:   100,
		InstructorName: "Grace Hopper",
		Schedule:       "Mon/Wed 10:10-11:25",
		Capacity:       capacity,
	})
}

func TestEnroll(t *testing.T) {
	ctx := context.Background()

	t.Run("UpdatesBothSides", func(t *testing.T) {
		users, classes, events, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)

		class, err := svc.Enroll(ctx, 1, "4111")
		if err != nil {
			t.Fatalf("enroll failed: %v", err)
		}
		if !class.HasStudent(1) {
			t.Error("returned class roster misses the student")
		}

		stored, _ := classes.GetByCourseNumber(ctx, "4111")
		if !stored.HasStudent(1) {
			t.Error("stored roster misses the student")
		}
		student, _ := users.GetByID(ctx, 1)
		if len(student.EnrolledClasses) != 1 || student.EnrolledClasses[0].CourseNumber != "4111" {
			t.Errorf("student enrolled list = %+v, want one entry for 4111", student.EnrolledClasses)
		}
		if ref := student.EnrolledClasses[0]; ref.CourseName != "Introduction to Databases" || ref.Instructor != "Grace Hopper" {
			t.Errorf("denormalized snapshot incomplete: %+v", ref)
		}

		evs := events.events()
		if len(evs) != 1 || evs[0].Action != "enroll" || evs[0].SeatsLeft != 29 {
			t.Errorf("published events = %+v, want one enroll event with 29 seats left", evs)
		}
	})

	t.Run("UnknownClass", func(t *testing.T) {
		users, _, _, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")

		if _, err := svc.Enroll(ctx, 1, "9999"); !errors.Is(err, ErrClassNotFound) {
			t.Errorf("err = %v, want ErrClassNotFound", err)
		}
	})

	t.Run("AlreadyEnrolled", func(t *testing.T) {
		users, classes, _, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)

		if _, err := svc.Enroll(ctx, 1, "4111"); err != nil {
			t.Fatalf("first enroll failed: %v", err)
		}
		if _, err := svc.Enroll(ctx, 1, "4111"); !errors.Is(err, ErrAlreadyEnrolled) {
			t.Errorf("err = %v, want ErrAlreadyEnrolled", err)
		}

		student, _ := users.GetByID(ctx, 1)
		if len(student.EnrolledClasses) != 1 {
			t.Errorf("enrolled list has %d entries, want 1", len(student.EnrolledClasses))
		}
	})

	t.Run("ClassFull", func(t *testing.T) {
		users, classes, _, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedStudent(users, 2, "bob")
		seedClass(classes, "4111", 1)

		if _, err := svc.Enroll(ctx, 1, "4111"); err != nil {
			t.Fatalf("first enroll failed: %v", err)
		}
		if _, err := svc.Enroll(ctx, 2, "4111"); !errors.Is(err, ErrClassFull) {
			t.Errorf("err = %v, want ErrClassFull", err)
		}

		second, _ := users.GetByID(ctx, 2)
		if len(second.EnrolledClasses) != 0 {
			t.Errorf("rejected student still holds refs: %+v", second.EnrolledClasses)
		}
	})

	t.Run("CompensatesFailedRosterWrite", func(t *testing.T) {
		users, classes, events, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)
		classes.appendErr = func(string, int) error { return errors.New("storage down") }

		_, err := svc.Enroll(ctx, 1, "4111")
		if err == nil {
			t.Fatal("enroll succeeded despite roster write failure")
		}
		var partial *PartialFailureError
		if errors.As(err, &partial) {
			t.Fatalf("compensation should have succeeded, got partial failure: %v", err)
		}

		student, _ := users.GetByID(ctx, 1)
		if len(student.EnrolledClasses) != 0 {
			t.Errorf("compensation left dangling refs: %+v", student.EnrolledClasses)
		}
		if len(events.repairTasks()) != 0 {
			t.Errorf("repair task queued although compensation succeeded")
		}
	})

	t.Run("PartialFailureQueuesRepair", func(t *testing.T) {
		users, classes, events, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)
		classes.appendErr = func(string, int) error { return errors.New("storage down") }
		users.removeErr = func(int, string) error { return errors.New("storage still down") }

		_, err := svc.Enroll(ctx, 1, "4111")
		var partial *PartialFailureError
		if !errors.As(err, &partial) {
			t.Fatalf("err = %v, want PartialFailureError", err)
		}
		if partial.Op != "enroll" || partial.CourseNumber != "4111" || partial.StudentID != 1 {
			t.Errorf("partial failure details = %+v", partial)
		}

		tasks := events.repairTasks()
		if len(tasks) != 1 || tasks[0].Side != "user" || tasks[0].StudentID != 1 || tasks[0].CourseNumber != "4111" {
			t.Errorf("repair tasks = %+v, want one user-side task for student 1", tasks)
		}
	})

	t.Run("ConcurrentLastSeat", func(t *testing.T) {
		users, classes, _, svc := newEnrollmentFixture()
		seedClass(classes, "4111", 1)
		const contenders = 8
		for i := 1; i <= contenders; i++ {
			seedStudent(users, i, string(rune('a'+i)))
		}

		var wg sync.WaitGroup
		errs := make([]error, contenders)
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Enroll(ctx, i+1, "4111")
			}(i)
		}
		wg.Wait()

		won := 0
		for i, err := range errs {
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrClassFull):
			default:
				t.Errorf("student %d: unexpected error %v", i+1, err)
			}
		}
		if won != 1 {
			t.Fatalf("%d students won the last seat, want exactly 1", won)
		}

		stored, _ := classes.GetByCourseNumber(ctx, "4111")
		if len(stored.Roster) != 1 {
			t.Errorf("roster has %d entries, want 1", len(stored.Roster))
		}
		holders := 0
		for i := 1; i <= contenders; i++ {
			u, _ := users.GetByID(ctx, i)
			holders += len(u.EnrolledClasses)
		}
		if holders != 1 {
			t.Errorf("%d user-side refs exist, want 1", holders)
		}
	})
}

func TestDrop(t *testing.T) {
	ctx := context.Background()

	t.Run("ClearsBothSides", func(t *testing.T) {
		users, classes, events, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)
		if _, err := svc.Enroll(ctx, 1, "4111"); err != nil {
			t.Fatalf("enroll failed: %v", err)
		}

		if err := svc.Drop(ctx, 1, "4111"); err != nil {
			t.Fatalf("drop failed: %v", err)
		}

		student, _ := users.GetByID(ctx, 1)
		if len(student.EnrolledClasses) != 0 {
			t.Errorf("enrolled list not cleared: %+v", student.EnrolledClasses)
		}
		stored, err := classes.GetByCourseNumber(ctx, "4111")
		if err != nil {
			t.Fatalf("class record must survive the drop: %v", err)
		}
		if stored.HasStudent(1) {
			t.Error("roster still lists the student")
		}

		evs := events.events()
		if len(evs) != 2 || evs[1].Action != "drop" {
			t.Errorf("published events = %+v, want enroll then drop", evs)
		}
	})

	t.Run("NotEnrolled", func(t *testing.T) {
		users, classes, _, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)

		if err := svc.Drop(ctx, 1, "4111"); !errors.Is(err, ErrNotEnrolled) {
			t.Errorf("err = %v, want ErrNotEnrolled", err)
		}
	})

	t.Run("ClassAlreadyDeleted", func(t *testing.T) {
		users, classes, _, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)
		if _, err := svc.Enroll(ctx, 1, "4111"); err != nil {
			t.Fatalf("enroll failed: %v", err)
		}
		if err := classes.Delete(ctx, "4111"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		if err := svc.Drop(ctx, 1, "4111"); err != nil {
			t.Fatalf("drop after class deletion should clean the user side: %v", err)
		}
		student, _ := users.GetByID(ctx, 1)
		if len(student.EnrolledClasses) != 0 {
			t.Errorf("enrolled list not cleared: %+v", student.EnrolledClasses)
		}
	})

	t.Run("CompensatesFailedRosterRemoval", func(t *testing.T) {
		users, classes, events, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)
		if _, err := svc.Enroll(ctx, 1, "4111"); err != nil {
			t.Fatalf("enroll failed: %v", err)
		}
		classes.removeErr = func(string, int) error { return errors.New("storage down") }

		err := svc.Drop(ctx, 1, "4111")
		if err == nil {
			t.Fatal("drop succeeded despite roster removal failure")
		}
		var partial *PartialFailureError
		if errors.As(err, &partial) {
			t.Fatalf("compensation should have succeeded, got partial failure: %v", err)
		}

		student, _ := users.GetByID(ctx, 1)
		if len(student.EnrolledClasses) != 1 {
			t.Errorf("compensation did not restore the ref: %+v", student.EnrolledClasses)
		}
		if len(events.repairTasks()) != 0 {
			t.Error("repair task queued although compensation succeeded")
		}
	})

	t.Run("PartialFailureQueuesClassRepair", func(t *testing.T) {
		users, classes, events, svc := newEnrollmentFixture()
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)
		if _, err := svc.Enroll(ctx, 1, "4111"); err != nil {
			t.Fatalf("enroll failed: %v", err)
		}
		classes.removeErr = func(string, int) error { return errors.New("storage down") }
		users.appendErr = func(int, string) error { return errors.New("storage still down") }

		err := svc.Drop(ctx, 1, "4111")
		var partial *PartialFailureError
		if !errors.As(err, &partial) {
			t.Fatalf("err = %v, want PartialFailureError", err)
		}

		tasks := events.repairTasks()
		if len(tasks) != 1 || tasks[0].Side != "class" || tasks[0].StudentID != 1 {
			t.Errorf("repair tasks = %+v, want one class-side task for student 1", tasks)
		}
	})
}

func TestDeleteClass(t *testing.T) {
	ctx := context.Background()

	t.Run("CascadesToEnrolledStudents", func(t *testing.T) {
		users, classes, events, svc := newEnrollmentFixture()
		owner := users.add(&model.User{ID: 100, FirstName: "Grace", LastName: "Hopper", Role: model.RoleInstructor})
		seedStudent(users, 1, "ada")
		seedStudent(users, 2, "bob")
		class := seedClass(classes, "4111", 30)
		if err := users.AppendEnrolledClass(ctx, owner.ID, class.Ref(class.CreatedAt)); err != nil {
			t.Fatalf("seed owner ref: %v", err)
		}
		for _, id := range []int{1, 2} {
			if _, err := svc.Enroll(ctx, id, "4111"); err != nil {
				t.Fatalf("enroll student %d: %v", id, err)
			}
		}

		if err := svc.DeleteClass(ctx, 100, "4111"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		if _, err := classes.GetByCourseNumber(ctx, "4111"); err == nil {
			t.Error("class record still exists")
		}
		for _, id := range []int{100, 1, 2} {
			u, _ := users.GetByID(ctx, id)
			if len(u.EnrolledClasses) != 0 {
				t.Errorf("user %d still holds refs: %+v", id, u.EnrolledClasses)
			}
		}

		evs := events.events()
		last := evs[len(evs)-1]
		if last.Action != "delete" || last.CourseNumber != "4111" {
			t.Errorf("last event = %+v, want delete for 4111", last)
		}
	})

	t.Run("PurgesRefsMissingFromRoster", func(t *testing.T) {
		users, classes, _, svc := newEnrollmentFixture()
		users.add(&model.User{ID: 100, FirstName: "Grace", LastName: "Hopper", Role: model.RoleInstructor})
		seedStudent(users, 1, "ada")
		class := seedClass(classes, "4111", 30)

		// A half-finished enrollment can leave a user-side ref with no
		// matching roster entry. The cascade must find it anyway.
		if err := users.AppendEnrolledClass(ctx, 1, class.Ref(class.CreatedAt)); err != nil {
			t.Fatalf("seed off-roster ref: %v", err)
		}

		if err := svc.DeleteClass(ctx, 100, "4111"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		student, _ := users.GetByID(ctx, 1)
		if len(student.EnrolledClasses) != 0 {
			t.Errorf("off-roster ref survived the cascade: %+v", student.EnrolledClasses)
		}
	})

	t.Run("NotOwner", func(t *testing.T) {
		users, classes, _, svc := newEnrollmentFixture()
		users.add(&model.User{ID: 200, FirstName: "Donald", LastName: "Knuth", Role: model.RoleInstructor})
		seedClass(classes, "4111", 30)

		if err := svc.DeleteClass(ctx, 200, "4111"); !errors.Is(err, ErrNotClassOwner) {
			t.Errorf("err = %v, want ErrNotClassOwner", err)
		}
		if _, err := classes.GetByCourseNumber(ctx, "4111"); err != nil {
			t.Errorf("class record must survive a rejected delete: %v", err)
		}
	})

	t.Run("UnknownClass", func(t *testing.T) {
		_, _, _, svc := newEnrollmentFixture()
		if err := svc.DeleteClass(ctx, 100, "9999"); !errors.Is(err, ErrClassNotFound) {
			t.Errorf("err = %v, want ErrClassNotFound", err)
		}
	})

	t.Run("PartialPurgeReportsAndQueuesRepairs", func(t *testing.T) {
		users, classes, events, svc := newEnrollmentFixture()
		users.add(&model.User{ID: 100, FirstName: "Grace", LastName: "Hopper", Role: model.RoleInstructor})
		seedStudent(users, 1, "ada")
		seedClass(classes, "4111", 30)
		if _, err := svc.Enroll(ctx, 1, "4111"); err != nil {
			t.Fatalf("enroll failed: %v", err)
		}
		users.removeErr = func(userID int, _ string) error {
			if userID == 1 {
				return errors.New("storage down")
			}
			return nil
		}

		err := svc.DeleteClass(ctx, 100, "4111")
		var partial *PartialFailureError
		if !errors.As(err, &partial) {
			t.Fatalf("err = %v, want PartialFailureError", err)
		}

		tasks := events.repairTasks()
		if len(tasks) != 1 || tasks[0].Side != "user" || tasks[0].StudentID != 1 {
			t.Errorf("repair tasks = %+v, want one user-side task for student 1", tasks)
		}
	})
}
