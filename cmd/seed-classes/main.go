package main

import (
	"context"
	"fmt"
	"time"

	"github.com/courseworks/registrar-backend/internal/config"
	"github.com/courseworks/registrar-backend/internal/database"
	"github.com/courseworks/registrar-backend/internal/logger"
	"github.com/courseworks/registrar-backend/internal/model"
	"github.com/courseworks/registrar-backend/internal/repository"
	"github.com/courseworks/registrar-backend/internal/service"
)

// seedClass pairs a catalog entry with the email of its owning instructor.
type seedClass struct {
	ownerEmail string
	req        model.CreateClassRequest
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(pool)
	classRepo := repository.NewClassRepository(pool)

	userService := service.NewUserService(userRepo, cfg.BcryptCost)
	classService := service.NewClassService(classRepo, userRepo, rdb, cfg.DepartmentCacheTTL, service.NewCourseLocks(), log)

	fmt.Println("=== Seeding Instructors and Classes ===")

	instructors := []*model.User{
		{FirstName: "Grace", LastName: "Hopper", Email: "grace.hopper@courseworks.edu", Role: model.RoleInstructor, PasswordHash: "Compilers1906"},
		{FirstName: "Donald", LastName: "Knuth", Email: "donald.knuth@courseworks.edu", Role: model.RoleInstructor, PasswordHash: "Premature0ptimization"},
		{FirstName: "Barbara", LastName: "Liskov", Email: "barbara.liskov@courseworks.edu", Role: model.RoleInstructor, PasswordHash: "Substitution1"},
	}

	for _, inst := range instructors {
		if err := userService.Create(ctx, inst); err != nil {
			if err == repository.ErrDuplicateEmail {
				existing, lookupErr := userService.GetByEmail(ctx, inst.Email)
				if lookupErr != nil {
					log.Fatal().Err(lookupErr).Str("email", inst.Email).Msg("Failed to load existing instructor")
				}
				*inst = *existing
				fmt.Printf("Found existing instructor %s (ID: %d)\n", inst.DisplayName(), inst.ID)
				continue
			}
			log.Fatal().Err(err).Str("email", inst.Email).Msg("Failed to create instructor")
		}
		fmt.Printf("Created instructor %s (ID: %d)\n", inst.DisplayName(), inst.ID)
	}

	byEmail := make(map[string]*model.User, len(instructors))
	for _, inst := range instructors {
		byEmail[inst.Email] = inst
	}

	catalog := []seedClass{
		{"grace.hopper@courseworks.edu", model.CreateClassRequest{
			CourseNumber: "4111", Semester: "FALL 2026", CourseName: "Introduction to Databases",
			Department: "Computer Science", Description: "Relational model, SQL, transactions, and storage.",
			Schedule: "Mon/Wed 10:10-11:25", Capacity: "120", StartDate: "2026-09-08",
		}},
		{"grace.hopper@courseworks.edu", model.CreateClassRequest{
			CourseNumber: "4156", Semester: "FALL 2026", CourseName: "Advanced Software Engineering",
			Department: "Computer Science", Description: "Design, testing, and maintenance of large systems.",
			Schedule: "Tue/Thu 14:40-15:55", Capacity: "80", StartDate: "2026-09-08",
		}},
		{"donald.knuth@courseworks.edu", model.CreateClassRequest{
			CourseNumber: "4231", Semester: "FALL 2026", CourseName: "Analysis of Algorithms",
			Department: "Computer Science", Description: "Asymptotic analysis, graph algorithms, NP-completeness.",
			Schedule: "Mon/Wed 13:10-14:25", Capacity: "150", StartDate: "2026-09-08",
		}},
		{"donald.knuth@courseworks.edu", model.CreateClassRequest{
			CourseNumber: "2000", Semester: "SPRING 2027", CourseName: "Discrete Mathematics",
			Department: "Mathematics", Description: "Logic, combinatorics, and proof techniques.",
			Schedule: "Tue/Thu 10:10-11:25", Capacity: "200", StartDate: "2027-01-19",
		}},
		{"barbara.liskov@courseworks.edu", model.CreateClassRequest{
			CourseNumber: "4113", Semester: "SPRING 2027", CourseName: "Operating Systems",
			Department: "Computer Science", Description: "Processes, scheduling, memory, and file systems.",
			Schedule: "Mon/Wed 16:10-17:25", Capacity: "90", StartDate: "2027-01-19",
		}},
		{"barbara.liskov@courseworks.edu", model.CreateClassRequest{
			CourseNumber: "3827", Semester: "SUMMER 2027", CourseName: "Fundamentals of Computer Systems",
			Department: "Electrical Engineering", Description: "Digital logic through assembly programming.",
			Schedule: "Tue/Thu 09:00-12:00", Capacity: "60", StartDate: "2027-05-26",
		}},
	}

	successCount := 0
	for _, entry := range catalog {
		owner := byEmail[entry.ownerEmail]
		created, msgs, err := classService.Create(ctx, entry.req, owner)
		if len(msgs) > 0 {
			fmt.Printf("Invalid seed entry %s: %v\n", entry.req.CourseNumber, msgs)
			continue
		}
		if err != nil {
			if err == repository.ErrDuplicateCourseNumber {
				fmt.Printf("Class %s already exists, skipping\n", entry.req.CourseNumber)
				continue
			}
			fmt.Printf("Error creating class %s: %v\n", entry.req.CourseNumber, err)
			continue
		}
		successCount++
		fmt.Printf("Created class %s %s (%s)\n", created.CourseNumber, created.CourseName, created.Semester)
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d classes.\n", successCount, len(catalog))
}
