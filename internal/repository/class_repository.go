package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courseworks/registrar-backend/internal/model"
)

// ClassRepository handles class data access. The roster lives on the class
// row as a JSONB column, mirroring the enrolled-class lists on user rows.
type ClassRepository struct {
	pool *pgxpool.Pool
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(pool *pgxpool.Pool) *ClassRepository {
	return &ClassRepository{pool: pool}
}

const classColumns = `id, course_number, semester, course_name, department, instructor_id,
	instructor_name, description, schedule, capacity, start_date, roster, created_at, updated_at`

func scanClass(row pgx.Row) (*model.Class, error) {
	c := &model.Class{}
	err := row.Scan(&c.ID, &c.CourseNumber, &c.Semester, &c.CourseName, &c.Department,
		&c.InstructorID, &c.InstructorName, &c.Description, &c.Schedule, &c.Capacity,
		&c.StartDate, &c.Roster, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// GetByCourseNumber retrieves a class by its unique course number.
func (r *ClassRepository) GetByCourseNumber(ctx context.Context, courseNumber string) (*model.Class, error) {
	return scanClass(r.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE course_number = $1`, courseNumber))
}

// List retrieves all classes, optionally sorted by semester ascending.
func (r *ClassRepository) List(ctx context.Context, sortBySemester bool) ([]model.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes ORDER BY course_number`
	if sortBySemester {
		query = `SELECT ` + classColumns + ` FROM classes ORDER BY semester, course_number`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []model.Class
	for rows.Next() {
		var c model.Class
		if err := rows.Scan(&c.ID, &c.CourseNumber, &c.Semester, &c.CourseName, &c.Department,
			&c.InstructorID, &c.InstructorName, &c.Description, &c.Schedule, &c.Capacity,
			&c.StartDate, &c.Roster, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// DistinctDepartments retrieves the set of department names in use.
func (r *ClassRepository) DistinctDepartments(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT department FROM classes ORDER BY department`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

// Create inserts a new class with an empty roster.
func (r *ClassRepository) Create(ctx context.Context, c *model.Class) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO classes (course_number, semester, course_name, department, instructor_id,
		     instructor_name, description, schedule, capacity, start_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		c.CourseNumber, c.Semester, c.CourseName, c.Department, c.InstructorID,
		c.InstructorName, c.Description, c.Schedule, c.Capacity, c.StartDate,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCourseNumber
		}
		return err
	}
	return nil
}

// Delete removes a class by course number.
func (r *ClassRepository) Delete(ctx context.Context, courseNumber string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM classes WHERE course_number = $1`, courseNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendRosterStudent appends a student reference to the class roster.
func (r *ClassRepository) AppendRosterStudent(ctx context.Context, courseNumber string, entry model.RosterEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal roster entry: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE classes
		 SET roster = roster || $2::jsonb, updated_at = CURRENT_TIMESTAMP
		 WHERE course_number = $1`,
		courseNumber, raw,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveRosterStudent removes a student reference from the class roster.
func (r *ClassRepository) RemoveRosterStudent(ctx context.Context, courseNumber string, studentID int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE classes
		 SET roster = COALESCE(
		     (SELECT jsonb_agg(elem)
		      FROM jsonb_array_elements(roster) AS elem
		      WHERE (elem->>'student_id')::int <> $2),
		     '[]'::jsonb),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE course_number = $1`,
		courseNumber, studentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
