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

// UserRepository handles user data access. The enrolled-class list is kept
// as a JSONB document column so the user row stays the single aggregate the
// enrollment protocol mutates.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, email, role, password_hash, enrolled_classes, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role,
		&u.PasswordHash, &u.EnrolledClasses, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail retrieves a user by their unique email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// List retrieves all users.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role,
			&u.PasswordHash, &u.EnrolledClasses, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListByEnrolledCourse retrieves every user whose enrolled-class list
// references the given course number.
func (r *UserRepository) ListByEnrolledCourse(ctx context.Context, courseNumber string) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE enrolled_classes @> jsonb_build_array(jsonb_build_object('course_number', $1::text))`,
		courseNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role,
			&u.PasswordHash, &u.EnrolledClasses, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts a new user with an empty enrolled-class list.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (first_name, last_name, email, role, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		u.FirstName, u.LastName, u.Email, u.Role, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// UpdatePasswordHash replaces a user's stored credential hash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		passwordHash, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendEnrolledClass appends a class snapshot to the user's enrolled list.
func (r *UserRepository) AppendEnrolledClass(ctx context.Context, userID int, ref model.ClassRef) error {
	raw, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal class ref: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET enrolled_classes = enrolled_classes || $2::jsonb, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1`,
		userID, raw,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveEnrolledClass removes every entry matching the course number from
// the user's enrolled list (pull-by-field-match semantics).
func (r *UserRepository) RemoveEnrolledClass(ctx context.Context, userID int, courseNumber string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET enrolled_classes = COALESCE(
		     (SELECT jsonb_agg(elem)
		      FROM jsonb_array_elements(enrolled_classes) AS elem
		      WHERE elem->>'course_number' <> $2),
		     '[]'::jsonb),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1`,
		userID, courseNumber,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
