package service

import (
	"context"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/courseworks/registrar-backend/internal/model"
)

// Password-change validation messages.
const (
	MsgPasswordFieldsMissing = "Please fill in all the fields!"
	MsgConfirmMismatch       = "The confirm password field does not match!"
	MsgWeakPassword          = "Passwords must contain a minimum of eight characters, at least one uppercase letter, one lowercase letter and one number!"
	MsgOldPasswordMismatch   = "The password you entered does not match the one saved in our records."
)

// UserService handles account lookups and credential changes.
type UserService struct {
	users      UserStore
	bcryptCost int
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, bcryptCost int) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost}
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByEmail retrieves a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.GetByEmail(ctx, email)
}

// Create inserts a new user, hashing the plaintext password passed in the
// PasswordHash field.
func (s *UserService) Create(ctx context.Context, u *model.User) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.PasswordHash), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hashed)
	return s.users.Create(ctx, u)
}

// ChangePassword validates and applies a credential update. Every violated
// rule is reported in one ordered list; the stored hash changes only when
// the list is empty.
func (s *UserService) ChangePassword(ctx context.Context, userID int, req model.ChangePasswordRequest) ([]string, error) {
	var msgs []string

	if req.Old == "" || req.New == "" || req.ConfirmPassword == "" {
		msgs = append(msgs, MsgPasswordFieldsMissing)
	}

	if req.New != req.ConfirmPassword {
		msgs = append(msgs, MsgConfirmMismatch)
	}

	if !passwordMeetsPolicy(req.New) {
		msgs = append(msgs, MsgWeakPassword)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Old)) != nil {
		msgs = append(msgs, MsgOldPasswordMismatch)
	}

	if len(msgs) > 0 {
		return msgs, nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.New), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, string(hashed)); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	return nil, nil
}

// passwordMeetsPolicy checks the strength policy: at least eight characters
// with one uppercase letter, one lowercase letter and one digit.
func passwordMeetsPolicy(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}
