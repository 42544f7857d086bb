package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/skarpovich/url-management/internal/database"
	"github.com/skarpovich/url-management/internal/models"
)

// ErrInvalidCredentials is returned when authentication fails. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("incorrect username or password")

// UserRepository defines the interface for working with users at the business logic layer.
type UserRepository interface {
	// Create inserts a new user record. Duplicate usernames and emails
	// report database.ErrUserExists.
	Create(ctx context.Context, username, email, passwordHash string) (*models.User, error)

	// GetByID retrieves a user by its identifier.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Delete removes a user by its identifier.
	Delete(ctx context.Context, id int64) error
}

// UserService provides registration and credential checking on top of a UserRepository.
type UserService struct {
	repo UserRepository
}

// NewUserService creates a new instance of UserService with the provided repository.
func NewUserService(repo UserRepository) *UserService {
	return &UserService{
		repo: repo,
	}
}

// Register creates a new user with a bcrypt-hashed password.
// Duplicate usernames and emails report database.ErrUserExists.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	const op = "service.UserService.Register"

	var u models.User
	if err := u.SetPassword(password); err != nil {
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := s.repo.Create(ctx, username, email, u.PasswordHash)
	if err != nil {
		if errors.Is(err, database.ErrUserExists) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrUserExists)
		}

		return nil, fmt.Errorf("%s: failed to register user: %w", op, err)
	}

	return user, nil
}

// Authenticate checks the username and password pair. An unknown username and
// a wrong password both report ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	const op = "service.UserService.Authenticate"

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: failed to authenticate user: %w", op, err)
	}

	if !user.CheckPassword(password) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return user, nil
}

// UserByID retrieves a user by its identifier.
func (s *UserService) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "service.UserService.UserByID"

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	return user, nil
}

// UserByUsername retrieves a user by username.
func (s *UserService) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "service.UserService.UserByUsername"

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	return user, nil
}
