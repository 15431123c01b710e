package service

import (
	"context"
	"fmt"
	"time"

	"github.com/glebk/wellness-bot/internal/domain"
)

// UserService handles user registration and per-user settings
type UserService struct {
	userRepo        domain.UserRepository
	defaultLocation *time.Location
	defaultStart    int
	defaultEnd      int
}

// NewUserService creates a new UserService
func NewUserService(userRepo domain.UserRepository, loc *time.Location, workStartHour, workEndHour int) *UserService {
	if loc == nil {
		loc = time.Local
	}
	return &UserService{
		userRepo:        userRepo,
		defaultLocation: loc,
		defaultStart:    workStartHour,
		defaultEnd:      workEndHour,
	}
}

// RegisterUser registers a new user or updates existing one
func (s *UserService) RegisterUser(ctx context.Context, id int64, username, firstName, lastName string) (*domain.User, error) {
	existingUser, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	if existingUser != nil {
		existingUser.Username = username
		existingUser.FirstName = firstName
		existingUser.LastName = lastName
		if err := s.userRepo.Update(ctx, existingUser); err != nil {
			return nil, err
		}
		return existingUser, nil
	}

	user := &domain.User{
		ID:            id,
		Username:      username,
		FirstName:     firstName,
		LastName:      lastName,
		WorkStartHour: s.defaultStart,
		WorkEndHour:   s.defaultEnd,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetAllUsers returns every registered user
func (s *UserService) GetAllUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.GetAll(ctx)
}

// SetWorkHours changes a user's working window
func (s *UserService) SetWorkHours(ctx context.Context, id int64, startHour, endHour int) error {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return fmt.Errorf("%w: work hours %d-%d", domain.ErrInvalidRequest, startHour, endHour)
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	user.WorkStartHour = startHour
	user.WorkEndHour = endHour
	return s.userRepo.Update(ctx, user)
}

// SetTimezone changes a user's IANA time zone
func (s *UserService) SetTimezone(ctx context.Context, id int64, name string) error {
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("%w: unknown time zone %q", domain.ErrInvalidRequest, name)
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	user.Timezone = name
	return s.userRepo.Update(ctx, user)
}

// Location returns the user's time zone, falling back to the default
func (s *UserService) Location(user *domain.User) *time.Location {
	if user == nil || user.Timezone == "" {
		return s.defaultLocation
	}
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return s.defaultLocation
	}
	return loc
}

// WorkHours returns the user's working window, falling back to the defaults
func (s *UserService) WorkHours(user *domain.User) (int, int) {
	if user == nil || user.WorkStartHour >= user.WorkEndHour {
		return s.defaultStart, s.defaultEnd
	}
	return user.WorkStartHour, user.WorkEndHour
}
