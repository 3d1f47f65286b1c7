package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/repository"
)

type IdentityUseCase interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, name, password string) (*domain.User, error)
	Profile(ctx context.Context, userID int64) (*domain.User, error)
}

type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

type IdentityService struct {
	users  repository.UserRepository
	cost   int
	logger *zap.Logger
}

func NewIdentityService(users repository.UserRepository, cost int, logger *zap.Logger) *IdentityService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{users: users, cost: cost, logger: logger}
}

func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	name := strings.TrimSpace(input.FullName)
	email := strings.TrimSpace(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: full_name, email and password are required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: malformed email", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{FullName: name, Email: email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Authenticate does not reveal whether the name or the password was wrong.
func (s *IdentityService) Authenticate(ctx context.Context, name, password string) (*domain.User, error) {
	if name == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *IdentityService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	return s.users.GetByID(ctx, userID)
}

var _ IdentityUseCase = (*IdentityService)(nil)
