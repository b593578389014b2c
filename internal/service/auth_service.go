package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/internal/platform/mailer"
	"github.com/diagnosis/service-sphere/internal/platform/password"
	"github.com/diagnosis/service-sphere/internal/repo/postgres"
	"github.com/diagnosis/service-sphere/pkg/auth"
	"github.com/diagnosis/service-sphere/pkg/events"
	"github.com/diagnosis/service-sphere/pkg/logger"
	"github.com/diagnosis/service-sphere/pkg/metrics"
)

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResult, error)
	Verify(token string) (*auth.Claims, error)
	ListProviders(ctx context.Context) ([]domain.ProviderInfo, error)
}

type authService struct {
	userRepo  postgres.UsersRepo
	hasher    *password.Hasher
	tokens    *auth.Manager
	mailer    mailer.Service
	eventBus  events.Publisher
	dummyHash string
}

func NewAuthService(
	userRepo postgres.UsersRepo,
	hasher *password.Hasher,
	tokens *auth.Manager,
	mailer mailer.Service,
	eventBus events.Publisher,
) (AuthService, error) {
	// compared against for unknown emails so both login failures cost the same
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &authService{
		userRepo:  userRepo,
		hasher:    hasher,
		tokens:    tokens,
		mailer:    mailer,
		eventBus:  eventBus,
		dummyHash: dummy,
	}, nil
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		metrics.IncAuth("register", "invalid")
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, req.Name, req.Email, passwordHash, req.Phone, req.Role)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			metrics.IncAuth("register", "duplicate")
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	metrics.IncAuth("register", "success")
	logger.InfoContext(ctx, "User registered", "user_id", user.ID, "role", user.Role)

	event := events.UserRegisteredEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.UserRegistered, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish user registered event", "error", err, "user_id", user.ID)
	}

	// mail is best-effort
	if err := s.mailer.SendWelcome(ctx, user.Email, user.Name, user.Role); err != nil {
		logger.ErrorContext(ctx, "Failed to send welcome email", "error", err, "user_id", user.ID)
	}

	return user, nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResult, error) {
	req.Normalize()

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	encoded := s.dummyHash
	if user != nil {
		encoded = user.PasswordHash
	}
	valid, err := s.hasher.Compare(req.Password, encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if user == nil || !valid {
		metrics.IncAuth("login", "failure")
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Name, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	metrics.IncAuth("login", "success")

	return &domain.LoginResult{
		Token:     token,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
		User:      user.ToUserInfo(),
	}, nil
}

// Verify checks a bearer token without any I/O.
func (s *authService) Verify(token string) (*auth.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *authService) ListProviders(ctx context.Context) ([]domain.ProviderInfo, error) {
	users, err := s.userRepo.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	out := make([]domain.ProviderInfo, 0, len(users))
	for _, u := range users {
		out = append(out, domain.ProviderInfo{ID: u.ID, Name: u.Name})
	}
	return out, nil
}
