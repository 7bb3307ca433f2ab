package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/eventdesk/internal/domain"
	"github.com/prohmpiriya/eventdesk/internal/dto"
	"github.com/prohmpiriya/eventdesk/internal/repository"
	"github.com/prohmpiriya/eventdesk/pkg/middleware"
	"golang.org/x/crypto/bcrypt"
)

// AuthService authenticates operators and manages their accounts
type AuthService interface {
	// Login checks credentials and issues an access token
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	// Me returns the caller's account
	Me(ctx context.Context, userID string) (*domain.User, error)
	// CreateUser adds an operator to a tenant
	CreateUser(ctx context.Context, tenantID string, req *dto.CreateUserRequest) (*domain.User, error)
	// ListUsers lists a tenant's operators
	ListUsers(ctx context.Context, tenantID string) ([]*domain.User, error)
}

type authService struct {
	userRepo   repository.UserRepository
	tenantRepo repository.TenantRepository
	cfg        Config
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo repository.UserRepository, tenantRepo repository.TenantRepository, cfg Config) AuthService {
	return &authService{userRepo: userRepo, tenantRepo: tenantRepo, cfg: cfg.withDefaults()}
}

// HashPassword hashes a password with bcrypt's default cost
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.TenantID != "" {
		tenant, err := loadTenant(ctx, s.tenantRepo, user.TenantID)
		if err != nil {
			return nil, err
		}
		if !tenant.IsActive {
			return nil, ErrTenantInactive
		}
	}

	token, expiresAt, err := middleware.GenerateToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.JWTTTL, middleware.Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     string(user.Role),
		TenantID: user.TenantID,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *authService) CreateUser(ctx context.Context, tenantID string, req *dto.CreateUserRequest) (*domain.User, error) {
	if _, err := loadTenant(ctx, s.tenantRepo, tenantID); err != nil {
		return nil, err
	}
	if !req.Role.IsValid() || req.Role == domain.RoleSuperAdmin {
		return nil, ErrInvalidRole
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		Email:        domain.NormalizeEmail(req.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) ListUsers(ctx context.Context, tenantID string) ([]*domain.User, error) {
	return s.userRepo.ListByTenant(ctx, tenantID)
}
