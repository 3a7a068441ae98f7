package service

import (
	"context"

	"github.com/google/uuid"

	"social_rtc/internal/config"
	"social_rtc/internal/domain"
	"social_rtc/internal/repository"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/jwt"
	"social_rtc/pkg/logger"
)

// AuthService is the identity-resolution shim. Accounts, registration and
// token issuance live in a separate service; the core only validates access
// tokens and looks up profiles.
type AuthService interface {
	ResolveToken(ctx context.Context, tokenString string) (uuid.UUID, error)
	ResolveUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	jwtCfg   config.JWTConfig
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtCfg:   jwtCfg,
		log:      log,
	}
}

func (s *authService) ResolveToken(ctx context.Context, tokenString string) (uuid.UUID, error) {
	userID, err := jwt.ParseAccessToken(tokenString, s.jwtCfg.AccessSecret)
	if err != nil {
		return uuid.Nil, apperrors.ErrInvalidToken
	}
	return userID, nil
}

func (s *authService) ResolveUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
