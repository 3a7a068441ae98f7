package service

import (
	"context"
	"fmt"
	"time"

	"social_rtc/internal/repository"
	"social_rtc/pkg/logger"
)

type RateLimitService interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

type rateLimitService struct {
	repo     repository.RateLimitRepository
	requests int
	window   time.Duration
	log      logger.Logger
}

func NewRateLimitService(repo repository.RateLimitRepository, requests int, window time.Duration, log logger.Logger) RateLimitService {
	return &rateLimitService{
		repo:     repo,
		requests: requests,
		window:   window,
		log:      log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, identifier string) (bool, error) {
	key := fmt.Sprintf("rate_limit:%s", identifier)

	allowed, err := s.repo.CheckLimit(ctx, key, s.requests, s.window)
	if err != nil {
		// При недоступном Redis запрос пропускаем
		s.log.Warn("Rate limit check failed, allowing request", "error", err)
		return true, nil
	}
	if !allowed {
		return false, nil
	}

	if _, err := s.repo.Increment(ctx, key, s.window); err != nil {
		s.log.Warn("Rate limit increment failed", "error", err)
	}

	return true, nil
}
