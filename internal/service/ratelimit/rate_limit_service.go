package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/veracore/veracore/internal/ports"
)

// Config holds rate limiting settings.
type Config struct {
	Enabled       bool
	RedisURL      string
	Requests      int
	Window        time.Duration
	BlockDuration time.Duration
}

type service struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewService builds a Redis-backed rate limiter, or a noop one when
// limiting is disabled.
func NewService(config Config, logger *logrus.Logger) (ports.RateLimitService, error) {
	if !config.Enabled {
		logger.Info("Rate limiting disabled")
		return &noopService{}, nil
	}

	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"requests": config.Requests,
		"window":   config.Window,
	}).Info("Rate limiting service initialized")

	return &service{client: client, logger: logger}, nil
}

func (s *service) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return false, fmt.Errorf("corrupt rate limit counter for %s: %w", key, err)
	}
	return count < limit, nil
}

func (s *service) Increment(ctx context.Context, key string, window time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to increment rate limit counter")
		return fmt.Errorf("failed to increment rate limit: %w", err)
	}
	return nil
}

func (s *service) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	blockKey := "block:" + key
	if err := s.client.Set(ctx, blockKey, reason, duration).Err(); err != nil {
		return fmt.Errorf("failed to block key: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"key":      key,
		"duration": duration,
		"reason":   reason,
	}).Warn("Rate limit key blocked")
	return nil
}

func (s *service) IsBlocked(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Get(ctx, "block:"+key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read block status: %w", err)
	}
	return true, nil
}

// noopService allows all requests.
type noopService struct{}

func (noopService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}
func (noopService) Increment(ctx context.Context, key string, window time.Duration) error { return nil }
func (noopService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	return nil
}
func (noopService) IsBlocked(ctx context.Context, key string) (bool, error) { return false, nil }
