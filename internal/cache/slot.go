package cache

import (
	"context"
	"errors"

	"field-review/backend/internal/models"

	log "github.com/sirupsen/logrus"
)

// DefaultSessionKey is the redis key holding the persisted identity.
const DefaultSessionKey = "field-review:session"

// SessionSlot persists the logged-in identity in a single redis key. Writes
// go through a circuit breaker so an unreachable redis fails fast.
type SessionSlot struct {
	cache   *RedisCache
	key     string
	breaker *CircuitBreaker
	logger  *log.Logger
}

func NewSessionSlot(cache *RedisCache, key string, breaker *CircuitBreaker, logger *log.Logger) *SessionSlot {
	if key == "" {
		key = DefaultSessionKey
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(nil)
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	breaker.OnStateChange(func(from, to BreakerState) {
		logger.WithFields(log.Fields{
			"key":  key,
			"from": from.String(),
			"to":   to.String(),
		}).Warn("session slot circuit breaker changed state")
	})

	return &SessionSlot{cache: cache, key: key, breaker: breaker, logger: logger}
}

// Load returns nil when nothing is persisted.
func (s *SessionSlot) Load(ctx context.Context) (*models.Identity, error) {
	var identity models.Identity
	err := s.breaker.Execute(func() error {
		err := s.cache.Get(ctx, s.key, &identity)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if identity.Email == "" {
		return nil, nil
	}
	return &identity, nil
}

// Save stores the identity without expiry: it lives until logout.
func (s *SessionSlot) Save(ctx context.Context, identity models.Identity) error {
	return s.breaker.Execute(func() error {
		return s.cache.Set(ctx, s.key, identity, 0)
	})
}

func (s *SessionSlot) Clear(ctx context.Context) error {
	return s.breaker.Execute(func() error {
		return s.cache.Delete(ctx, s.key)
	})
}

func (s *SessionSlot) Breaker() *CircuitBreaker {
	return s.breaker
}
