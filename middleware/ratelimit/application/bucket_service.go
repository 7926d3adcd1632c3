package application

import (
	"time"

	"chatbot-gateway/middleware/ratelimit/domain"
)

const ReasonFlood = "Rate limit exceeded: Too many requests"

// BucketService decide com token bucket por chave (flood guard por IP).
type BucketService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s BucketService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{
		Allowed:    false,
		Window:     "burst",
		Reason:     ReasonFlood,
		RetryAfter: s.RetryAfter,
	}
}
