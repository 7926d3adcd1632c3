package application

import (
	"context"
	"fmt"
	"time"

	"chatbot-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação das janelas deslizantes.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store  domain.WindowStore
	Policy domain.Policy
	Clock  domain.Clock
}

func (s Service) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Store == nil {
		return domain.Decision{Allowed: true}, nil
	}
	policy := s.Policy.Active()
	if len(policy) == 0 {
		return domain.Decision{Allowed: true}, nil
	}

	now := time.Now()
	if s.Clock != nil {
		now = s.Clock.Now()
	}

	dec, err := s.Store.Hit(ctx, key, policy, now)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("rate limit check for %q: %w", key, err)
	}
	return dec, nil
}
