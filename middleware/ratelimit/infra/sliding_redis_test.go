package infra

import (
	"context"
	"testing"
	"time"

	"chatbot-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis usa o DB 15 do Redis local; sem Redis, o teste é pulado.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(ctx)
		_ = client.Close()
	})
	return client
}

func TestRedisSlidingStore_MinuteCap(t *testing.T) {
	s := NewRedisSlidingStore(setupTestRedis(t), "test:rl")
	p := domain.MessagePolicy(5, 50)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		dec, err := s.Hit(ctx, "1.2.3.4-abc", p, now.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("hit %d: unexpected error: %v", i+1, err)
		}
		if !dec.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	dec, err := s.Hit(ctx, "1.2.3.4-abc", p, now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed || dec.Window != "minute" {
		t.Fatalf("expected minute denial, got %+v", dec)
	}
	if dec.RetryAfter != 60*time.Second || dec.Reason != domain.ReasonPerMinute {
		t.Fatalf("unexpected retry/reason: %+v", dec)
	}
}

func TestRedisSlidingStore_HourCap(t *testing.T) {
	s := NewRedisSlidingStore(setupTestRedis(t), "test:rl")
	p := domain.MessagePolicy(10, 3)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		dec, err := s.Hit(ctx, "k", p, now.Add(time.Duration(i)*time.Minute))
		if err != nil || !dec.Allowed {
			t.Fatalf("hit %d: expected allowed, got %+v (err=%v)", i+1, dec, err)
		}
	}

	dec, err := s.Hit(ctx, "k", p, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed || dec.Window != "hour" || dec.RetryAfter != time.Hour {
		t.Fatalf("expected hour denial with 1h retry, got %+v", dec)
	}
}

func TestRedisSlidingStore_WindowRollsOff(t *testing.T) {
	s := NewRedisSlidingStore(setupTestRedis(t), "test:rl")
	p := domain.MessagePolicy(2, 50)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 2; i++ {
		if _, err := s.Hit(ctx, "k", p, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	dec, err := s.Hit(ctx, "k", p, now.Add(61*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed after the minute rolled off, got %+v", dec)
	}
}
