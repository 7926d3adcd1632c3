package infra

import (
	"context"
	"sync"
	"time"

	"chatbot-gateway/middleware/ratelimit/domain"
)

// MemorySlidingStore implementa domain.WindowStore em memória (sliding log).
//
// Um único mutex protege o mapa inteiro, então podar, comparar e registrar
// é atômico por identidade. Registros ociosos por mais de idleTTL são
// removidos pelo janitor; como a maior janela é <= idleTTL, um registro
// removido já estaria vazio e a remoção nunca muda uma decisão.
type MemorySlidingStore struct {
	mu      sync.Mutex
	records map[string]*slidingRecord

	clock        domain.Clock
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type slidingRecord struct {
	logs     map[string][]time.Time
	lastSeen time.Time
}

type SlidingOption func(*MemorySlidingStore)

func WithSlidingIdleTTL(d time.Duration) SlidingOption {
	return func(s *MemorySlidingStore) { s.idleTTL = d }
}

func WithSlidingCleanupEvery(d time.Duration) SlidingOption {
	return func(s *MemorySlidingStore) { s.cleanupEvery = d }
}

func WithSlidingClock(c domain.Clock) SlidingOption {
	return func(s *MemorySlidingStore) { s.clock = c }
}

func NewMemorySlidingStore(opts ...SlidingOption) *MemorySlidingStore {
	s := &MemorySlidingStore{
		records:      make(map[string]*slidingRecord),
		clock:        RealClock{},
		idleTTL:      time.Hour,
		cleanupEvery: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit implementa domain.WindowStore.
func (s *MemorySlidingStore) Hit(_ context.Context, key domain.Key, policy domain.Policy, now time.Time) (domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[string(key)]
	if !ok {
		rec = &slidingRecord{logs: make(map[string][]time.Time, len(policy))}
		s.records[string(key)] = rec
	}
	rec.lastSeen = now

	for _, w := range policy {
		rec.logs[w.Name] = prune(rec.logs[w.Name], now.Add(-w.Size))
	}

	for _, w := range policy {
		if len(rec.logs[w.Name]) >= w.Limit {
			return domain.Denied(w), nil
		}
	}

	for _, w := range policy {
		rec.logs[w.Name] = append(rec.logs[w.Name], now)
	}
	return domain.Decision{Allowed: true}, nil
}

// prune mantém apenas timestamps estritamente depois de cutoff.
func prune(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

// Len devolve o número de identidades rastreadas.
func (s *MemorySlidingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemorySlidingStore) Cleanup() {
	cutoff := s.clock.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, rec := range s.records {
		if !rec.lastSeen.After(cutoff) {
			delete(s.records, k)
		}
	}
}

// StartJanitor inicia uma goroutine que remove identidades ociosas.
// Pare cancelando o contexto.
func (s *MemorySlidingStore) StartJanitor(ctx context.Context) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
